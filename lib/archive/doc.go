// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive models tile archives behind a format-neutral
// surface.
//
// A [Handle] is an open archive: it reports a fixed [Header], a
// free-form metadata document, and per-address tile bytes, with a
// nil result meaning "no tile stored there". Concrete formats plug in
// as [Driver] implementations; the in-tree [DirDriver] serves
// directory trees of {z}/{x}/{y}.{ext} files, and byte-range formats
// (PMTiles, and MBTiles-over-SQL builds that link one in) implement
// Driver in their own modules over a [source.Source].
//
// [Client] is the read path the server uses. It retries reads that
// failed on backend rate limiting — at most three attempts with
// exponential backoff — and collapses tile-read failures to a miss,
// because a request that can be answered "no tile" should not fail on
// one flaky read. Metadata reads do fail, with a [*MetadataError],
// since nothing can be served without them.
//
// [ResolveMetadata] merges header and document into the serving view,
// substituting world bounds for archives that declare none and a
// mid-range center zoom for archives without an explicit one.
//
// [Registry] maps serving IDs to open archives.
package archive
