// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

// Package source reads byte ranges from tile archive backends.
//
// A tile archive is referenced by a string: a filesystem path, an
// http(s) URL, or an s3:// object URL. [ParseLocation] classifies the
// reference into a [Location], resolving object-store access options
// (profile, region, request-payer) from caller overrides, URL query
// parameters, and the process environment, in that order of
// precedence.
//
// [Open] turns a Location into a [Source]: a positioned, optionally
// conditional byte-range reader. All three backends present the same
// surface, so archive readers layered on top never know whether their
// bytes come from a local file, a web server, or an object store.
//
// Failures carry a [*Error] whose Kind distinguishes the cases
// callers branch on: a stale conditional read (KindEtagMismatch), a
// missing object or bucket, denied access, rate limiting, and generic
// I/O. Predicates such as [IsEtagMismatch] and [IsRateLimited] wrap
// the errors.As plumbing.
package source
