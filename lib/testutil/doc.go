// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Tilecast packages.
//
// [RequireReceive], [RequireSend], [RequireClosed], and
// [RequireNoReceive] encapsulate the timeout safety valve pattern
// (select with time.After fallback) so that individual tests do not
// need direct time.After calls. These are the only place in the test
// suite where real wall-clock timeouts are used; everything else goes
// through an injected clock.
//
// [SolidPNG] and [DecodeImage] build and inspect the small raster
// fixtures that tile, marker, and overlay tests trade in, so tests
// assert on pixels instead of byte blobs.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Tilecast-internal dependencies.
package testutil
