// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolver fetches the sub-resources a style render needs.
//
// A renderer handle asks for every resource its style references —
// archive tiles, sprite sheets, glyph ranges, remote documents, local
// files — through a single callback. Resolve is that callback: it
// dispatches on the reference's scheme and answers with a
// render.Asset.
//
// Failure handling follows what a render can tolerate. A missing tile
// in a sparse archive resolves as deliberately absent; a missing tile
// in a dense archive and a failed remote fetch both resolve to benign
// substitutes (a background-colored placeholder, an empty document),
// because a map with a gap beats a failed request. Local files take
// the opposite stance: a style that names a file which does not exist
// is misconfigured, and the render fails.
package resolver
