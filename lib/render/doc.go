// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

// Package render manages pools of stateful renderer handles.
//
// A [Renderer] is one handle onto a rendering backend: it holds
// loaded style state, renders one viewport at a time, and is not safe
// for concurrent use. Backends plug in through the [Engine] interface;
// the in-tree [RasterEngine] stitches raster tiles fetched through the
// style's sources, and GL-backed engines implement Engine in their own
// modules.
//
// A [Pool] owns a bounded set of handles for one configuration. It
// fills to its minimum size on first use, grows to its maximum on
// demand, health-checks handles as they are taken, and races every
// render against a deadline: a handle that misses the deadline is
// evicted immediately and its eventual result discarded, so a stuck
// native render can never wedge a handle slot or answer a request
// twice.
//
// A [PoolSet] keys pools by (pixel-density scale, mode), because a
// handle's configuration bakes both in: a 2x tile handle cannot
// render 1x static images.
package render
