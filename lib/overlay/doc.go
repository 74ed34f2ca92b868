// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

// Package overlay draws declarative vector decorations over rendered
// map images.
//
// A static-image request may carry path and marker descriptors in its
// query string. [ParsePath] and [ParseMarker] turn those descriptors
// into geometry, and a [Compositor] projects them through the same
// Web Mercator transform the base render used and rasterizes them
// onto a transparent layer. [Compose] then flattens the layers in
// fixed order: base render, user overlay, watermark, attribution.
//
// All geographic math runs through [Project], which computes global
// pixel positions at a fixed base zoom and scales them to the
// requested zoom, so overlay geometry lands on exactly the pixels the
// renderer put the map on.
package overlay
