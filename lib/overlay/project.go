// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"math"

	"github.com/paulmach/orb"
)

// The projection is computed at a fixed base zoom and scaled by
// 2^(zoom-baseZoom), with 512-pixel world tiles. Keeping the base
// fixed means path geometry projects identically whether the request
// asked for zoom 3 or zoom 3.0000001 of the way the renderer frames
// its viewport.
const (
	baseZoom = 20
	tileSize = 512
)

// maxLatitude is the Web Mercator latitude bound; latitudes beyond it
// project to infinity and are clamped.
const maxLatitude = 85.0511288

// WorldSize returns the width in pixels of the whole world at a
// fractional zoom.
func WorldSize(zoom float64) float64 {
	baseWorld := float64(tileSize) * math.Exp2(baseZoom)
	return baseWorld * math.Exp2(zoom-baseZoom)
}

// Project maps a longitude/latitude to global pixel coordinates at a
// fractional zoom. (0, 0) is the top-left of the world; y grows
// south.
func Project(point orb.Point, zoom float64) (x, y float64) {
	latitude := point[1]
	if latitude > maxLatitude {
		latitude = maxLatitude
	}
	if latitude < -maxLatitude {
		latitude = -maxLatitude
	}

	baseWorld := float64(tileSize) * math.Exp2(baseZoom)
	sin := math.Sin(latitude * math.Pi / 180)
	baseX := (point[0] + 180) / 360 * baseWorld
	baseY := (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * baseWorld

	scale := math.Exp2(zoom - baseZoom)
	return baseX * scale, baseY * scale
}

// Unproject is the inverse of Project.
func Unproject(x, y, zoom float64) orb.Point {
	world := WorldSize(zoom)
	longitude := x/world*360 - 180
	n := math.Pi - 2*math.Pi*y/world
	latitude := math.Atan(math.Sinh(n)) * 180 / math.Pi
	return orb.Point{longitude, latitude}
}

// ClampVertical returns centerY adjusted so a viewport of the given
// height stays inside the world's vertical extent at zoom. When the
// world is shorter than the viewport the center is pinned to the
// world's middle.
func ClampVertical(centerY, viewportHeight, zoom float64) float64 {
	world := WorldSize(zoom)
	if world <= viewportHeight {
		return world / 2
	}
	half := viewportHeight / 2
	if centerY < half {
		return half
	}
	if centerY > world-half {
		return world - half
	}
	return centerY
}

// ClampCenter pins a viewport center so the visible window never
// leaves the vertical world extent at zoom. Longitude is untouched;
// it wraps instead of clamping.
func ClampCenter(center orb.Point, zoom float64, height int) orb.Point {
	x, y := Project(center, zoom)
	clamped := ClampVertical(y, float64(height), zoom)
	if clamped == y {
		return center
	}
	return orb.Point{center[0], Unproject(x, clamped, zoom)[1]}
}
