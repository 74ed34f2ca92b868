// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"context"
	"time"

	"github.com/paulmach/orb"
)

// Mode selects the framing profile a handle is configured for. Tile
// handles render 512-pixel world tiles on integer zoom levels; static
// handles render arbitrary viewports with fractional zoom, bearing,
// and pitch.
type Mode int

const (
	ModeTile Mode = iota
	ModeStatic
)

func (m Mode) String() string {
	switch m {
	case ModeTile:
		return "tile"
	case ModeStatic:
		return "static"
	default:
		return "unknown"
	}
}

// Params describes one viewport to render.
type Params struct {
	// Zoom is the fractional zoom level.
	Zoom float64

	// Center is the viewport center as (longitude, latitude).
	Center orb.Point

	// Bearing rotates the viewport clockwise from north, in degrees.
	Bearing float64

	// Pitch tilts the camera from straight down, in degrees.
	Pitch float64

	// Width and Height are the viewport size in style pixels. The
	// produced raster is this size multiplied by the handle's
	// pixel-density scale.
	Width  int
	Height int
}

// Asset is one resolved style resource: a tile, glyph range, sprite
// sheet, or any other document a style references.
type Asset struct {
	Data []byte

	// Modified and Expires carry the resource's caching metadata when
	// the origin provided any.
	Modified time.Time
	Expires  time.Time
	ETag     string

	// Absent marks an address that is legitimately empty, such as a
	// missing tile in a sparse archive. The renderer skips the
	// resource instead of treating the fetch as failed.
	Absent bool
}

// ResolveFunc fetches a style resource by reference. References use
// the schemes of the style document: pmtiles:// and mbtiles:// for
// archive tiles, sprites:// and fonts:// for style assets, plus plain
// http(s) URLs and local paths.
type ResolveFunc func(ctx context.Context, ref string) (Asset, error)

// Spec fixes the configuration a renderer handle is built with.
type Spec struct {
	// Style is the style document the handle renders.
	Style []byte

	// Scale is the pixel-density multiplier, 1 for 1x.
	Scale int

	// Mode selects tile or static framing.
	Mode Mode

	// Resolve fetches resources the style references.
	Resolve ResolveFunc
}

// Renderer is one stateful rendering handle. Implementations are not
// required to be safe for concurrent use; the pool serializes access
// so only one Render runs on a handle at a time.
type Renderer interface {
	// Render produces the viewport as raw RGBA, 4 bytes per pixel,
	// (Width*Scale)x(Height*Scale) pixels in row-major order.
	Render(ctx context.Context, params Params) ([]byte, error)

	// Healthy reports whether the handle can still render. The pool
	// evicts handles that report false.
	Healthy() bool

	// Close releases the handle's resources.
	Close() error
}

// Engine constructs renderer handles for a pool.
type Engine interface {
	NewRenderer(ctx context.Context, spec Spec) (Renderer, error)
}
