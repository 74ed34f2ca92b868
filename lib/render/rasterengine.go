// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	// Raster tiles arrive as PNG, JPEG, or WebP.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/tilecast/tilecast/lib/overlay"
)

// fetchConcurrency bounds parallel tile fetches per render.
const fetchConcurrency = 8

// RasterEngine renders viewports by stitching raster tiles fetched
// through the style's first raster source. It understands the raster
// subset of a style document: the source's tile URL template,
// tileSize, zoom range, and the background layer's color.
//
// Bearing rotates the stitched output; pitch has no effect. Styles
// with vector layers need a GL-backed engine instead.
type RasterEngine struct {
	config RasterEngineConfig
}

// RasterEngineConfig configures a RasterEngine.
type RasterEngineConfig struct {
	// Logger receives fetch and decode warnings. Defaults to a
	// discard logger.
	Logger *slog.Logger
}

// NewRasterEngine builds a raster stitching engine.
func NewRasterEngine(config RasterEngineConfig) *RasterEngine {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &RasterEngine{config: config}
}

type rasterStyleDoc struct {
	Sources map[string]rasterStyleSource `json:"sources"`
	Layers  []rasterStyleLayer           `json:"layers"`
}

type rasterStyleSource struct {
	Type     string   `json:"type"`
	Tiles    []string `json:"tiles"`
	TileSize int      `json:"tileSize"`
	MinZoom  *int     `json:"minzoom"`
	MaxZoom  *int     `json:"maxzoom"`
}

type rasterStyleLayer struct {
	Type  string                     `json:"type"`
	Paint map[string]json.RawMessage `json:"paint"`
}

// NewRenderer parses the raster subset of spec.Style and returns a
// stitching handle for it.
func (e *RasterEngine) NewRenderer(ctx context.Context, spec Spec) (Renderer, error) {
	if spec.Resolve == nil {
		return nil, fmt.Errorf("render: raster engine requires a resolver")
	}

	var doc rasterStyleDoc
	if err := json.Unmarshal(spec.Style, &doc); err != nil {
		return nil, fmt.Errorf("render: parsing style: %w", err)
	}

	names := make([]string, 0, len(doc.Sources))
	for name := range doc.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var source *rasterStyleSource
	for _, name := range names {
		candidate := doc.Sources[name]
		if candidate.Type == "raster" && len(candidate.Tiles) > 0 {
			source = &candidate
			break
		}
	}
	if source == nil {
		return nil, fmt.Errorf("render: style has no raster source with tiles")
	}

	tileSize := source.TileSize
	if tileSize <= 0 {
		tileSize = 512
	}
	minZoom, maxZoom := 0, 22
	if source.MinZoom != nil {
		minZoom = *source.MinZoom
	}
	if source.MaxZoom != nil {
		maxZoom = *source.MaxZoom
	}

	scale := spec.Scale
	if scale < 1 {
		scale = 1
	}

	return &rasterRenderer{
		template:   source.Tiles[0],
		tileSize:   tileSize,
		minZoom:    minZoom,
		maxZoom:    maxZoom,
		background: e.backgroundColor(doc.Layers),
		resolve:    spec.Resolve,
		scale:      scale,
		logger:     e.config.Logger,
	}, nil
}

// backgroundColor extracts the background layer's paint color, or
// transparent when the style declares none.
func (e *RasterEngine) backgroundColor(layers []rasterStyleLayer) color.NRGBA {
	for _, layer := range layers {
		if layer.Type != "background" {
			continue
		}
		raw, ok := layer.Paint["background-color"]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		parsed, err := overlay.ParseColor(value)
		if err != nil {
			e.config.Logger.Warn("unparseable background color", "value", value, "error", err)
			continue
		}
		return parsed
	}
	return color.NRGBA{}
}

type rasterRenderer struct {
	template   string
	tileSize   int
	minZoom    int
	maxZoom    int
	background color.NRGBA
	resolve    ResolveFunc
	scale      int
	logger     *slog.Logger
	closed     atomic.Bool
}

func (r *rasterRenderer) Render(ctx context.Context, params Params) ([]byte, error) {
	if r.closed.Load() {
		return nil, fmt.Errorf("render: renderer closed")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return nil, fmt.Errorf("render: empty viewport %dx%d", params.Width, params.Height)
	}

	width := params.Width * r.scale
	height := params.Height * r.scale
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	if r.background.A != 0 {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)
	}

	// A 256px tile covers half the world pixels of a 512px one, so
	// matching native resolution needs one level deeper.
	sourceZoom := int(math.Round(params.Zoom + math.Log2(512/float64(r.tileSize))))
	if sourceZoom > r.maxZoom {
		sourceZoom = r.maxZoom
	}
	if sourceZoom < r.minZoom {
		sourceZoom = r.minZoom
	}
	if sourceZoom < 0 {
		sourceZoom = 0
	}

	centerX, centerY := overlay.Project(params.Center, params.Zoom)

	if params.Bearing == 0 {
		left := centerX - float64(params.Width)/2
		top := centerY - float64(params.Height)/2
		r.stitch(ctx, canvas, params.Zoom, sourceZoom, left, top)
		return canvas.Pix, nil
	}

	// Rotated view: stitch a north-up square big enough to cover the
	// viewport at any bearing, then rotate it into place about the
	// center.
	radius := math.Ceil(math.Hypot(float64(params.Width), float64(params.Height)) / 2)
	side := int(2 * radius)
	stitched := image.NewRGBA(image.Rect(0, 0, side*r.scale, side*r.scale))
	r.stitch(ctx, stitched, params.Zoom, sourceZoom, centerX-radius, centerY-radius)

	theta := -params.Bearing * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)
	stitchedCenter := radius * float64(r.scale)
	destCenterX := float64(width) / 2
	destCenterY := float64(height) / 2
	transform := f64.Aff3{
		cos, -sin, destCenterX - cos*stitchedCenter + sin*stitchedCenter,
		sin, cos, destCenterY - sin*stitchedCenter - cos*stitchedCenter,
	}
	xdraw.BiLinear.Transform(canvas, transform, stitched, stitched.Bounds(), xdraw.Over, nil)
	return canvas.Pix, nil
}

// stitch draws every source tile overlapping the canvas. The canvas
// covers the world-pixel window starting at (left, top) in style
// pixels at the render zoom; rows beyond the poles are skipped and
// columns wrap across the antimeridian.
func (r *rasterRenderer) stitch(ctx context.Context, canvas *image.RGBA, zoom float64, sourceZoom int, left, top float64) {
	styleWidth := float64(canvas.Bounds().Dx()) / float64(r.scale)
	styleHeight := float64(canvas.Bounds().Dy()) / float64(r.scale)
	tileSpan := overlay.WorldSize(zoom) / math.Exp2(float64(sourceZoom))
	tileCount := 1 << sourceZoom

	firstColumn := int(math.Floor(left / tileSpan))
	lastColumn := int(math.Floor((left + styleWidth) / tileSpan))
	firstRow := int(math.Floor(top / tileSpan))
	lastRow := int(math.Floor((top + styleHeight) / tileSpan))
	if firstRow < 0 {
		firstRow = 0
	}
	if lastRow > tileCount-1 {
		lastRow = tileCount - 1
	}

	type tileCoord struct {
		column int
		row    int
	}
	var coords []tileCoord
	for column := firstColumn; column <= lastColumn; column++ {
		for row := firstRow; row <= lastRow; row++ {
			coords = append(coords, tileCoord{column: column, row: row})
		}
	}

	fetched := make([]image.Image, len(coords))
	var group sync.WaitGroup
	semaphore := make(chan struct{}, fetchConcurrency)
	for i, coord := range coords {
		group.Add(1)
		go func(i int, coord tileCoord) {
			defer group.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			wrapped := ((coord.column % tileCount) + tileCount) % tileCount
			fetched[i] = r.fetchTile(ctx, sourceZoom, wrapped, coord.row)
		}(i, coord)
	}
	group.Wait()

	deviceScale := float64(r.scale)
	for i, coord := range coords {
		if fetched[i] == nil {
			continue
		}
		x0 := int(math.Round((float64(coord.column)*tileSpan - left) * deviceScale))
		y0 := int(math.Round((float64(coord.row)*tileSpan - top) * deviceScale))
		x1 := int(math.Round((float64(coord.column+1)*tileSpan - left) * deviceScale))
		y1 := int(math.Round((float64(coord.row+1)*tileSpan - top) * deviceScale))
		destination := image.Rect(x0, y0, x1, y1)
		xdraw.ApproxBiLinear.Scale(canvas, destination, fetched[i], fetched[i].Bounds(), xdraw.Over, nil)
	}
}

func (r *rasterRenderer) fetchTile(ctx context.Context, zoom, column, row int) image.Image {
	ref := strings.NewReplacer(
		"{z}", strconv.Itoa(zoom),
		"{x}", strconv.Itoa(column),
		"{y}", strconv.Itoa(row),
	).Replace(r.template)

	asset, err := r.resolve(ctx, ref)
	if err != nil {
		r.logger.Warn("fetching raster tile", "ref", ref, "error", err)
		return nil
	}
	if asset.Absent || len(asset.Data) == 0 {
		return nil
	}
	decoded, _, err := image.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		r.logger.Warn("decoding raster tile", "ref", ref, "error", err)
		return nil
	}
	return decoded
}

func (r *rasterRenderer) Healthy() bool { return !r.closed.Load() }

func (r *rasterRenderer) Close() error {
	r.closed.Store(true)
	return nil
}
