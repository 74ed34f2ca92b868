// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"

	// Marker icons arrive as PNG, JPEG, or WebP.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/tilecast/tilecast/lib/clock"
)

const (
	// DefaultIconTimeout bounds one marker icon load.
	DefaultIconTimeout = 5 * time.Second

	// DefaultIconCacheSize is the number of decoded icons kept.
	DefaultIconCacheSize = 64
)

// CompositorConfig configures a Compositor.
type CompositorConfig struct {
	// FetchIcon loads marker icon bytes by reference. Required when
	// markers are drawn; a compositor without it skips all markers.
	FetchIcon func(ctx context.Context, ref string) ([]byte, error)

	// IconCacheSize bounds the decoded-icon cache. Defaults to
	// DefaultIconCacheSize.
	IconCacheSize int

	// IconTimeout bounds one icon load. Defaults to
	// DefaultIconTimeout.
	IconTimeout time.Duration

	// Clock supplies time for icon load deadlines. Defaults to the
	// real clock.
	Clock clock.Clock

	// Logger receives warnings for skipped markers. Defaults to a
	// discard logger.
	Logger *slog.Logger
}

func (c *CompositorConfig) applyDefaults() {
	if c.IconCacheSize <= 0 {
		c.IconCacheSize = DefaultIconCacheSize
	}
	if c.IconTimeout <= 0 {
		c.IconTimeout = DefaultIconTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Compositor rasterizes path and marker overlays. It is safe for
// concurrent use; the icon cache is the only shared state.
type Compositor struct {
	config CompositorConfig
	icons  *lru.Cache[string, image.Image]
}

// NewCompositor builds a compositor from config.
func NewCompositor(config CompositorConfig) (*Compositor, error) {
	config.applyDefaults()
	icons, err := lru.New[string, image.Image](config.IconCacheSize)
	if err != nil {
		return nil, fmt.Errorf("overlay: creating icon cache: %w", err)
	}
	return &Compositor{config: config, icons: icons}, nil
}

// View fixes the viewport geometry an overlay must align with. Width
// and Height are in style pixels; Scale is the pixel-density
// multiplier of the final image.
type View struct {
	Zoom    float64
	Center  orb.Point
	Bearing float64
	Width   int
	Height  int
	Scale   int
}

// Render rasterizes paths and markers onto a transparent layer
// aligned with the viewport. It reports false, and no image, when
// there is nothing to draw.
func (c *Compositor) Render(ctx context.Context, view View, paths []Path, markers []Marker) (image.Image, bool) {
	if len(paths) == 0 && len(markers) == 0 {
		return nil, false
	}
	scale := view.Scale
	if scale < 1 {
		scale = 1
	}
	dc := gg.NewContext(view.Width*scale, view.Height*scale)

	centerX, centerY := Project(view.Center, view.Zoom)
	centerY = ClampVertical(centerY, float64(view.Height), view.Zoom)

	dc.Scale(float64(scale), float64(scale))
	if view.Bearing == 0 {
		// Unrotated views need only a translation.
		dc.Translate(float64(view.Width)/2-centerX, float64(view.Height)/2-centerY)
	} else {
		dc.Translate(float64(view.Width)/2, float64(view.Height)/2)
		dc.Rotate(-view.Bearing * math.Pi / 180)
		dc.Translate(-centerX, -centerY)
	}

	for _, path := range paths {
		drawPath(dc, view.Zoom, float64(scale), path)
	}
	if len(markers) > 0 {
		icons := c.loadIcons(ctx, markers)
		for _, marker := range markers {
			icon, ok := icons[marker.Icon]
			if !ok {
				continue
			}
			drawMarker(dc, view.Zoom, marker, icon)
		}
	}
	return dc.Image(), true
}

// drawPath fills, then borders, then strokes one path. The border is
// a wider stroke pass beneath the main stroke.
func drawPath(dc *gg.Context, zoom, deviceScale float64, path Path) {
	if len(path.Points) < 2 {
		return
	}
	for i, point := range path.Points {
		x, y := Project(point, zoom)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}

	style := path.Style
	dc.SetLineCap(style.LineCap)
	dc.SetLineJoin(style.LineJoin)
	if style.HasFill {
		dc.SetColor(style.Fill)
		dc.FillPreserve()
	}
	if style.HasBorder && style.BorderWidth > 0 {
		dc.SetColor(style.Border)
		dc.SetLineWidth((style.Width + 2*style.BorderWidth) * deviceScale)
		dc.StrokePreserve()
	}
	if style.Width > 0 {
		dc.SetColor(style.Stroke)
		dc.SetLineWidth(style.Width * deviceScale)
		dc.Stroke()
	} else {
		dc.ClearPath()
	}
}

// drawMarker pins the icon's bottom center to the marker's location,
// applying the marker's own scale and pixel offsets.
func drawMarker(dc *gg.Context, zoom float64, marker Marker, icon image.Image) {
	x, y := Project(marker.Location, zoom)
	dc.Push()
	dc.Translate(x+marker.OffsetX*marker.Scale, y+marker.OffsetY*marker.Scale)
	dc.Scale(marker.Scale, marker.Scale)
	dc.DrawImageAnchored(icon, 0, 0, 0.5, 1)
	dc.Pop()
}

// loadIcons resolves every distinct icon reference, concurrently for
// those not already cached. Failed loads are logged and their markers
// skipped; one bad icon never aborts the overlay.
func (c *Compositor) loadIcons(ctx context.Context, markers []Marker) map[string]image.Image {
	loaded := make(map[string]image.Image)
	seen := make(map[string]bool)
	var pending []string
	for _, marker := range markers {
		if seen[marker.Icon] {
			continue
		}
		seen[marker.Icon] = true
		if icon, ok := c.icons.Get(marker.Icon); ok {
			loaded[marker.Icon] = icon
			continue
		}
		pending = append(pending, marker.Icon)
	}

	var (
		mu    sync.Mutex
		group sync.WaitGroup
	)
	for _, ref := range pending {
		group.Add(1)
		go func(ref string) {
			defer group.Done()
			icon, err := c.loadIcon(ctx, ref)
			if err != nil {
				c.config.Logger.Warn("skipping marker icon", "icon", ref, "error", err)
				return
			}
			c.icons.Add(ref, icon)
			mu.Lock()
			loaded[ref] = icon
			mu.Unlock()
		}(ref)
	}
	group.Wait()
	return loaded
}

// loadIcon fetches and decodes one icon, bounded by the icon timeout.
func (c *Compositor) loadIcon(ctx context.Context, ref string) (image.Image, error) {
	if c.config.FetchIcon == nil {
		return nil, fmt.Errorf("overlay: no icon fetcher configured")
	}
	type fetchResult struct {
		data []byte
		err  error
	}
	done := make(chan fetchResult, 1)
	go func() {
		data, err := c.config.FetchIcon(ctx, ref)
		done <- fetchResult{data: data, err: err}
	}()

	select {
	case result := <-done:
		if result.err != nil {
			return nil, result.err
		}
		icon, _, err := image.Decode(bytes.NewReader(result.data))
		if err != nil {
			return nil, fmt.Errorf("overlay: decoding icon: %w", err)
		}
		return icon, nil
	case <-c.config.Clock.After(c.config.IconTimeout):
		return nil, fmt.Errorf("overlay: icon load timed out after %s", c.config.IconTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
