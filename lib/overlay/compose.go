// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FromRaw wraps a renderer's raw RGBA output in an image without
// copying. The buffer must be exactly width*height*4 bytes.
func FromRaw(data []byte, width, height int) (*image.RGBA, error) {
	if len(data) != width*height*4 {
		return nil, fmt.Errorf("overlay: raw buffer is %d bytes, want %d for %dx%d",
			len(data), width*height*4, width, height)
	}
	return &image.RGBA{
		Pix:    data,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

// Compose flattens layers bottom-up onto one canvas. Nil layers are
// skipped, so callers can pass optional layers unconditionally.
func Compose(width, height int, layers ...image.Image) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		draw.Draw(canvas, canvas.Bounds(), layer, layer.Bounds().Min, draw.Over)
	}
	return canvas
}

var (
	fontOnce   sync.Once
	fontParsed *opentype.Font
	fontErr    error
)

func fontFace(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontParsed, fontErr = opentype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return opentype.NewFace(fontParsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Watermark renders the server watermark as a transparent layer:
// small text in the bottom-left corner with a light halo so it stays
// readable on any basemap. Returns nil for empty text.
func Watermark(text string, width, height, scale int) image.Image {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if scale < 1 {
		scale = 1
	}
	face, err := fontFace(10 * float64(scale))
	if err != nil {
		return nil
	}

	dc := gg.NewContext(width*scale, height*scale)
	dc.SetFontFace(face)
	x := 5 * float64(scale)
	y := float64(height*scale) - 5*float64(scale)

	dc.SetColor(color.NRGBA{R: 255, G: 255, B: 255, A: 102})
	for _, offset := range [][2]float64{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		dc.DrawString(text, x+offset[0]*float64(scale), y+offset[1]*float64(scale))
	}
	dc.SetColor(color.NRGBA{A: 102})
	dc.DrawString(text, x, y)
	return dc.Image()
}

// Attribution renders the attribution box shown on static images: a
// translucent white box in the bottom-right corner holding the
// archive's attribution text with any HTML markup stripped. Returns
// nil when nothing remains after stripping.
func Attribution(text string, width, height, scale int) image.Image {
	text = StripTags(text)
	if text == "" {
		return nil
	}
	if scale < 1 {
		scale = 1
	}
	face, err := fontFace(10 * float64(scale))
	if err != nil {
		return nil
	}

	dc := gg.NewContext(width*scale, height*scale)
	dc.SetFontFace(face)
	textWidth, textHeight := dc.MeasureString(text)
	pad := 4 * float64(scale)
	boxWidth := textWidth + 2*pad
	boxHeight := textHeight + 2*pad
	x := float64(width*scale) - boxWidth
	y := float64(height*scale) - boxHeight

	dc.SetColor(color.NRGBA{R: 255, G: 255, B: 255, A: 204})
	dc.DrawRectangle(x, y, boxWidth, boxHeight)
	dc.Fill()
	dc.SetColor(color.NRGBA{A: 230})
	dc.DrawString(text, x+pad, y+pad+textHeight*0.8)
	return dc.Image()
}

// StripTags removes HTML elements from attribution text, keeping
// element contents: `© <a href="...">OpenMapTiles</a>` becomes
// `© OpenMapTiles`.
func StripTags(text string) string {
	var plain strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			plain.WriteRune(r)
		}
	}
	return strings.TrimSpace(plain.String())
}
