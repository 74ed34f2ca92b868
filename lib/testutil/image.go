// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg" // register decoder for DecodeImage
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// SolidPNG returns an encoded PNG of the given size filled with a
// single color. Tile, icon, and placeholder tests use these as remote
// fixture bodies.
func SolidPNG(t *testing.T, width, height int, fill color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding %dx%d fixture: %v", width, height, err)
	}
	return buf.Bytes()
}

// DecodeImage decodes an encoded raster body (PNG or JPEG) and fails
// the test if it does not parse.
func DecodeImage(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding %d-byte image: %v", len(data), err)
	}
	return img
}

// WriteFile writes data to name under dir, creating parent
// directories, and fails the test on error. Returns the full path.
// Archive-directory tests use this to lay out z/x/y tile trees.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}
