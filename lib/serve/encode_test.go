// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solidImage(width, height int, fill color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	return img
}

func TestEncodeImagePNG(t *testing.T) {
	data, contentType, err := encodeImage(solidImage(8, 6, color.NRGBA{R: 200, A: 255}), "png")
	if err != nil {
		t.Fatalf("encodeImage() = %v, want nil", err)
	}
	if contentType != "image/png" {
		t.Errorf("content type = %q, want image/png", contentType)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if decoded.Bounds().Dx() != 8 || decoded.Bounds().Dy() != 6 {
		t.Errorf("decoded size = %v, want 8x6", decoded.Bounds())
	}
}

func TestEncodeImageJPEG(t *testing.T) {
	data, contentType, err := encodeImage(solidImage(8, 6, color.NRGBA{G: 200, A: 255}), "jpg")
	if err != nil {
		t.Fatalf("encodeImage() = %v, want nil", err)
	}
	if contentType != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", contentType)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
}

func TestEncodeImageUnsupported(t *testing.T) {
	for _, format := range []string{"webp", "avif", "pbf", "gif", ""} {
		_, _, err := encodeImage(solidImage(2, 2, color.NRGBA{A: 255}), format)
		if err == nil {
			t.Errorf("encodeImage(%q) = nil, want error", format)
			continue
		}
		if !IsUnsupportedFormat(err) {
			t.Errorf("encodeImage(%q) error = %v, want UnsupportedFormatError", format, err)
		}
	}
}
