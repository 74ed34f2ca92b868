// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/tilecast/tilecast/lib/archive"
)

const jpegQuality = 90

// UnsupportedFormatError reports a request for a rendered output
// format the server cannot encode. Stored tiles in these formats are
// served as-is; only encoding is restricted.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("serve: cannot encode rendered output as %q", e.Format)
}

// IsUnsupportedFormat reports whether err is an UnsupportedFormatError.
func IsUnsupportedFormat(err error) bool {
	var formatErr *UnsupportedFormatError
	return errors.As(err, &formatErr)
}

// encodeImage serializes a rendered image in the requested format,
// returning the bytes and their content type.
func encodeImage(img image.Image, format string) ([]byte, string, error) {
	tileType := archive.TileTypeFromName(format)
	var buffer bytes.Buffer
	switch tileType {
	case archive.TilePNG:
		if err := png.Encode(&buffer, img); err != nil {
			return nil, "", fmt.Errorf("serve: encoding png: %w", err)
		}
	case archive.TileJPEG:
		if err := jpeg.Encode(&buffer, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", fmt.Errorf("serve: encoding jpeg: %w", err)
		}
	default:
		return nil, "", &UnsupportedFormatError{Format: format}
	}
	return buffer.Bytes(), tileType.ContentType(), nil
}
