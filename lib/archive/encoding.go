// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Encoding identifies the compression wrapper around stored tile
// bytes. Vector tiles are usually stored gzip-compressed; the serving
// path passes them through with a Content-Encoding header, while the
// rendering path decodes them before the renderer parses them.
type Encoding int

const (
	EncodingIdentity Encoding = iota
	EncodingGzip
	EncodingZstd
)

func (e Encoding) String() string {
	switch e {
	case EncodingGzip:
		return "gzip"
	case EncodingZstd:
		return "zstd"
	}
	return "identity"
}

// SniffEncoding inspects magic bytes to classify a stored tile's
// compression wrapper.
func SniffEncoding(data []byte) Encoding {
	switch {
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		return EncodingGzip
	case len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd:
		return EncodingZstd
	}
	return EncodingIdentity
}

var (
	zstdOnce    sync.Once
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// Decode returns the identity bytes of a stored tile, decompressing
// gzip and zstd wrappers. Unwrapped bytes pass through untouched.
func Decode(data []byte) ([]byte, error) {
	switch SniffEncoding(data) {
	case EncodingGzip:
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("archive: opening gzip tile: %w", err)
		}
		defer reader.Close()
		decoded, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("archive: decompressing gzip tile: %w", err)
		}
		return decoded, nil
	case EncodingZstd:
		zstdOnce.Do(func() {
			zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		})
		if zstdErr != nil {
			return nil, fmt.Errorf("archive: creating zstd decoder: %w", zstdErr)
		}
		decoded, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("archive: decompressing zstd tile: %w", err)
		}
		return decoded, nil
	}
	return data, nil
}
