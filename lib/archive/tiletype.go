// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package archive

// TileType identifies the codec of stored tiles. The numeric values
// are the archive header's tile type codes.
type TileType uint8

const (
	// TileUnknown is an undeclared or unrecognized tile codec.
	TileUnknown TileType = 0

	// TileVector is a Mapbox Vector Tile (protobuf).
	TileVector TileType = 1

	// TilePNG, TileJPEG, TileWebP, and TileAVIF are raster codecs.
	TilePNG  TileType = 2
	TileJPEG TileType = 3
	TileWebP TileType = 4
	TileAVIF TileType = 5
)

// TileTypeFromCode maps an archive header code to a TileType. Codes
// outside the known range read as TileUnknown rather than failing, so
// archives written by newer tools still open.
func TileTypeFromCode(code uint8) TileType {
	if code > uint8(TileAVIF) {
		return TileUnknown
	}
	return TileType(code)
}

// TileTypeFromName maps a metadata format name to a TileType.
func TileTypeFromName(name string) TileType {
	switch name {
	case "pbf", "mvt":
		return TileVector
	case "png":
		return TilePNG
	case "jpg", "jpeg":
		return TileJPEG
	case "webp":
		return TileWebP
	case "avif":
		return TileAVIF
	}
	return TileUnknown
}

func (t TileType) String() string {
	switch t {
	case TileVector:
		return "pbf"
	case TilePNG:
		return "png"
	case TileJPEG:
		return "jpeg"
	case TileWebP:
		return "webp"
	case TileAVIF:
		return "avif"
	}
	return "unknown"
}

// Extension returns the file extension, without the dot, that tiles
// of this type are addressed by.
func (t TileType) Extension() string {
	if t == TileJPEG {
		return "jpg"
	}
	return t.String()
}

// ContentType returns the MIME type served for tiles of this type.
func (t TileType) ContentType() string {
	switch t {
	case TileVector:
		return "application/x-protobuf"
	case TilePNG:
		return "image/png"
	case TileJPEG:
		return "image/jpeg"
	case TileWebP:
		return "image/webp"
	case TileAVIF:
		return "image/avif"
	}
	return "application/octet-stream"
}

// Raster reports whether the type is an image codec.
func (t TileType) Raster() bool {
	switch t {
	case TilePNG, TileJPEG, TileWebP, TileAVIF:
		return true
	}
	return false
}
