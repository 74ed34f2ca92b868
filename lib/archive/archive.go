// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"errors"

	"github.com/tilecast/tilecast/lib/source"
)

// Header is the fixed part of an archive's self-description.
type Header struct {
	// MinZoom and MaxZoom bound the zoom levels the archive stores.
	MinZoom uint8
	MaxZoom uint8

	// TileType is the codec of stored tiles.
	TileType TileType

	// MinLon, MinLat, MaxLon, MaxLat are the declared coverage
	// bounds in degrees. All-zero means the archive declares none.
	MinLon, MinLat float64
	MaxLon, MaxLat float64

	// CenterLon and CenterLat are the declared map center.
	CenterLon, CenterLat float64

	// CenterZoom is the declared center zoom, negative when the
	// archive does not declare one.
	CenterZoom int
}

// Handle is an open tile archive. Implementations decode one concrete
// archive format; everything above this interface is format-neutral.
// A Handle must be safe for concurrent use.
type Handle interface {
	// Header returns the archive's fixed self-description.
	Header(ctx context.Context) (Header, error)

	// Metadata returns the archive's free-form metadata document
	// (name, attribution, vector layer declarations, and so on).
	Metadata(ctx context.Context) (map[string]any, error)

	// Tile returns the stored bytes for one tile address, or
	// (nil, nil) when the archive stores no tile there. Stored bytes
	// keep their stored compression wrapper; see Decode.
	Tile(ctx context.Context, z uint8, x, y uint32) ([]byte, error)

	// Close releases the archive and any underlying source.
	Close() error
}

// Driver opens archives of one format. A driver that reads byte
// ranges constructs its own source.Source from the location; a driver
// that walks the filesystem uses the location's path directly.
type Driver interface {
	Open(ctx context.Context, location source.Location, config source.Config) (Handle, error)
}

// ErrRemoteUnsupported reports that a driver was asked to open a
// location type it cannot serve, such as a filesystem-walking driver
// given an object-store URL. Configuration loading treats this as
// fatal: the operator asked for something this deployment can never
// do, and silently skipping the archive would hide that.
var ErrRemoteUnsupported = errors.New("archive: driver cannot serve remote locations")
