// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"github.com/paulmach/orb"
)

// WorldBounds is the whole-world extent in Web Mercator's latitude
// range, substituted when an archive declares no bounds.
var WorldBounds = orb.Bound{
	Min: orb.Point{-180, -85.0511288},
	Max: orb.Point{180, 85.0511288},
}

// Metadata is the serving view of one archive: header fields merged
// with the metadata document, with absent fields filled so that
// downstream consumers (TileJSON, style sources, zoom checks) never
// see a hole.
type Metadata struct {
	// Format is the stored tile codec.
	Format TileType

	// MinZoom and MaxZoom bound served zoom levels.
	MinZoom uint8
	MaxZoom uint8

	// Bounds is the coverage extent. Never zero: archives without
	// declared bounds get WorldBounds.
	Bounds orb.Bound

	// Center is the declared map center with CenterZoom as its zoom.
	// Archives without an explicit center zoom get maxZoom/2.
	Center     orb.Point
	CenterZoom uint8

	// Name and Attribution come from the metadata document when
	// present.
	Name        string
	Attribution string

	// Document is the archive's full metadata document.
	Document map[string]any
}

// ResolveMetadata merges an archive header and metadata document into
// the serving view, applying the defaulting rules: all-zero bounds
// become world bounds, and a missing center zoom becomes maxZoom/2
// over the header's center point.
func ResolveMetadata(header Header, document map[string]any) *Metadata {
	meta := &Metadata{
		Format:  header.TileType,
		MinZoom: header.MinZoom,
		MaxZoom: header.MaxZoom,
		Bounds: orb.Bound{
			Min: orb.Point{header.MinLon, header.MinLat},
			Max: orb.Point{header.MaxLon, header.MaxLat},
		},
		Center:   orb.Point{header.CenterLon, header.CenterLat},
		Document: document,
	}
	if header.MinLon == 0 && header.MinLat == 0 && header.MaxLon == 0 && header.MaxLat == 0 {
		meta.Bounds = WorldBounds
	}
	if header.CenterZoom >= 0 {
		meta.CenterZoom = uint8(header.CenterZoom)
	} else {
		meta.CenterZoom = header.MaxZoom / 2
	}
	if document != nil {
		if name, ok := document["name"].(string); ok {
			meta.Name = name
		}
		if attribution, ok := document["attribution"].(string); ok {
			meta.Attribution = attribution
		}
	}
	return meta
}

// Contains reports whether a tile address lies inside the archive's
// zoom range.
func (m *Metadata) Contains(z uint8) bool {
	return z >= m.MinZoom && z <= m.MaxZoom
}
