// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"testing"
)

func TestParseDataTilePath(t *testing.T) {
	address, err := parseDataTilePath("3", "2", "5.pbf")
	if err != nil {
		t.Fatalf("parseDataTilePath() = %v, want nil", err)
	}
	if address.z != 3 || address.x != 2 || address.y != 5 {
		t.Errorf("address = %d/%d/%d, want 3/2/5", address.z, address.x, address.y)
	}
	if address.scale != 1 {
		t.Errorf("scale = %d, want 1", address.scale)
	}
	if address.format != "pbf" {
		t.Errorf("format = %q, want %q", address.format, "pbf")
	}
}

func TestParseDataTilePathRejects(t *testing.T) {
	tests := []struct {
		name string
		z, x string
		file string
	}{
		{name: "no_extension", z: "3", x: "2", file: "5"},
		{name: "empty_extension", z: "3", x: "2", file: "5."},
		{name: "scale_suffix", z: "3", x: "2", file: "5@2x.pbf"},
		{name: "zoom_not_a_number", z: "abc", x: "2", file: "5.pbf"},
		{name: "zoom_too_deep", z: "23", x: "2", file: "5.pbf"},
		{name: "negative_column", z: "3", x: "-1", file: "5.pbf"},
		{name: "column_outside_grid", z: "3", x: "8", file: "5.pbf"},
		{name: "row_outside_grid", z: "3", x: "2", file: "8.pbf"},
		{name: "row_not_a_number", z: "3", x: "2", file: "five.pbf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseDataTilePath(tt.z, tt.x, tt.file); err == nil {
				t.Errorf("parseDataTilePath(%q, %q, %q) = nil, want error", tt.z, tt.x, tt.file)
			}
		})
	}
}

func TestParseRenderTilePathScale(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		wantScale int
		wantErr   bool
	}{
		{name: "no_suffix", file: "5.png", wantScale: 1},
		{name: "two_x", file: "5@2x.png", wantScale: 2},
		{name: "three_x", file: "5@3x.png", wantScale: 3},
		{name: "beyond_max", file: "5@4x.png", wantErr: true},
		{name: "zero", file: "5@0x.png", wantErr: true},
		{name: "no_digits", file: "5@x.png", wantErr: true},
		{name: "missing_x", file: "5@2.png", wantErr: true},
		{name: "negative", file: "5@-1x.png", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			address, err := parseRenderTilePath("3", "2", tt.file, 3)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseRenderTilePath(%q) = nil, want error", tt.file)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRenderTilePath(%q) = %v, want nil", tt.file, err)
			}
			if address.scale != tt.wantScale {
				t.Errorf("scale = %d, want %d", address.scale, tt.wantScale)
			}
			if address.format != "png" {
				t.Errorf("format = %q, want %q", address.format, "png")
			}
		})
	}
}

func TestParseStaticPath(t *testing.T) {
	address, err := parseStaticPath("8.5,47.3,10.5@30,45", "600x400@2x.png", 3)
	if err != nil {
		t.Fatalf("parseStaticPath() = %v, want nil", err)
	}
	if address.center[0] != 8.5 || address.center[1] != 47.3 {
		t.Errorf("center = %v, want (8.5, 47.3)", address.center)
	}
	if address.zoom != 10.5 {
		t.Errorf("zoom = %g, want 10.5", address.zoom)
	}
	if address.bearing != 30 {
		t.Errorf("bearing = %g, want 30", address.bearing)
	}
	if address.pitch != 45 {
		t.Errorf("pitch = %g, want 45", address.pitch)
	}
	if address.width != 600 || address.height != 400 {
		t.Errorf("size = %dx%d, want 600x400", address.width, address.height)
	}
	if address.scale != 2 {
		t.Errorf("scale = %d, want 2", address.scale)
	}
	if address.format != "png" {
		t.Errorf("format = %q, want %q", address.format, "png")
	}
}

func TestParseStaticPathDefaults(t *testing.T) {
	address, err := parseStaticPath("0,0,2", "256x256.jpeg", 3)
	if err != nil {
		t.Fatalf("parseStaticPath() = %v, want nil", err)
	}
	if address.bearing != 0 || address.pitch != 0 {
		t.Errorf("bearing/pitch = %g/%g, want 0/0", address.bearing, address.pitch)
	}
	if address.scale != 1 {
		t.Errorf("scale = %d, want 1", address.scale)
	}
}

func TestParseStaticPathNormalizesBearing(t *testing.T) {
	address, err := parseStaticPath("0,0,2@-90", "100x100.png", 3)
	if err != nil {
		t.Fatalf("parseStaticPath() = %v, want nil", err)
	}
	if address.bearing != 270 {
		t.Errorf("bearing = %g, want 270", address.bearing)
	}

	address, err = parseStaticPath("0,0,2@450", "100x100.png", 3)
	if err != nil {
		t.Fatalf("parseStaticPath() = %v, want nil", err)
	}
	if address.bearing != 90 {
		t.Errorf("bearing = %g, want 90", address.bearing)
	}
}

func TestParseStaticPathRejects(t *testing.T) {
	tests := []struct {
		name     string
		position string
		size     string
	}{
		{name: "two_part_position", position: "8.5,47.3", size: "100x100.png"},
		{name: "longitude_out_of_range", position: "181,0,2", size: "100x100.png"},
		{name: "latitude_out_of_range", position: "0,91,2", size: "100x100.png"},
		{name: "zoom_negative", position: "0,0,-1", size: "100x100.png"},
		{name: "zoom_too_deep", position: "0,0,23", size: "100x100.png"},
		{name: "pitch_out_of_range", position: "0,0,2@0,61", size: "100x100.png"},
		{name: "bearing_not_a_number", position: "0,0,2@north", size: "100x100.png"},
		{name: "no_extension", position: "0,0,2", size: "100x100"},
		{name: "zero_width", position: "0,0,2", size: "0x100.png"},
		{name: "width_over_limit", position: "0,0,2", size: "2049x100.png"},
		{name: "height_over_limit", position: "0,0,2", size: "100x2049.png"},
		{name: "not_a_size", position: "0,0,2", size: "axb.png"},
		{name: "scale_beyond_max", position: "0,0,2", size: "100x100@4x.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseStaticPath(tt.position, tt.size, 3); err == nil {
				t.Errorf("parseStaticPath(%q, %q) = nil, want error", tt.position, tt.size)
			}
		})
	}
}
