// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tilecast/tilecast/lib/source"
)

// DirDriver opens archives laid out as a directory tree of
// {z}/{x}/{y}.{ext} tile files with a metadata.json document at the
// root — the layout tile cutters and mbtiles exporters write. It is
// the one driver built into the server binary; byte-range formats
// come from their own driver modules.
type DirDriver struct{}

// Open reads metadata.json and prepares a Handle over the tree. The
// location must be local; a directory cannot be range-read from a
// remote backend.
func (DirDriver) Open(ctx context.Context, location source.Location, config source.Config) (Handle, error) {
	if location.Type != source.TypeLocal {
		return nil, fmt.Errorf("%w: directory archive %s", ErrRemoteUnsupported, location)
	}
	root := location.Path
	info, err := os.Stat(root)
	if err != nil {
		return nil, &source.Error{Kind: source.KindNotFound, Location: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &source.Error{
			Kind:     source.KindInvalidLocation,
			Location: root,
			Err:      errors.New("directory archive location is not a directory"),
		}
	}

	raw, err := os.ReadFile(filepath.Join(root, "metadata.json"))
	if err != nil {
		return nil, &source.Error{Kind: source.KindIO, Location: root, Err: fmt.Errorf("reading metadata.json: %w", err)}
	}
	var document map[string]any
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, &source.Error{Kind: source.KindIO, Location: root, Err: fmt.Errorf("parsing metadata.json: %w", err)}
	}

	header := headerFromDocument(document)
	return &dirHandle{
		root:     root,
		header:   header,
		document: document,
		ext:      header.TileType.Extension(),
	}, nil
}

// headerFromDocument assembles a Header from the loose metadata.json
// conventions: values may be JSON numbers or the stringified numbers
// mbtiles metadata tables carry.
func headerFromDocument(document map[string]any) Header {
	header := Header{
		TileType:   TileTypeFromName(stringField(document, "format")),
		CenterZoom: -1,
		MaxZoom:    14,
	}
	if minZoom, ok := numberField(document, "minzoom"); ok {
		header.MinZoom = uint8(minZoom)
	}
	if maxZoom, ok := numberField(document, "maxzoom"); ok {
		header.MaxZoom = uint8(maxZoom)
	}
	if bounds, ok := numberListField(document, "bounds", 4); ok {
		header.MinLon, header.MinLat = bounds[0], bounds[1]
		header.MaxLon, header.MaxLat = bounds[2], bounds[3]
	}
	if center, ok := numberListField(document, "center", 3); ok {
		header.CenterLon, header.CenterLat = center[0], center[1]
		header.CenterZoom = int(center[2])
	} else if center, ok := numberListField(document, "center", 2); ok {
		header.CenterLon, header.CenterLat = center[0], center[1]
	}
	return header
}

func stringField(document map[string]any, key string) string {
	value, _ := document[key].(string)
	return value
}

func numberField(document map[string]any, key string) (float64, bool) {
	switch value := document[key].(type) {
	case float64:
		return value, true
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

// numberListField reads a comma-separated string or JSON array of
// exactly want numbers.
func numberListField(document map[string]any, key string, want int) ([]float64, bool) {
	var parts []float64
	switch value := document[key].(type) {
	case string:
		for _, piece := range strings.Split(value, ",") {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(piece), 64)
			if err != nil {
				return nil, false
			}
			parts = append(parts, parsed)
		}
	case []any:
		for _, element := range value {
			number, ok := element.(float64)
			if !ok {
				return nil, false
			}
			parts = append(parts, number)
		}
	default:
		return nil, false
	}
	if len(parts) != want {
		return nil, false
	}
	return parts, true
}

type dirHandle struct {
	root     string
	header   Header
	document map[string]any
	ext      string
}

func (h *dirHandle) Header(ctx context.Context) (Header, error) {
	return h.header, nil
}

func (h *dirHandle) Metadata(ctx context.Context) (map[string]any, error) {
	return h.document, nil
}

func (h *dirHandle) Tile(ctx context.Context, z uint8, x, y uint32) ([]byte, error) {
	path := filepath.Join(h.root,
		strconv.Itoa(int(z)),
		strconv.FormatUint(uint64(x), 10),
		fmt.Sprintf("%d.%s", y, h.ext))
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &source.Error{Kind: source.KindIO, Location: path, Err: err}
	}
	return data, nil
}

func (h *dirHandle) Close() error { return nil }
