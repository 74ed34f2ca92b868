// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Marker option bounds: scale strictly inside (0, 10), offsets
// strictly inside (-1000, 1000).
const (
	maxMarkerScale  = 10
	maxMarkerOffset = 1000
)

// Marker is one icon pinned to a location by its bottom center.
//
// Scale multiplies the icon size; OffsetX and OffsetY shift the icon
// from its anchor in icon pixels. Out-of-range or unparseable option
// values are dropped, keeping the defaults, rather than coerced —
// a mistyped offset must not silently relocate the marker.
type Marker struct {
	Location orb.Point
	Icon     string
	Scale    float64
	OffsetX  float64
	OffsetY  float64
}

// ParseMarker parses one marker descriptor:
//
//	lon,lat|iconRef[|scale:f][|offset:x,y]
func ParseMarker(descriptor string, logger *slog.Logger) (Marker, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	segments := strings.Split(descriptor, "|")
	if len(segments) < 2 {
		return Marker{}, fmt.Errorf("overlay: marker %q needs a location and an icon", descriptor)
	}
	location, err := parsePoint(strings.TrimSpace(segments[0]))
	if err != nil {
		return Marker{}, fmt.Errorf("overlay: marker location %q: %w", segments[0], err)
	}
	icon := strings.TrimSpace(segments[1])
	if icon == "" {
		return Marker{}, fmt.Errorf("overlay: marker %q has an empty icon reference", descriptor)
	}

	marker := Marker{Location: location, Icon: icon, Scale: 1}
	for _, token := range segments[2:] {
		key, value, ok := strings.Cut(strings.TrimSpace(token), ":")
		if !ok {
			logger.Debug("ignoring marker token", "token", token)
			continue
		}
		switch strings.ToLower(key) {
		case "scale":
			scale, err := strconv.ParseFloat(value, 64)
			if err != nil || scale <= 0 || scale >= maxMarkerScale {
				logger.Debug("dropping out-of-range marker scale", "value", value)
				continue
			}
			marker.Scale = scale
		case "offset":
			x, y, err := parseOffset(value)
			if err != nil {
				logger.Debug("dropping marker offset", "value", value, "error", err)
				continue
			}
			marker.OffsetX, marker.OffsetY = x, y
		default:
			logger.Debug("ignoring marker option", "key", key)
		}
	}
	return marker, nil
}

func parseOffset(value string) (float64, float64, error) {
	first, second, ok := strings.Cut(value, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected x,y")
	}
	x, xErr := strconv.ParseFloat(strings.TrimSpace(first), 64)
	y, yErr := strconv.ParseFloat(strings.TrimSpace(second), 64)
	if xErr != nil || yErr != nil {
		return 0, 0, fmt.Errorf("expected x,y")
	}
	if math.Abs(x) >= maxMarkerOffset || math.Abs(y) >= maxMarkerOffset {
		return 0, 0, fmt.Errorf("offset %g,%g out of range", x, y)
	}
	return x, y, nil
}
