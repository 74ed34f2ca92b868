// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"fmt"
	"image/color"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
)

// Width clamps.
const (
	maxLineWidth   = 500
	maxBorderWidth = 250
)

// Fallback colors for unset or unparseable values: translucent blue
// stroke, translucent white fill.
var (
	defaultStroke = color.NRGBA{R: 0, G: 64, B: 255, A: 178}
	defaultFill   = color.NRGBA{R: 255, G: 255, B: 255, A: 102}
)

// PathStyle controls how one path is stroked and filled.
type PathStyle struct {
	Stroke color.NRGBA
	Width  float64

	// Fill is painted only when HasFill is set; paths are open
	// strokes by default.
	Fill    color.NRGBA
	HasFill bool

	// Border is a second stroke pass drawn beneath the main stroke at
	// Width + 2*BorderWidth, when both a color and a positive width
	// were given.
	Border      color.NRGBA
	HasBorder   bool
	BorderWidth float64

	LineCap  gg.LineCap
	LineJoin gg.LineJoin
}

// DefaultPathStyle returns the style used when a request specifies
// nothing: a one-pixel translucent blue stroke, no fill, no border.
func DefaultPathStyle() PathStyle {
	return PathStyle{
		Stroke:   defaultStroke,
		Width:    1,
		Fill:     defaultFill,
		LineCap:  gg.LineCapButt,
		LineJoin: gg.LineJoinBevel,
	}
}

// styleOptionKeys are the query parameters that establish a
// request-level style, in the same spelling as inline path tokens.
var styleOptionKeys = []string{"stroke", "fill", "width", "border", "borderwidth", "linecap", "linejoin"}

// StyleFromQuery derives the request-level path style from query
// parameters. Individual paths may override any option inline.
func StyleFromQuery(query url.Values, logger *slog.Logger) PathStyle {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	style := DefaultPathStyle()
	for _, key := range styleOptionKeys {
		if !query.Has(key) {
			continue
		}
		style.applyOption(key, query.Get(key), logger)
	}
	return style
}

// applyOption applies one key:value style token, reporting whether
// the key names a style option at all. Unparseable colors warn and
// fall back to the documented defaults; widths are clamped to their
// ranges; bad enum values warn and keep the previous setting.
func (s *PathStyle) applyOption(key, value string, logger *slog.Logger) bool {
	switch key {
	case "stroke":
		s.Stroke = parseColorOption(value, defaultStroke, logger)
	case "fill":
		s.Fill = parseColorOption(value, defaultFill, logger)
		s.HasFill = true
	case "width":
		s.Width = parseWidthOption(key, value, s.Width, maxLineWidth, logger)
	case "border":
		s.Border = parseColorOption(value, defaultStroke, logger)
		s.HasBorder = true
	case "borderwidth":
		s.BorderWidth = parseWidthOption(key, value, s.BorderWidth, maxBorderWidth, logger)
	case "linecap":
		switch value {
		case "butt":
			s.LineCap = gg.LineCapButt
		case "round":
			s.LineCap = gg.LineCapRound
		case "square":
			s.LineCap = gg.LineCapSquare
		default:
			logger.Warn("unknown line cap, keeping previous", "value", value)
		}
	case "linejoin":
		switch value {
		case "miter", "bevel":
			// The rasterizer has no miter join; miter degrades to
			// bevel.
			s.LineJoin = gg.LineJoinBevel
		case "round":
			s.LineJoin = gg.LineJoinRound
		default:
			logger.Warn("unknown line join, keeping previous", "value", value)
		}
	default:
		return false
	}
	return true
}

func parseColorOption(value string, fallback color.NRGBA, logger *slog.Logger) color.NRGBA {
	parsed, err := ParseColor(value)
	if err != nil {
		logger.Warn("unparseable color, using default", "value", value, "error", err)
		return fallback
	}
	return parsed
}

func parseWidthOption(key, value string, current, max float64, logger *slog.Logger) float64 {
	width, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logger.Warn("unparseable width, keeping previous", "option", key, "value", value)
		return current
	}
	if width < 0 {
		return 0
	}
	if width > max {
		return max
	}
	return width
}

// Path is one polyline with its resolved style.
type Path struct {
	Points []orb.Point
	Style  PathStyle
}

// ParsePath parses one path descriptor: pipe-separated tokens that
// are either key:value style options or lon,lat vertices, for
// example
//
//	width:5|fill:red|border:blue|borderwidth:2|1,1|2,2
//
// Inline options override the base (request-level) style.
func ParsePath(descriptor string, base PathStyle, logger *slog.Logger) (Path, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	path := Path{Style: base}
	for _, token := range strings.Split(descriptor, "|") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if key, value, ok := strings.Cut(token, ":"); ok {
			if path.Style.applyOption(strings.ToLower(key), value, logger) {
				continue
			}
		}
		point, err := parsePoint(token)
		if err != nil {
			return Path{}, fmt.Errorf("overlay: path token %q: %w", token, err)
		}
		path.Points = append(path.Points, point)
	}
	if len(path.Points) < 2 {
		return Path{}, fmt.Errorf("overlay: path needs at least two vertices, got %d", len(path.Points))
	}
	return path, nil
}

func parsePoint(token string) (orb.Point, error) {
	first, second, ok := strings.Cut(token, ",")
	if !ok {
		return orb.Point{}, fmt.Errorf("expected lon,lat")
	}
	longitude, lonErr := strconv.ParseFloat(strings.TrimSpace(first), 64)
	latitude, latErr := strconv.ParseFloat(strings.TrimSpace(second), 64)
	if lonErr != nil || latErr != nil {
		return orb.Point{}, fmt.Errorf("expected lon,lat")
	}
	return orb.Point{longitude, latitude}, nil
}
