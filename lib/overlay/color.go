// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ParseColor parses a CSS-style color value: #rgb, #rgba, #rrggbb,
// #rrggbbaa, rgb(...), rgba(...), hsl(...), hsla(...), or a named
// color such as "red".
func ParseColor(value string) (color.NRGBA, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch {
	case value == "":
		return color.NRGBA{}, fmt.Errorf("overlay: empty color")
	case strings.HasPrefix(value, "#"):
		return parseHexColor(value[1:])
	case strings.HasPrefix(value, "rgb(") || strings.HasPrefix(value, "rgba("):
		return parseRGBColor(value)
	case strings.HasPrefix(value, "hsl(") || strings.HasPrefix(value, "hsla("):
		return parseHSLColor(value)
	}
	if named, ok := colornames.Map[value]; ok {
		return color.NRGBA{R: named.R, G: named.G, B: named.B, A: named.A}, nil
	}
	return color.NRGBA{}, fmt.Errorf("overlay: unknown color %q", value)
}

func parseHexColor(hex string) (color.NRGBA, error) {
	nibble := func(c byte) (uint8, bool) {
		switch {
		case c >= '0' && c <= '9':
			return c - '0', true
		case c >= 'a' && c <= 'f':
			return c - 'a' + 10, true
		}
		return 0, false
	}
	byteAt := func(i int) (uint8, bool) {
		high, ok1 := nibble(hex[i])
		low, ok2 := nibble(hex[i+1])
		return high<<4 | low, ok1 && ok2
	}

	switch len(hex) {
	case 3, 4:
		var channels [4]uint8
		for i := 0; i < len(hex); i++ {
			v, ok := nibble(hex[i])
			if !ok {
				return color.NRGBA{}, fmt.Errorf("overlay: invalid hex color %q", "#"+hex)
			}
			channels[i] = v<<4 | v
		}
		if len(hex) == 3 {
			channels[3] = 255
		}
		return color.NRGBA{R: channels[0], G: channels[1], B: channels[2], A: channels[3]}, nil
	case 6, 8:
		var channels [4]uint8
		channels[3] = 255
		for i := 0; i*2 < len(hex); i++ {
			v, ok := byteAt(i * 2)
			if !ok {
				return color.NRGBA{}, fmt.Errorf("overlay: invalid hex color %q", "#"+hex)
			}
			channels[i] = v
		}
		return color.NRGBA{R: channels[0], G: channels[1], B: channels[2], A: channels[3]}, nil
	}
	return color.NRGBA{}, fmt.Errorf("overlay: invalid hex color %q", "#"+hex)
}

func parseRGBColor(value string) (color.NRGBA, error) {
	parts, err := functionArgs(value)
	if err != nil {
		return color.NRGBA{}, err
	}
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("overlay: invalid color %q", value)
	}

	var channels [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("overlay: invalid color %q", value)
		}
		channels[i] = clampChannel(n)
	}
	alpha := uint8(255)
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(parts[3], 64)
		if err != nil || a < 0 || a > 1 {
			return color.NRGBA{}, fmt.Errorf("overlay: invalid color %q", value)
		}
		alpha = uint8(math.Round(a * 255))
	}
	return color.NRGBA{R: channels[0], G: channels[1], B: channels[2], A: alpha}, nil
}

func parseHSLColor(value string) (color.NRGBA, error) {
	parts, err := functionArgs(value)
	if err != nil {
		return color.NRGBA{}, err
	}
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("overlay: invalid color %q", value)
	}

	hue, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("overlay: invalid color %q", value)
	}
	saturation, err := parsePercent(parts[1])
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("overlay: invalid color %q", value)
	}
	lightness, err := parsePercent(parts[2])
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("overlay: invalid color %q", value)
	}
	alpha := uint8(255)
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(parts[3], 64)
		if err != nil || a < 0 || a > 1 {
			return color.NRGBA{}, fmt.Errorf("overlay: invalid color %q", value)
		}
		alpha = uint8(math.Round(a * 255))
	}

	r, g, b := hslToRGB(hue, saturation, lightness)
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// functionArgs splits "name(a, b, c)" into its trimmed arguments.
func functionArgs(value string) ([]string, error) {
	open := strings.Index(value, "(")
	if open < 0 || !strings.HasSuffix(value, ")") {
		return nil, fmt.Errorf("overlay: invalid color %q", value)
	}
	parts := strings.Split(value[open+1:len(value)-1], ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func parsePercent(value string) (float64, error) {
	value = strings.TrimSuffix(value, "%")
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	return n / 100, nil
}

func clampChannel(n float64) uint8 {
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(math.Round(n))
}

// hslToRGB converts hue (degrees), saturation, and lightness (both
// 0..1) to 8-bit RGB.
func hslToRGB(hue, saturation, lightness float64) (uint8, uint8, uint8) {
	hue = math.Mod(math.Mod(hue, 360)+360, 360) / 60

	chroma := (1 - math.Abs(2*lightness-1)) * saturation
	x := chroma * (1 - math.Abs(math.Mod(hue, 2)-1))
	var r, g, b float64
	switch {
	case hue < 1:
		r, g, b = chroma, x, 0
	case hue < 2:
		r, g, b = x, chroma, 0
	case hue < 3:
		r, g, b = 0, chroma, x
	case hue < 4:
		r, g, b = 0, x, chroma
	case hue < 5:
		r, g, b = x, 0, chroma
	default:
		r, g, b = chroma, 0, x
	}
	m := lightness - chroma/2
	return clampChannel((r + m) * 255), clampChannel((g + m) * 255), clampChannel((b + m) * 255)
}
