// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

const (
	// maxTileZoom bounds tile addresses. Archives declare their own
	// ranges below this; rendered tiles may overzoom up to it.
	maxTileZoom = 22

	// maxStaticSize bounds static image dimensions in style pixels.
	maxStaticSize = 2048

	// maxPitch bounds the static camera tilt, in degrees.
	maxPitch = 60
)

// tileAddress is a parsed tile path: coordinates, pixel-density
// scale, and format extension.
type tileAddress struct {
	z      uint8
	x, y   uint32
	scale  int
	format string
}

// parseDataTilePath parses {z}/{x}/{y}.{ext} for stored tiles, which
// carry no pixel-density suffix.
func parseDataTilePath(zs, xs, file string) (tileAddress, error) {
	ys, format, found := strings.Cut(file, ".")
	if !found || format == "" {
		return tileAddress{}, fmt.Errorf("serve: tile path %q has no format extension", file)
	}
	if strings.Contains(ys, "@") {
		return tileAddress{}, fmt.Errorf("serve: stored tiles have no pixel-density variants")
	}
	address, err := parseZXY(zs, xs, ys)
	if err != nil {
		return tileAddress{}, err
	}
	address.scale = 1
	address.format = format
	return address, nil
}

// parseRenderTilePath parses {z}/{x}/{y}[@Nx].{ext} for rendered
// tiles.
func parseRenderTilePath(zs, xs, file string, maxScale int) (tileAddress, error) {
	base, format, found := strings.Cut(file, ".")
	if !found || format == "" {
		return tileAddress{}, fmt.Errorf("serve: tile path %q has no format extension", file)
	}
	ys, scale, err := splitScaleSuffix(base, maxScale)
	if err != nil {
		return tileAddress{}, err
	}
	address, err := parseZXY(zs, xs, ys)
	if err != nil {
		return tileAddress{}, err
	}
	address.scale = scale
	address.format = format
	return address, nil
}

func parseZXY(zs, xs, ys string) (tileAddress, error) {
	zoom, err := strconv.ParseUint(zs, 10, 8)
	if err != nil || zoom > maxTileZoom {
		return tileAddress{}, fmt.Errorf("serve: bad zoom %q", zs)
	}
	column, err := strconv.ParseUint(xs, 10, 32)
	if err != nil {
		return tileAddress{}, fmt.Errorf("serve: bad column %q", xs)
	}
	row, err := strconv.ParseUint(ys, 10, 32)
	if err != nil {
		return tileAddress{}, fmt.Errorf("serve: bad row %q", ys)
	}
	extent := uint64(1) << zoom
	if column >= extent || row >= extent {
		return tileAddress{}, fmt.Errorf("serve: tile %d/%d/%d outside the zoom-%d grid", zoom, column, row, zoom)
	}
	return tileAddress{z: uint8(zoom), x: uint32(column), y: uint32(row)}, nil
}

// splitScaleSuffix strips an optional @Nx pixel-density suffix,
// validating N against the served bound.
func splitScaleSuffix(s string, maxScale int) (rest string, scale int, err error) {
	rest, suffix, found := strings.Cut(s, "@")
	if !found {
		return rest, 1, nil
	}
	digits, ok := strings.CutSuffix(suffix, "x")
	if !ok {
		return "", 0, fmt.Errorf("serve: bad pixel-density suffix %q", "@"+suffix)
	}
	scale, convErr := strconv.Atoi(digits)
	if convErr != nil || scale < 1 {
		return "", 0, fmt.Errorf("serve: bad pixel-density suffix %q", "@"+suffix)
	}
	if scale > maxScale {
		return "", 0, fmt.Errorf("serve: pixel density @%dx outside served range 1-%d", scale, maxScale)
	}
	return rest, scale, nil
}

// staticAddress is a parsed static image path: viewport framing,
// size, pixel-density scale, and format extension.
type staticAddress struct {
	center  orb.Point
	zoom    float64
	bearing float64
	pitch   float64
	width   int
	height  int
	scale   int
	format  string
}

// parseStaticPath parses the two static path segments:
// {lon},{lat},{zoom}[@{bearing}[,{pitch}]] and {w}x{h}[@Nx].{ext}.
func parseStaticPath(position, size string, maxScale int) (staticAddress, error) {
	var address staticAddress

	frame, camera, hasCamera := strings.Cut(position, "@")
	parts := strings.Split(frame, ",")
	if len(parts) != 3 {
		return staticAddress{}, fmt.Errorf("serve: position %q is not lon,lat,zoom", position)
	}
	lon, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || lon < -180 || lon > 180 {
		return staticAddress{}, fmt.Errorf("serve: bad longitude %q", parts[0])
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || lat < -90 || lat > 90 {
		return staticAddress{}, fmt.Errorf("serve: bad latitude %q", parts[1])
	}
	zoom, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || zoom < 0 || zoom > maxTileZoom {
		return staticAddress{}, fmt.Errorf("serve: bad zoom %q", parts[2])
	}
	address.center = orb.Point{lon, lat}
	address.zoom = zoom

	if hasCamera {
		bearingPart, pitchPart, hasPitch := strings.Cut(camera, ",")
		bearing, err := strconv.ParseFloat(bearingPart, 64)
		if err != nil {
			return staticAddress{}, fmt.Errorf("serve: bad bearing %q", bearingPart)
		}
		address.bearing = math.Mod(bearing, 360)
		if address.bearing < 0 {
			address.bearing += 360
		}
		if hasPitch {
			pitch, err := strconv.ParseFloat(pitchPart, 64)
			if err != nil || pitch < 0 || pitch > maxPitch {
				return staticAddress{}, fmt.Errorf("serve: bad pitch %q", pitchPart)
			}
			address.pitch = pitch
		}
	}

	base, format, found := strings.Cut(size, ".")
	if !found || format == "" {
		return staticAddress{}, fmt.Errorf("serve: size %q has no format extension", size)
	}
	dimensions, scale, err := splitScaleSuffix(base, maxScale)
	if err != nil {
		return staticAddress{}, err
	}
	ws, hs, found := strings.Cut(dimensions, "x")
	if !found {
		return staticAddress{}, fmt.Errorf("serve: size %q is not WxH", size)
	}
	width, err := strconv.Atoi(ws)
	if err != nil || width < 1 || width > maxStaticSize {
		return staticAddress{}, fmt.Errorf("serve: bad width %q (limit %d)", ws, maxStaticSize)
	}
	height, err := strconv.Atoi(hs)
	if err != nil || height < 1 || height > maxStaticSize {
		return staticAddress{}, fmt.Errorf("serve: bad height %q (limit %d)", hs, maxStaticSize)
	}
	address.width = width
	address.height = height
	address.scale = scale
	address.format = format
	return address, nil
}
