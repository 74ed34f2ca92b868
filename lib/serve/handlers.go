// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/paulmach/orb"
	xdraw "golang.org/x/image/draw"

	"github.com/tilecast/tilecast/lib/archive"
	"github.com/tilecast/tilecast/lib/overlay"
	"github.com/tilecast/tilecast/lib/render"
)

func (a *App) handleHealth(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(writer, "ok\n")
}

func (a *App) handleTileJSON(writer http.ResponseWriter, request *http.Request) {
	id, ok := strings.CutSuffix(request.PathValue("file"), ".json")
	if !ok || id == "" {
		http.NotFound(writer, request)
		return
	}
	entry, ok := a.registry.Lookup(id)
	if !ok {
		http.Error(writer, fmt.Sprintf("no tile source %q", id), http.StatusNotFound)
		return
	}
	data, err := json.Marshal(tileJSON(entry, requestBaseURL(request)))
	if err != nil {
		a.logger.Error("encoding tilejson failed", "id", id, "error", err)
		http.Error(writer, "internal error", http.StatusInternalServerError)
		return
	}
	writeCachable(writer, request, "application/json", data)
}

func (a *App) handleDataTile(writer http.ResponseWriter, request *http.Request) {
	entry, ok := a.registry.Lookup(request.PathValue("id"))
	if !ok {
		http.Error(writer, fmt.Sprintf("no tile source %q", request.PathValue("id")), http.StatusNotFound)
		return
	}
	address, err := parseDataTilePath(
		request.PathValue("z"), request.PathValue("x"), request.PathValue("file"))
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	if archive.TileTypeFromName(address.format) != entry.Metadata.Format {
		http.Error(writer,
			fmt.Sprintf("source %q stores %s tiles, not .%s",
				entry.ID, entry.Metadata.Format, address.format),
			http.StatusBadRequest)
		return
	}
	if !entry.Metadata.Contains(address.z) {
		http.Error(writer,
			fmt.Sprintf("zoom %d outside source range %d-%d",
				address.z, entry.Metadata.MinZoom, entry.Metadata.MaxZoom),
			http.StatusNotFound)
		return
	}

	data, ok := a.client.Tile(request.Context(), entry.Handle, entry.ID,
		address.z, address.x, address.y)
	if !ok {
		http.Error(writer, "tile not found", http.StatusNotFound)
		return
	}

	contentType := entry.Metadata.Format.ContentType()
	encoding := archive.SniffEncoding(data)
	if encoding == archive.EncodingGzip && acceptsGzip(request) {
		writeCachable(writer, request, contentType, data, "Content-Encoding", "gzip")
		return
	}
	if encoding != archive.EncodingIdentity {
		decoded, err := archive.Decode(data)
		if err != nil {
			a.logger.Error("stored tile failed to decode",
				"id", entry.ID, "z", address.z, "x", address.x, "y", address.y,
				"error", err)
			http.Error(writer, "internal error", http.StatusInternalServerError)
			return
		}
		data = decoded
	}
	writeCachable(writer, request, contentType, data)
}

func acceptsGzip(request *http.Request) bool {
	return strings.Contains(request.Header.Get("Accept-Encoding"), "gzip")
}

func (a *App) handleStyleJSON(writer http.ResponseWriter, request *http.Request) {
	id, ok := strings.CutSuffix(request.PathValue("file"), ".json")
	if !ok || id == "" {
		http.NotFound(writer, request)
		return
	}
	style, ok := a.style(id)
	if !ok {
		http.Error(writer, fmt.Sprintf("no style %q", id), http.StatusNotFound)
		return
	}
	writeCachable(writer, request, "application/json", style.document)
}

func (a *App) handleRenderedTile(writer http.ResponseWriter, request *http.Request) {
	style, ok := a.style(request.PathValue("id"))
	if !ok {
		http.Error(writer, fmt.Sprintf("no style %q", request.PathValue("id")), http.StatusNotFound)
		return
	}
	address, err := parseRenderTilePath(
		request.PathValue("z"), request.PathValue("x"), request.PathValue("file"),
		a.maxScale())
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	if !encodable(address.format) {
		http.Error(writer, (&UnsupportedFormatError{Format: address.format}).Error(),
			http.StatusBadRequest)
		return
	}

	// A 256px style shows a tile's footprint one camera zoom below
	// the tile's own; the world tile has no zoom below it, so it is
	// rendered at double size and shrunk.
	size := style.tileSize
	zoom := float64(address.z)
	if style.tileSize == 256 {
		if address.z == 0 {
			size = 512
		} else {
			zoom--
		}
	}

	raw, err := style.pools.Render(request.Context(), address.scale, render.ModeTile,
		render.Params{
			Zoom:   zoom,
			Center: tileCenter(address.z, address.x, address.y),
			Width:  size,
			Height: size,
		})
	if err != nil {
		a.writeRenderError(writer, err)
		return
	}
	rendered, err := overlay.FromRaw(raw, size*address.scale, size*address.scale)
	if err != nil {
		a.logger.Error("renderer returned a malformed buffer", "error", err)
		http.Error(writer, "render failed", http.StatusInternalServerError)
		return
	}

	var final image.Image = rendered
	if size != style.tileSize {
		final = shrinkHalf(rendered)
	}
	if watermark := overlay.Watermark(a.config.Options.Watermark,
		style.tileSize, style.tileSize, address.scale); watermark != nil {
		device := style.tileSize * address.scale
		final = overlay.Compose(device, device, final, watermark)
	}

	data, contentType, err := encodeImage(final, address.format)
	if err != nil {
		a.logger.Error("encoding rendered tile failed", "error", err)
		http.Error(writer, "encoding failed", http.StatusInternalServerError)
		return
	}
	writeCachable(writer, request, contentType, data)
}

func (a *App) handleStatic(writer http.ResponseWriter, request *http.Request) {
	style, ok := a.style(request.PathValue("id"))
	if !ok {
		http.Error(writer, fmt.Sprintf("no style %q", request.PathValue("id")), http.StatusNotFound)
		return
	}
	address, err := parseStaticPath(
		request.PathValue("position"), request.PathValue("file"), a.maxScale())
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	if !encodable(address.format) {
		http.Error(writer, (&UnsupportedFormatError{Format: address.format}).Error(),
			http.StatusBadRequest)
		return
	}

	query := request.URL.Query()
	base := overlay.StyleFromQuery(query, a.logger)
	var paths []overlay.Path
	for _, descriptor := range query["path"] {
		path, err := overlay.ParsePath(descriptor, base, a.logger)
		if err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		paths = append(paths, path)
	}
	var markers []overlay.Marker
	for _, descriptor := range query["marker"] {
		marker, err := overlay.ParseMarker(descriptor, a.logger)
		if err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		markers = append(markers, marker)
	}

	center := overlay.ClampCenter(address.center, address.zoom, address.height)
	raw, err := style.pools.Render(request.Context(), address.scale, render.ModeStatic,
		render.Params{
			Zoom:    address.zoom,
			Center:  center,
			Bearing: address.bearing,
			Pitch:   address.pitch,
			Width:   address.width,
			Height:  address.height,
		})
	if err != nil {
		a.writeRenderError(writer, err)
		return
	}
	deviceWidth := address.width * address.scale
	deviceHeight := address.height * address.scale
	rendered, err := overlay.FromRaw(raw, deviceWidth, deviceHeight)
	if err != nil {
		a.logger.Error("renderer returned a malformed buffer", "error", err)
		http.Error(writer, "render failed", http.StatusInternalServerError)
		return
	}

	overlayLayer, _ := a.compositor.Render(request.Context(), overlay.View{
		Zoom:    address.zoom,
		Center:  center,
		Bearing: address.bearing,
		Width:   address.width,
		Height:  address.height,
		Scale:   address.scale,
	}, paths, markers)

	attribution := style.attribution
	if attribution == "" {
		attribution = a.config.Options.Attribution
	}
	composed := overlay.Compose(deviceWidth, deviceHeight,
		rendered,
		overlayLayer,
		overlay.Watermark(a.config.Options.Watermark, address.width, address.height, address.scale),
		overlay.Attribution(attribution, address.width, address.height, address.scale))

	data, contentType, err := encodeImage(composed, address.format)
	if err != nil {
		a.logger.Error("encoding static image failed", "error", err)
		http.Error(writer, "encoding failed", http.StatusInternalServerError)
		return
	}
	writeCachable(writer, request, contentType, data)
}

// encodable reports whether rendered output can be produced in the
// given format.
func encodable(format string) bool {
	switch archive.TileTypeFromName(format) {
	case archive.TilePNG, archive.TileJPEG:
		return true
	}
	return false
}

// writeRenderError maps render failures onto HTTP statuses: scale
// rejections are the client's fault, pool pressure is retryable, and
// everything else is a server fault.
func (a *App) writeRenderError(writer http.ResponseWriter, err error) {
	switch {
	case render.IsScaleUnsupported(err):
		http.Error(writer, err.Error(), http.StatusBadRequest)
	case errors.Is(err, render.ErrTimeout), errors.Is(err, render.ErrExhausted):
		http.Error(writer, err.Error(), http.StatusServiceUnavailable)
	default:
		a.logger.Error("render failed", "error", err)
		http.Error(writer, "render failed", http.StatusInternalServerError)
	}
}

// tileCenter is the lon/lat midpoint of a tile address.
func tileCenter(z uint8, x, y uint32) orb.Point {
	world := overlay.WorldSize(float64(z))
	extent := float64(uint64(1) << z)
	px := (float64(x) + 0.5) / extent * world
	py := (float64(y) + 0.5) / extent * world
	return overlay.Unproject(px, py, float64(z))
}

// shrinkHalf downsamples an image to half its linear size.
func shrinkHalf(img image.Image) image.Image {
	bounds := img.Bounds()
	shrunk := image.NewRGBA(image.Rect(0, 0, bounds.Dx()/2, bounds.Dy()/2))
	xdraw.ApproxBiLinear.Scale(shrunk, shrunk.Bounds(), img, bounds, xdraw.Src, nil)
	return shrunk
}
