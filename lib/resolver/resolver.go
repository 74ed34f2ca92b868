// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tilecast/tilecast/lib/archive"
	"github.com/tilecast/tilecast/lib/clock"
	"github.com/tilecast/tilecast/lib/netutil"
	"github.com/tilecast/tilecast/lib/render"
)

const (
	// DefaultFetchTimeout bounds one remote asset fetch.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultCacheSize is the remote response cache capacity.
	DefaultCacheSize = 128
)

// Config holds configuration for creating a Resolver.
type Config struct {
	// Registry resolves tile source IDs to open archives. Required.
	Registry *archive.Registry

	// Client is the retrying archive read path. Required.
	Client *archive.Client

	// Sprites, Fonts, and Icons are the asset root directories.
	// References under each scheme resolve relative to its root and
	// may not escape it.
	Sprites string
	Fonts   string
	Icons   string

	// FallbackFont is the font stack substituted when a requested
	// stack is missing a glyph range. Empty disables the fallback.
	FallbackFont string

	// HTTPClient fetches remote assets. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// CacheSize bounds the remote response cache. Defaults to
	// DefaultCacheSize.
	CacheSize int

	// FetchTimeout bounds one remote fetch. Defaults to
	// DefaultFetchTimeout.
	FetchTimeout time.Duration

	// Clock provides time operations. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Resolver answers sub-resource requests from renderer handles. Safe
// for concurrent use; the remote response cache is shared across all
// renders in the process.
type Resolver struct {
	config Config
	remote *lru.Cache[string, render.Asset]
}

// New creates a Resolver from the given configuration.
func New(config Config) (*Resolver, error) {
	config.applyDefaults()
	if config.Registry == nil {
		return nil, fmt.Errorf("resolver: Config.Registry is required")
	}
	if config.Client == nil {
		return nil, fmt.Errorf("resolver: Config.Client is required")
	}
	remote, err := lru.New[string, render.Asset](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("resolver: creating response cache: %w", err)
	}
	return &Resolver{config: config, remote: remote}, nil
}

// Resolve fetches one resource by reference. Its signature matches
// render.ResolveFunc so it can be handed to a pool set directly.
func (r *Resolver) Resolve(ctx context.Context, ref string) (render.Asset, error) {
	scheme, rest, found := strings.Cut(ref, "://")
	if !found {
		return r.localFile(ref)
	}
	switch scheme {
	case "sprites":
		return r.assetFile(r.config.Sprites, rest, "sprite")
	case "fonts":
		return r.fontAsset(rest)
	case "pmtiles", "mbtiles":
		return r.archiveTile(ctx, rest)
	case "http", "https":
		return r.remoteAsset(ctx, ref)
	case "file":
		return r.localFile(rest)
	default:
		return render.Asset{}, fmt.Errorf("resolver: unsupported scheme %q in %q", scheme, ref)
	}
}

// Icon fetches a marker icon by reference for the overlay compositor.
// Remote references share the response cache; anything else resolves
// under the icon root. Unlike Resolve, failures propagate: the
// compositor already knows to skip a marker whose icon will not load.
func (r *Resolver) Icon(ctx context.Context, ref string) ([]byte, error) {
	var asset render.Asset
	var err error
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		asset, err = r.cachedFetch(ctx, ref)
	} else {
		asset, err = r.assetFile(r.config.Icons, ref, "icon")
	}
	if err != nil {
		return nil, err
	}
	return asset.Data, nil
}

// tileRef is a parsed archive tile reference.
type tileRef struct {
	id     string
	z      uint8
	x, y   uint32
	format archive.TileType
}

// parseTileRef splits {sourceId}/{z}/{x}/{y}.{format}.
func parseTileRef(rest string) (tileRef, error) {
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[0] == "" {
		return tileRef{}, fmt.Errorf("resolver: malformed tile reference %q", rest)
	}
	zoom, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return tileRef{}, fmt.Errorf("resolver: bad zoom in tile reference %q: %w", rest, err)
	}
	column, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return tileRef{}, fmt.Errorf("resolver: bad column in tile reference %q: %w", rest, err)
	}
	base, ext, found := strings.Cut(parts[3], ".")
	if !found {
		return tileRef{}, fmt.Errorf("resolver: tile reference %q has no format extension", rest)
	}
	row, err := strconv.ParseUint(base, 10, 32)
	if err != nil {
		return tileRef{}, fmt.Errorf("resolver: bad row in tile reference %q: %w", rest, err)
	}
	return tileRef{
		id:     parts[0],
		z:      uint8(zoom),
		x:      uint32(column),
		y:      uint32(row),
		format: archive.TileTypeFromName(ext),
	}, nil
}

func (r *Resolver) archiveTile(ctx context.Context, rest string) (render.Asset, error) {
	ref, err := parseTileRef(rest)
	if err != nil {
		return render.Asset{}, err
	}
	entry, ok := r.config.Registry.Lookup(ref.id)
	if !ok {
		return render.Asset{}, fmt.Errorf("resolver: tile source %q is not registered", ref.id)
	}
	if entry.Metadata != nil && !entry.Metadata.Contains(ref.z) {
		return missingTile(entry, ref.format), nil
	}
	data, ok := r.config.Client.Tile(ctx, entry.Handle, entry.ID, ref.z, ref.x, ref.y)
	if !ok {
		return missingTile(entry, ref.format), nil
	}
	// Vector tiles are stored compressed; the renderer needs the
	// identity bytes.
	decoded, err := archive.Decode(data)
	if err != nil {
		return render.Asset{}, fmt.Errorf("resolver: tile %s/%d/%d/%d: %w", ref.id, ref.z, ref.x, ref.y, err)
	}
	return render.Asset{Data: decoded}, nil
}

// missingTile resolves a tile the archive does not hold. A sparse
// archive means it deliberately, so the renderer skips the tile. A
// dense archive gets a placeholder in the expected codec so the map
// shows the declared background instead of a hole.
func missingTile(entry *archive.Entry, format archive.TileType) render.Asset {
	if entry.Sparse {
		return render.Asset{Absent: true}
	}
	if format.Raster() {
		return render.Asset{Data: placeholderPNG(entry.Background)}
	}
	return render.Asset{Data: []byte{}}
}

// placeholderPNG encodes a single pixel of the given color. A
// zero-length protobuf is a valid empty vector tile, but raster
// decoders need an actual image.
func placeholderPNG(fill color.NRGBA) []byte {
	pixel := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	pixel.SetNRGBA(0, 0, fill)
	var buf bytes.Buffer
	if err := png.Encode(&buf, pixel); err != nil {
		return nil
	}
	return buf.Bytes()
}

func (r *Resolver) remoteAsset(ctx context.Context, url string) (render.Asset, error) {
	asset, err := r.cachedFetch(ctx, url)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return render.Asset{}, err
		}
		r.config.Logger.Warn("remote asset failed, substituting empty response",
			"url", url, "error", err)
		return emptyAsset(url), nil
	}
	return asset, nil
}

// cachedFetch returns the cached response for a URL, fetching and
// caching on miss. Failed fetches are not cached: a flaky origin gets
// another chance on the next render.
func (r *Resolver) cachedFetch(ctx context.Context, url string) (render.Asset, error) {
	if asset, ok := r.remote.Get(url); ok {
		return asset, nil
	}
	asset, err := r.fetch(ctx, url)
	if err != nil {
		return render.Asset{}, err
	}
	r.remote.Add(url, asset)
	return asset, nil
}

// fetch retrieves a remote asset, bounded by the fetch timeout.
func (r *Resolver) fetch(ctx context.Context, url string) (render.Asset, error) {
	type fetchResult struct {
		asset render.Asset
		err   error
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		asset, err := r.doFetch(ctx, url)
		done <- fetchResult{asset: asset, err: err}
	}()

	select {
	case result := <-done:
		return result.asset, result.err
	case <-r.config.Clock.After(r.config.FetchTimeout):
		// cancel aborts the in-flight request so the fetch goroutine
		// does not hold the connection past the deadline.
		return render.Asset{}, fmt.Errorf("resolver: fetching %s timed out after %s", url, r.config.FetchTimeout)
	case <-ctx.Done():
		return render.Asset{}, ctx.Err()
	}
}

func (r *Resolver) doFetch(ctx context.Context, url string) (render.Asset, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return render.Asset{}, fmt.Errorf("resolver: building request for %s: %w", url, err)
	}
	response, err := r.config.HTTPClient.Do(request)
	if err != nil {
		return render.Asset{}, fmt.Errorf("resolver: fetching %s: %w", url, err)
	}
	defer netutil.DrainClose(response.Body)

	if response.StatusCode != http.StatusOK {
		return render.Asset{}, fmt.Errorf("resolver: fetching %s: unexpected status %s", url, response.Status)
	}
	data, err := netutil.ReadBody(response.Body)
	if err != nil {
		return render.Asset{}, fmt.Errorf("resolver: reading %s: %w", url, err)
	}
	asset := render.Asset{Data: data, ETag: response.Header.Get("ETag")}
	if modified, err := http.ParseTime(response.Header.Get("Last-Modified")); err == nil {
		asset.Modified = modified
	}
	if expires, err := http.ParseTime(response.Header.Get("Expires")); err == nil {
		asset.Expires = expires
	}
	return asset, nil
}

// emptyAsset synthesizes a substitute for an unreachable remote
// resource, in the codec its URL extension implies.
func emptyAsset(url string) render.Asset {
	trimmed, _, _ := strings.Cut(url, "?")
	ext := strings.TrimPrefix(path.Ext(trimmed), ".")
	if archive.TileTypeFromName(ext).Raster() {
		return render.Asset{Data: placeholderPNG(color.NRGBA{})}
	}
	return render.Asset{Data: []byte{}}
}

// fontAsset reads one glyph range, {stack}/{range}.pbf, falling back
// to the configured default stack when the requested one is missing
// that range.
func (r *Resolver) fontAsset(rest string) (render.Asset, error) {
	asset, err := r.assetFile(r.config.Fonts, rest, "font")
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return asset, err
	}
	dir, file := path.Split(rest)
	stack := strings.TrimSuffix(dir, "/")
	if r.config.FallbackFont == "" || stack == "" || stack == r.config.FallbackFont {
		return render.Asset{}, err
	}
	r.config.Logger.Debug("font range missing, using fallback stack",
		"stack", stack, "fallback", r.config.FallbackFont, "range", file)
	return r.assetFile(r.config.Fonts, path.Join(r.config.FallbackFont, file), "font")
}

// assetFile reads a file under one of the configured asset roots. The
// relative path comes from a style document, so it is confined to the
// root.
func (r *Resolver) assetFile(root, rel, kind string) (render.Asset, error) {
	if root == "" {
		return render.Asset{}, fmt.Errorf("resolver: no %s directory configured", kind)
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return render.Asset{}, fmt.Errorf("resolver: %s path %q escapes the asset root", kind, rel)
	}
	return r.localFile(filepath.Join(root, local))
}

// localFile reads a file a style references directly. The file must
// exist, be regular, and be non-empty: anything else means the style
// is misconfigured, and the render fails rather than drawing from
// garbage.
func (r *Resolver) localFile(name string) (render.Asset, error) {
	info, err := os.Stat(name)
	if err != nil {
		return render.Asset{}, fmt.Errorf("resolver: stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return render.Asset{}, fmt.Errorf("resolver: %s is not a regular file", name)
	}
	if info.Size() == 0 {
		return render.Asset{}, fmt.Errorf("resolver: %s is empty", name)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return render.Asset{}, fmt.Errorf("resolver: reading %s: %w", name, err)
	}
	return render.Asset{Data: data, Modified: info.ModTime()}, nil
}
