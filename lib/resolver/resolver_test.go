// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package resolver_test

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/tilecast/tilecast/lib/archive"
	"github.com/tilecast/tilecast/lib/clock"
	"github.com/tilecast/tilecast/lib/render"
	"github.com/tilecast/tilecast/lib/resolver"
	"github.com/tilecast/tilecast/lib/testutil"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// mapHandle serves tiles from a fixed map keyed by "z/x/y", counting
// reads.
type mapHandle struct {
	mu    sync.Mutex
	tiles map[string][]byte
	reads int
}

func (h *mapHandle) Header(ctx context.Context) (archive.Header, error) {
	return archive.Header{}, nil
}

func (h *mapHandle) Metadata(ctx context.Context) (map[string]any, error) {
	return nil, nil
}

func (h *mapHandle) Tile(ctx context.Context, z uint8, x, y uint32) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads++
	return h.tiles[fmt.Sprintf("%d/%d/%d", z, x, y)], nil
}

func (h *mapHandle) Close() error { return nil }

func (h *mapHandle) readCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reads
}

func newTestResolver(t *testing.T, mutate func(*resolver.Config)) (*resolver.Resolver, *archive.Registry) {
	t.Helper()
	registry := archive.NewRegistry()
	config := resolver.Config{
		Registry: registry,
		Client:   archive.NewClient(archive.ClientConfig{}),
	}
	if mutate != nil {
		mutate(&config)
	}
	r, err := resolver.New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, registry
}

func register(t *testing.T, registry *archive.Registry, entry *archive.Entry) {
	t.Helper()
	if err := registry.Register(entry); err != nil {
		t.Fatalf("Register(%s): %v", entry.ID, err)
	}
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return full
}

func TestResolveArchiveTile(t *testing.T) {
	tile := testutil.SolidPNG(t, 4, 4, color.NRGBA{R: 255, A: 255})
	res, registry := newTestResolver(t, nil)
	register(t, registry, &archive.Entry{
		ID:     "demo",
		Handle: &mapHandle{tiles: map[string][]byte{"1/2/3": tile}},
	})

	asset, err := res.Resolve(context.Background(), "pmtiles://demo/1/2/3.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !bytes.Equal(asset.Data, tile) {
		t.Errorf("got %d bytes, want the stored tile", len(asset.Data))
	}
	if asset.Absent {
		t.Error("stored tile resolved as absent")
	}
}

func TestResolveDecompressesStoredVectorTiles(t *testing.T) {
	payload := []byte("vector tile payload")
	res, registry := newTestResolver(t, nil)
	register(t, registry, &archive.Entry{
		ID:     "vec",
		Handle: &mapHandle{tiles: map[string][]byte{"0/0/0": gzipBytes(t, payload)}},
	})

	asset, err := res.Resolve(context.Background(), "mbtiles://vec/0/0/0.pbf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !bytes.Equal(asset.Data, payload) {
		t.Errorf("got %q, want the identity bytes", asset.Data)
	}
}

func TestResolveSparseMissIsAbsent(t *testing.T) {
	res, registry := newTestResolver(t, nil)
	register(t, registry, &archive.Entry{
		ID:     "coverage",
		Handle: &mapHandle{},
		Sparse: true,
	})

	asset, err := res.Resolve(context.Background(), "pmtiles://coverage/3/1/2.pbf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !asset.Absent {
		t.Error("sparse miss did not resolve as absent")
	}
	if len(asset.Data) != 0 {
		t.Errorf("sparse miss carried %d bytes of data", len(asset.Data))
	}
}

func TestResolveDenseRasterMissIsBackgroundPixel(t *testing.T) {
	background := color.NRGBA{R: 10, G: 20, B: 30, A: 255}
	res, registry := newTestResolver(t, nil)
	register(t, registry, &archive.Entry{
		ID:         "base",
		Handle:     &mapHandle{},
		Background: background,
	})

	asset, err := res.Resolve(context.Background(), "pmtiles://base/4/0/0.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if asset.Absent {
		t.Fatal("dense miss resolved as absent")
	}
	img, err := png.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		t.Fatalf("decoding placeholder: %v", err)
	}
	if img.Bounds().Dx() != 1 || img.Bounds().Dy() != 1 {
		t.Errorf("placeholder is %v, want 1x1", img.Bounds())
	}
	got := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
	if got != background {
		t.Errorf("placeholder pixel = %v, want %v", got, background)
	}
}

func TestResolveDenseVectorMissIsEmptyTile(t *testing.T) {
	res, registry := newTestResolver(t, nil)
	register(t, registry, &archive.Entry{ID: "vec", Handle: &mapHandle{}})

	asset, err := res.Resolve(context.Background(), "mbtiles://vec/5/9/9.pbf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if asset.Absent {
		t.Error("dense miss resolved as absent")
	}
	if asset.Data == nil || len(asset.Data) != 0 {
		t.Errorf("got %v, want a present zero-length tile", asset.Data)
	}
}

func TestResolveOutOfRangeZoomSkipsArchiveRead(t *testing.T) {
	handle := &mapHandle{tiles: map[string][]byte{"5/0/0": []byte("x")}}
	res, registry := newTestResolver(t, nil)
	register(t, registry, &archive.Entry{
		ID:       "shallow",
		Handle:   handle,
		Metadata: &archive.Metadata{MinZoom: 0, MaxZoom: 2},
		Sparse:   true,
	})

	asset, err := res.Resolve(context.Background(), "pmtiles://shallow/5/0/0.pbf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !asset.Absent {
		t.Error("out-of-range zoom did not resolve as absent")
	}
	if got := handle.readCount(); got != 0 {
		t.Errorf("archive read %d times for an out-of-range zoom, want 0", got)
	}
}

func TestResolveRejectsBadTileRefs(t *testing.T) {
	res, registry := newTestResolver(t, nil)
	register(t, registry, &archive.Entry{ID: "demo", Handle: &mapHandle{}})

	refs := []string{
		"pmtiles://missing/0/0/0.png",
		"pmtiles://demo/0/0",
		"pmtiles://demo/zoom/0/0.png",
		"pmtiles://demo/0/col/0.png",
		"pmtiles://demo/0/0/row.png",
		"pmtiles://demo/0/0/0",
		"pmtiles:///0/0/0.png",
		"bogus://demo/0/0/0.png",
	}
	for _, ref := range refs {
		if _, err := res.Resolve(context.Background(), ref); err == nil {
			t.Errorf("Resolve(%q) succeeded, want error", ref)
		}
	}
}

func TestResolveRemoteCachesByURL(t *testing.T) {
	var hits atomic.Int64
	modified := testEpoch.Add(-24 * time.Hour)
	expires := testEpoch.Add(24 * time.Hour)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("ETag", `"tile-v1"`)
		w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
		w.Header().Set("Expires", expires.Format(http.TimeFormat))
		fmt.Fprint(w, "glyph range bytes")
	}))
	t.Cleanup(server.Close)

	res, _ := newTestResolver(t, nil)
	url := server.URL + "/fonts/Test/0-255.pbf"

	first, err := res.Resolve(context.Background(), url)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := res.Resolve(context.Background(), url)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("origin served %d requests, want 1", got)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("cached response differs from the fetched one")
	}
	if first.ETag != `"tile-v1"` {
		t.Errorf("ETag = %q, want %q", first.ETag, `"tile-v1"`)
	}
	if !first.Modified.Equal(modified) {
		t.Errorf("Modified = %v, want %v", first.Modified, modified)
	}
	if !first.Expires.Equal(expires) {
		t.Errorf("Expires = %v, want %v", first.Expires, expires)
	}
}

func TestResolveRemoteFailureSubstitutesEmpty(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	res, _ := newTestResolver(t, nil)

	asset, err := res.Resolve(context.Background(), server.URL+"/tiles/0/0/0.pbf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if asset.Data == nil || len(asset.Data) != 0 {
		t.Errorf("got %v, want an empty document", asset.Data)
	}

	// A raster URL substitutes a decodable transparent pixel.
	asset, err = res.Resolve(context.Background(), server.URL+"/sprite.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		t.Fatalf("decoding substitute: %v", err)
	}
	got := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
	if got != (color.NRGBA{}) {
		t.Errorf("substitute pixel = %v, want transparent", got)
	}

	// Failures are not cached.
	if _, err := res.Resolve(context.Background(), server.URL+"/tiles/0/0/0.pbf"); err != nil {
		t.Fatalf("repeat Resolve: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("origin served %d requests, want 3", got)
	}
}

func TestResolveRemoteTimeoutSubstitutesEmpty(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	clk := clock.Fake(testEpoch)
	res, _ := newTestResolver(t, func(config *resolver.Config) {
		config.Clock = clk
	})

	type result struct {
		asset render.Asset
		err   error
	}
	results := make(chan result, 1)
	go func() {
		asset, err := res.Resolve(context.Background(), server.URL+"/stuck.json")
		results <- result{asset: asset, err: err}
	}()

	clk.WaitForTimers(1)
	clk.Advance(resolver.DefaultFetchTimeout)

	got := testutil.RequireReceive(t, results, time.Second, "timed-out fetch never resolved")
	if got.err != nil {
		t.Fatalf("Resolve: %v", got.err)
	}
	if len(got.asset.Data) != 0 {
		t.Errorf("got %d bytes from a timed-out fetch, want an empty document", len(got.asset.Data))
	}
}

func TestResolveLocalFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"version": 8}`)
	full := writeFile(t, dir, "style.json", data)
	writeFile(t, dir, "empty.json", nil)

	res, _ := newTestResolver(t, nil)

	for _, ref := range []string{full, "file://" + full} {
		asset, err := res.Resolve(context.Background(), ref)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", ref, err)
		}
		if !bytes.Equal(asset.Data, data) {
			t.Errorf("Resolve(%q) = %q, want %q", ref, asset.Data, data)
		}
		if asset.Modified.IsZero() {
			t.Errorf("Resolve(%q) has no modified time", ref)
		}
	}

	for _, ref := range []string{
		filepath.Join(dir, "missing.json"),
		filepath.Join(dir, "empty.json"),
		dir,
	} {
		if _, err := res.Resolve(context.Background(), ref); err == nil {
			t.Errorf("Resolve(%q) succeeded, want error", ref)
		}
	}
}

func TestResolveSpriteConfinedToRoot(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"marker": {"width": 12}}`)
	writeFile(t, dir, "basic/sprite.json", data)

	res, _ := newTestResolver(t, func(config *resolver.Config) {
		config.Sprites = dir
	})

	asset, err := res.Resolve(context.Background(), "sprites://basic/sprite.json")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !bytes.Equal(asset.Data, data) {
		t.Errorf("got %q, want %q", asset.Data, data)
	}

	if _, err := res.Resolve(context.Background(), "sprites://../escape.json"); err == nil {
		t.Error("traversal outside the sprite root succeeded, want error")
	}

	bare, _ := newTestResolver(t, nil)
	if _, err := bare.Resolve(context.Background(), "sprites://basic/sprite.json"); err == nil {
		t.Error("Resolve without a sprite root succeeded, want error")
	}
}

func TestResolveFontFallsBackToDefaultStack(t *testing.T) {
	dir := t.TempDir()
	own := []byte("own glyphs")
	fallback := []byte("fallback glyphs")
	writeFile(t, dir, "Real Stack/0-255.pbf", own)
	writeFile(t, dir, "Noto Sans Regular/0-255.pbf", fallback)

	res, _ := newTestResolver(t, func(config *resolver.Config) {
		config.Fonts = dir
		config.FallbackFont = "Noto Sans Regular"
	})

	asset, err := res.Resolve(context.Background(), "fonts://Real Stack/0-255.pbf")
	if err != nil {
		t.Fatalf("Resolve own stack: %v", err)
	}
	if !bytes.Equal(asset.Data, own) {
		t.Errorf("got %q, want the stack's own glyphs", asset.Data)
	}

	asset, err = res.Resolve(context.Background(), "fonts://Missing Stack/0-255.pbf")
	if err != nil {
		t.Fatalf("Resolve missing stack: %v", err)
	}
	if !bytes.Equal(asset.Data, fallback) {
		t.Errorf("got %q, want the fallback glyphs", asset.Data)
	}

	if _, err := res.Resolve(context.Background(), "fonts://Missing Stack/256-511.pbf"); err == nil {
		t.Error("range missing from the fallback stack succeeded, want error")
	}
}

func TestIconResolvesUnderIconRoot(t *testing.T) {
	dir := t.TempDir()
	icon := testutil.SolidPNG(t, 8, 8, color.NRGBA{G: 255, A: 255})
	writeFile(t, dir, "pin.png", icon)

	res, _ := newTestResolver(t, func(config *resolver.Config) {
		config.Icons = dir
	})

	data, err := res.Icon(context.Background(), "pin.png")
	if err != nil {
		t.Fatalf("Icon: %v", err)
	}
	if !bytes.Equal(data, icon) {
		t.Errorf("got %d bytes, want the stored icon", len(data))
	}

	if _, err := res.Icon(context.Background(), "missing.png"); err == nil {
		t.Error("Icon for a missing file succeeded, want error")
	}
}

func TestIconFetchesAndCachesRemote(t *testing.T) {
	icon := testutil.SolidPNG(t, 8, 8, color.NRGBA{B: 255, A: 255})
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(icon)
	}))
	t.Cleanup(server.Close)

	res, _ := newTestResolver(t, nil)
	url := server.URL + "/pin.png"

	for i := 0; i < 2; i++ {
		data, err := res.Icon(context.Background(), url)
		if err != nil {
			t.Fatalf("Icon: %v", err)
		}
		if !bytes.Equal(data, icon) {
			t.Errorf("got %d bytes, want the served icon", len(data))
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("origin served %d requests, want 1", got)
	}

	// Remote icon failures propagate rather than substituting.
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(failing.Close)
	if _, err := res.Icon(context.Background(), failing.URL+"/pin.png"); err == nil {
		t.Error("Icon for a failing origin succeeded, want error")
	}
}
