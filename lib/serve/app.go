// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/teris-io/shortid"

	"github.com/tilecast/tilecast/lib/archive"
	"github.com/tilecast/tilecast/lib/clock"
	"github.com/tilecast/tilecast/lib/config"
	"github.com/tilecast/tilecast/lib/overlay"
	"github.com/tilecast/tilecast/lib/render"
	"github.com/tilecast/tilecast/lib/resolver"
	"github.com/tilecast/tilecast/lib/source"
)

// AppConfig holds configuration for creating an App.
type AppConfig struct {
	// Config is the validated server configuration. Required.
	Config *config.Config

	// Drivers maps archive format names (pmtiles, mbtiles, dir) to
	// the drivers that open them. Registration fails for data whose
	// format has no driver here.
	Drivers map[string]archive.Driver

	// Engine constructs renderer handles for style pool sets.
	// Required.
	Engine render.Engine

	// Sources carries the transport for opening archives. Its
	// HTTPClient also fetches remote style assets.
	Sources source.Config

	// Clock provides time operations. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

// App owns the serving state: registered archives, style pool sets,
// and the shared resolver and compositor. Construct with NewApp,
// populate with RegisterData and RegisterStyle, serve Handler, and
// Close on shutdown.
type App struct {
	config  *config.Config
	drivers map[string]archive.Driver
	engine  render.Engine
	sources source.Config
	clock   clock.Clock
	logger  *slog.Logger

	registry   *archive.Registry
	client     *archive.Client
	resolver   *resolver.Resolver
	compositor *overlay.Compositor

	mu     sync.RWMutex
	styles map[string]*styleEntry
}

// styleEntry is one registered style: its document, its renderer
// pools, and its serving options.
type styleEntry struct {
	document    []byte
	pools       *render.PoolSet
	tileSize    int
	attribution string
}

// NewApp creates an App from the given configuration.
func NewApp(appConfig AppConfig) (*App, error) {
	if appConfig.Config == nil {
		return nil, fmt.Errorf("serve: AppConfig.Config is required")
	}
	if appConfig.Engine == nil {
		return nil, fmt.Errorf("serve: AppConfig.Engine is required")
	}
	if appConfig.Clock == nil {
		appConfig.Clock = clock.Real()
	}
	if appConfig.Logger == nil {
		appConfig.Logger = slog.New(slog.DiscardHandler)
	}

	app := &App{
		config:   appConfig.Config,
		drivers:  appConfig.Drivers,
		engine:   appConfig.Engine,
		sources:  appConfig.Sources,
		clock:    appConfig.Clock,
		logger:   appConfig.Logger,
		registry: archive.NewRegistry(),
		styles:   make(map[string]*styleEntry),
	}
	app.client = archive.NewClient(archive.ClientConfig{
		Clock:  app.clock,
		Logger: app.logger,
	})

	paths := app.config.Options.Paths
	res, err := resolver.New(resolver.Config{
		Registry:     app.registry,
		Client:       app.client,
		Sprites:      paths.Sprites,
		Fonts:        paths.Fonts,
		Icons:        paths.Icons,
		FallbackFont: app.config.Options.FallbackFont,
		HTTPClient:   appConfig.Sources.HTTPClient,
		Clock:        app.clock,
		Logger:       app.logger,
	})
	if err != nil {
		return nil, err
	}
	app.resolver = res

	compositor, err := overlay.NewCompositor(overlay.CompositorConfig{
		FetchIcon: res.Icon,
		Clock:     app.clock,
		Logger:    app.logger,
	})
	if err != nil {
		return nil, err
	}
	app.compositor = compositor
	return app, nil
}

// RegisterData opens one configured archive and registers it for
// serving under id.
func (a *App) RegisterData(ctx context.Context, id string, data config.DataConfig) error {
	location, err := source.ParseLocation(data.Location, data.Overrides(), a.logger)
	if err != nil {
		return fmt.Errorf("serve: archive %q: %w", id, err)
	}
	if location.Type == source.TypeLocal && !filepath.IsAbs(location.Path) {
		location.Path = filepath.Join(a.config.Options.Paths.Root, location.Path)
	}
	if location.Type != source.TypeLocal && !a.config.Options.RemoteAllowed() {
		return fmt.Errorf("serve: archive %q: remote locations are disabled", id)
	}

	format := archiveFormat(location)
	driver, ok := a.drivers[format]
	if !ok {
		return fmt.Errorf("serve: archive %q: no driver for %s archives", id, format)
	}
	handle, err := driver.Open(ctx, location, a.sources)
	if err != nil {
		return fmt.Errorf("serve: archive %q: opening %s: %w", id, location, err)
	}

	meta, err := a.client.Metadata(ctx, handle, location.String())
	if err != nil {
		handle.Close()
		return err
	}
	if meta.Format == archive.TileUnknown && data.Format != "" {
		meta.Format = archive.TileTypeFromName(data.Format)
	}
	if meta.Format == archive.TileUnknown {
		handle.Close()
		return fmt.Errorf("serve: archive %q declares no tile format; set one in its data config", id)
	}
	background, err := data.BackgroundColor()
	if err != nil {
		handle.Close()
		return fmt.Errorf("serve: archive %q: %w", id, err)
	}

	entry := &archive.Entry{
		ID:         id,
		Handle:     handle,
		Metadata:   meta,
		Sparse:     data.Sparse,
		Background: background,
	}
	if err := a.registry.Register(entry); err != nil {
		handle.Close()
		return err
	}
	a.logger.Info("archive registered",
		"id", id, "location", location.String(),
		"format", meta.Format.String(),
		"minzoom", meta.MinZoom, "maxzoom", meta.MaxZoom)
	return nil
}

// archiveFormat derives the driver key from a location's extension.
// Extension-less local paths are tile directories.
func archiveFormat(location source.Location) string {
	name := location.Path
	switch location.Type {
	case source.TypeHTTP:
		if parsed, err := url.Parse(location.URL); err == nil {
			name = parsed.Path
		}
	case source.TypeObjectStore:
		name = location.Key
	}
	switch ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), "."); ext {
	case "pmtiles", "mbtiles":
		return ext
	}
	return "dir"
}

// RegisterStyle loads one configured style document and builds its
// renderer pool set.
func (a *App) RegisterStyle(id string, style config.StyleConfig) error {
	stylePath := style.Path
	if !filepath.IsAbs(stylePath) {
		stylePath = filepath.Join(a.config.Options.Paths.Styles, stylePath)
	}
	document, err := os.ReadFile(stylePath)
	if err != nil {
		return fmt.Errorf("serve: style %q: %w", id, err)
	}
	if !json.Valid(document) {
		return fmt.Errorf("serve: style %q: %s is not valid JSON", id, stylePath)
	}

	pools, err := render.NewPoolSet(render.PoolSetConfig{
		Engine:        a.engine,
		Style:         document,
		Resolve:       a.resolver.Resolve,
		MaxScale:      a.config.Options.MaxScale,
		MinSizes:      a.config.Options.MinPoolSizes,
		MaxSizes:      a.config.Options.MaxPoolSizes,
		RenderTimeout: renderTimeout(a.config.Options),
		Clock:         a.clock,
		Logger:        a.logger.With("style", id),
	})
	if err != nil {
		return fmt.Errorf("serve: style %q: %w", id, err)
	}

	tileSize := style.TileSize
	if tileSize == 0 {
		tileSize = 512
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.styles[id]; exists {
		pools.Close()
		return fmt.Errorf("serve: style %q already registered", id)
	}
	a.styles[id] = &styleEntry{
		document:    document,
		pools:       pools,
		tileSize:    tileSize,
		attribution: style.StaticAttribution,
	}
	a.logger.Info("style registered", "id", id, "path", stylePath, "tile_size", tileSize)
	return nil
}

// renderTimeout parses the configured render timeout. Validation
// guarantees the string parses, so zero comes back only when unset,
// letting the pool apply its own default.
func renderTimeout(options config.Options) time.Duration {
	if options.RenderTimeout == "" {
		return 0
	}
	timeout, err := time.ParseDuration(options.RenderTimeout)
	if err != nil {
		return 0
	}
	return timeout
}

func (a *App) style(id string) (*styleEntry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entry, ok := a.styles[id]
	return entry, ok
}

// maxScale is the effective pixel-density bound for parsing; the pool
// set enforces the same bound on its side.
func (a *App) maxScale() int {
	if a.config.Options.MaxScale > 0 {
		return a.config.Options.MaxScale
	}
	return render.DefaultMaxScale
}

// Handler returns the route table wrapped in request logging.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /data/{file}", a.handleTileJSON)
	mux.HandleFunc("GET /data/{id}/{z}/{x}/{file}", a.handleDataTile)
	mux.HandleFunc("GET /styles/{file}", a.handleStyleJSON)
	mux.HandleFunc("GET /styles/{id}/{z}/{x}/{file}", a.handleRenderedTile)
	mux.HandleFunc("GET /styles/{id}/static/{position}/{file}", a.handleStatic)
	return a.logRequests(mux)
}

// logRequests tags every request with a short correlation ID and logs
// its outcome.
func (a *App) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestID := newRequestID(a.logger)
		start := a.clock.Now()
		recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}
		next.ServeHTTP(recorder, request)
		a.logger.Info("request",
			"id", requestID,
			"method", request.Method,
			"path", request.URL.Path,
			"status", recorder.status,
			"duration", a.clock.Now().Sub(start))
	})
}

// newRequestID generates a correlation ID for one request. Generation
// failing is no reason to log a request without a correlation field,
// so the fallback is a fixed marker rather than an empty string.
func newRequestID(logger *slog.Logger) string {
	id, err := shortid.Generate()
	if err != nil {
		logger.Warn("generating request id", "error", err)
		return "untagged"
	}
	return id
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Close shuts down every style pool set and closes all registered
// archives.
func (a *App) Close() error {
	a.mu.Lock()
	styles := a.styles
	a.styles = make(map[string]*styleEntry)
	a.mu.Unlock()

	var errs []error
	for id, style := range styles {
		if err := style.pools.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing style %q: %w", id, err))
		}
	}
	errs = append(errs, a.registry.Close())
	return errors.Join(errs...)
}
