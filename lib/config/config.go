// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"image/color"
	"net"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tilecast/tilecast/lib/archive"
	"github.com/tilecast/tilecast/lib/overlay"
	"github.com/tilecast/tilecast/lib/source"
)

// Config is the server configuration document: serving options plus
// the data archives and styles to serve, keyed by their serving IDs.
type Config struct {
	// Options holds server-wide serving options.
	Options Options `json:"options" yaml:"options"`

	// Data maps serving IDs to tile archives.
	Data map[string]DataConfig `json:"data" yaml:"data"`

	// Styles maps serving IDs to rendered styles.
	Styles map[string]StyleConfig `json:"styles" yaml:"styles"`
}

// Options holds server-wide serving options.
type Options struct {
	// Paths configures the asset directory layout.
	Paths Paths `json:"paths" yaml:"paths"`

	// Bind is the listen address. Default: ":8080".
	Bind string `json:"bind" yaml:"bind"`

	// MaxScale bounds the @Nx pixel-density suffix on rendered
	// requests. Zero means the built-in bound.
	MaxScale int `json:"max_scale" yaml:"max_scale"`

	// MinPoolSizes and MaxPoolSizes size the renderer pools per
	// scale: element 0 applies to 1x, element 1 to 2x, and the last
	// element to every higher scale. Empty means the built-in sizes.
	MinPoolSizes []int `json:"min_pool_sizes" yaml:"min_pool_sizes"`
	MaxPoolSizes []int `json:"max_pool_sizes" yaml:"max_pool_sizes"`

	// RenderTimeout bounds one render, as a time.ParseDuration
	// string. Empty means the built-in timeout.
	RenderTimeout string `json:"render_timeout" yaml:"render_timeout"`

	// Watermark is drawn on every rendered image when non-empty.
	Watermark string `json:"watermark" yaml:"watermark"`

	// Attribution is the fallback attribution for static images when
	// neither the style nor the archive declares one.
	Attribution string `json:"attribution" yaml:"attribution"`

	// FallbackFont substitutes for font stacks that are missing a
	// requested glyph range.
	FallbackFont string `json:"fallback_font" yaml:"fallback_font"`

	// AllowRemote gates http(s) and s3 archive locations. The pointer
	// carries presence: unset means allowed.
	AllowRemote *bool `json:"allow_remote" yaml:"allow_remote"`
}

// RemoteAllowed reports whether remote archive locations may be
// opened.
func (o Options) RemoteAllowed() bool {
	return o.AllowRemote == nil || *o.AllowRemote
}

// Paths configures the asset directory layout. Empty fields default
// to conventional subdirectories of Root.
type Paths struct {
	// Root is the base directory for relative archive and style
	// paths. Default: the current directory.
	Root string `json:"root" yaml:"root"`

	// Styles, Fonts, Sprites, and Icons hold style documents, glyph
	// ranges, sprite sheets, and marker icons.
	Styles  string `json:"styles" yaml:"styles"`
	Fonts   string `json:"fonts" yaml:"fonts"`
	Sprites string `json:"sprites" yaml:"sprites"`
	Icons   string `json:"icons" yaml:"icons"`
}

// DataConfig is one served tile archive.
type DataConfig struct {
	// Location is the archive reference: a local path, an http(s)
	// URL, or an s3:// URL. Relative paths resolve under Paths.Root.
	Location string `json:"location" yaml:"location"`

	// Sparse marks coverage-area archives: a missing tile inside the
	// zoom range is intentionally empty rather than filled with a
	// placeholder.
	Sparse bool `json:"sparse" yaml:"sparse"`

	// Format hints the stored tile codec for archives whose metadata
	// does not declare one (png, jpeg, webp, avif, pbf).
	Format string `json:"format" yaml:"format"`

	// Background is the placeholder fill for missing tiles of dense
	// raster archives, in any CSS color form. Empty means
	// transparent.
	Background string `json:"background" yaml:"background"`

	// Profile, Region, RequestPayer, and URLFormat override object
	// store access options parsed from the location. RequestPayer
	// carries presence: unset defers to the URL and environment.
	Profile      string `json:"profile" yaml:"profile"`
	Region       string `json:"region" yaml:"region"`
	RequestPayer *bool  `json:"request_payer" yaml:"request_payer"`
	URLFormat    string `json:"url_format" yaml:"url_format"`
}

// Overrides returns the object-store access overrides for opening the
// archive.
func (d DataConfig) Overrides() source.Overrides {
	return source.Overrides{
		Profile:      d.Profile,
		Region:       d.Region,
		RequestPayer: d.RequestPayer,
		URLFormat:    d.URLFormat,
	}
}

// BackgroundColor parses the declared background fill. Empty is fully
// transparent.
func (d DataConfig) BackgroundColor() (color.NRGBA, error) {
	if d.Background == "" {
		return color.NRGBA{}, nil
	}
	return overlay.ParseColor(d.Background)
}

// StyleConfig is one rendered style.
type StyleConfig struct {
	// Path locates the style document, relative to Paths.Styles.
	Path string `json:"path" yaml:"path"`

	// TileSize is the style's source raster tile size, 256 or 512.
	// Zero means 512.
	TileSize int `json:"tile_size" yaml:"tile_size"`

	// StaticAttribution overrides the attribution printed on static
	// images rendered from this style.
	StaticAttribution string `json:"static_attribution" yaml:"static_attribution"`
}

// idPattern constrains serving IDs to characters that pass through
// URL paths unescaped and unambiguously.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks the configuration for errors, reporting every
// problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Options.Bind != "" {
		if _, _, err := net.SplitHostPort(c.Options.Bind); err != nil {
			errs = append(errs, fmt.Errorf("options.bind %q is not host:port", c.Options.Bind))
		}
	}
	if c.Options.MaxScale < 0 {
		errs = append(errs, fmt.Errorf("options.max_scale must not be negative"))
	}
	for _, size := range c.Options.MinPoolSizes {
		if size < 0 {
			errs = append(errs, fmt.Errorf("options.min_pool_sizes entries must not be negative"))
			break
		}
	}
	for _, size := range c.Options.MaxPoolSizes {
		if size <= 0 {
			errs = append(errs, fmt.Errorf("options.max_pool_sizes entries must be positive"))
			break
		}
	}
	if c.Options.RenderTimeout != "" {
		if timeout, err := time.ParseDuration(c.Options.RenderTimeout); err != nil || timeout <= 0 {
			errs = append(errs, fmt.Errorf("options.render_timeout %q is not a positive duration", c.Options.RenderTimeout))
		}
	}

	for id, data := range c.Data {
		if !idPattern.MatchString(id) {
			errs = append(errs, fmt.Errorf("data ID %q contains characters outside [A-Za-z0-9_-]", id))
		}
		if data.Location == "" {
			errs = append(errs, fmt.Errorf("data %q: location is required", id))
		}
		if data.Format != "" && archive.TileTypeFromName(data.Format) == archive.TileUnknown {
			errs = append(errs, fmt.Errorf("data %q: unknown format %q", id, data.Format))
		}
		if _, err := data.BackgroundColor(); err != nil {
			errs = append(errs, fmt.Errorf("data %q: background: %v", id, err))
		}
	}

	for id, style := range c.Styles {
		if !idPattern.MatchString(id) {
			errs = append(errs, fmt.Errorf("style ID %q contains characters outside [A-Za-z0-9_-]", id))
		}
		if style.Path == "" {
			errs = append(errs, fmt.Errorf("style %q: path is required", id))
		}
		switch style.TileSize {
		case 0, 256, 512:
		default:
			errs = append(errs, fmt.Errorf("style %q: tile_size must be 256 or 512", id))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// applyDefaults fills the listen address and derives unset asset
// directories from the root.
func (c *Config) applyDefaults() {
	if c.Options.Bind == "" {
		c.Options.Bind = ":8080"
	}
	if c.Options.Paths.Root == "" {
		c.Options.Paths.Root = "."
	}
	root := c.Options.Paths.Root
	if c.Options.Paths.Styles == "" {
		c.Options.Paths.Styles = filepath.Join(root, "styles")
	}
	if c.Options.Paths.Fonts == "" {
		c.Options.Paths.Fonts = filepath.Join(root, "fonts")
	}
	if c.Options.Paths.Sprites == "" {
		c.Options.Paths.Sprites = filepath.Join(root, "sprites")
	}
	if c.Options.Paths.Icons == "" {
		c.Options.Paths.Icons = filepath.Join(root, "icons")
	}
}
