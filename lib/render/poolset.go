// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tilecast/tilecast/lib/clock"
)

// DefaultMaxScale is the largest pixel-density multiplier served when
// PoolSetConfig leaves MaxScale zero.
const DefaultMaxScale = 3

// Default pool sizes per pixel-density scale. Index 0 sizes the 1x
// pool; scales past the end share the last entry. High-density
// handles cost more memory, so the pools shrink as scale grows.
var (
	defaultMinSizes = []int{8, 4, 2}
	defaultMaxSizes = []int{16, 8, 4}
)

// PoolSetConfig configures a pool set for one style.
type PoolSetConfig struct {
	// Engine constructs renderer handles. Required.
	Engine Engine

	// Style is the style document every handle loads.
	Style []byte

	// Resolve fetches resources the style references.
	Resolve ResolveFunc

	// MaxScale bounds the pixel-density multiplier; renders beyond it
	// are rejected without touching a pool. Defaults to
	// DefaultMaxScale.
	MaxScale int

	// MinSizes and MaxSizes size the pool for scale s from index
	// min(s-1, len-1). Defaults to {8, 4, 2} and {16, 8, 4}.
	MinSizes []int
	MaxSizes []int

	// RenderTimeout, Clock, and Logger are passed through to each
	// pool.
	RenderTimeout time.Duration
	Clock         clock.Clock
	Logger        *slog.Logger
}

func (c *PoolSetConfig) applyDefaults() {
	if c.MaxScale <= 0 {
		c.MaxScale = DefaultMaxScale
	}
	if len(c.MinSizes) == 0 {
		c.MinSizes = defaultMinSizes
	}
	if len(c.MaxSizes) == 0 {
		c.MaxSizes = defaultMaxSizes
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// ScaleError reports a pixel-density multiplier outside the served
// range.
type ScaleError struct {
	Scale int
	Max   int
}

func (e *ScaleError) Error() string {
	return fmt.Sprintf("render: scale %d outside served range 1-%d", e.Scale, e.Max)
}

// IsScaleUnsupported reports whether err rejects a pixel-density
// multiplier the pool set does not serve.
func IsScaleUnsupported(err error) bool {
	var scaleError *ScaleError
	return errors.As(err, &scaleError)
}

// PoolSet owns one pool per (scale, mode) pair for a single style.
// A handle's configuration bakes in its pixel density and framing, so
// a pool can only ever serve one pair; the set creates pools on first
// use and routes renders to them.
type PoolSet struct {
	config PoolSetConfig

	mu     sync.Mutex
	pools  map[poolKey]*Pool
	closed bool
}

type poolKey struct {
	scale int
	mode  Mode
}

// NewPoolSet builds a pool set from config. No pools are created
// until the first render.
func NewPoolSet(config PoolSetConfig) (*PoolSet, error) {
	if config.Engine == nil {
		return nil, fmt.Errorf("render: PoolSetConfig.Engine is required")
	}
	config.applyDefaults()
	return &PoolSet{
		config: config,
		pools:  make(map[poolKey]*Pool),
	}, nil
}

// Render runs one render on the pool for (scale, mode), creating the
// pool if this is the pair's first use.
func (s *PoolSet) Render(ctx context.Context, scale int, mode Mode, params Params) ([]byte, error) {
	if scale < 1 || scale > s.config.MaxScale {
		return nil, &ScaleError{Scale: scale, Max: s.config.MaxScale}
	}
	pool, err := s.pool(scale, mode)
	if err != nil {
		return nil, err
	}
	return pool.Render(ctx, params)
}

func (s *PoolSet) pool(scale int, mode Mode) (*Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrPoolClosed
	}
	key := poolKey{scale: scale, mode: mode}
	if pool, ok := s.pools[key]; ok {
		return pool, nil
	}

	pool, err := NewPool(PoolConfig{
		New: func(ctx context.Context) (Renderer, error) {
			return s.config.Engine.NewRenderer(ctx, Spec{
				Style:   s.config.Style,
				Scale:   scale,
				Mode:    mode,
				Resolve: s.config.Resolve,
			})
		},
		Min:           sizeFor(s.config.MinSizes, scale),
		Max:           sizeFor(s.config.MaxSizes, scale),
		RenderTimeout: s.config.RenderTimeout,
		Clock:         s.config.Clock,
		Logger:        s.config.Logger.With("scale", scale, "mode", mode.String()),
	})
	if err != nil {
		return nil, err
	}
	s.pools[key] = pool
	return pool, nil
}

func sizeFor(sizes []int, scale int) int {
	index := scale - 1
	if index >= len(sizes) {
		index = len(sizes) - 1
	}
	return sizes[index]
}

// Close closes every pool in the set. Renders after Close fail with
// ErrPoolClosed.
func (s *PoolSet) Close() error {
	s.mu.Lock()
	pools := s.pools
	s.pools = make(map[poolKey]*Pool)
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for _, pool := range pools {
		errs = append(errs, pool.Close())
	}
	return errors.Join(errs...)
}
