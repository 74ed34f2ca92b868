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

// DefaultRenderTimeout bounds one render call when PoolConfig leaves
// RenderTimeout zero.
const DefaultRenderTimeout = 30 * time.Second

// PoolConfig configures a renderer pool.
type PoolConfig struct {
	// New constructs one renderer handle. Required.
	New func(ctx context.Context) (Renderer, error)

	// Min is the number of handles the pool fills to when first used.
	// Zero disables prewarming.
	Min int

	// Max bounds the number of live handles. Defaults to Min, or to 1
	// when Min is also zero.
	Max int

	// RenderTimeout bounds one render call. A handle that misses the
	// deadline is evicted. Defaults to DefaultRenderTimeout.
	RenderTimeout time.Duration

	// Clock supplies time for the render deadline. Defaults to the
	// real clock.
	Clock clock.Clock

	// Logger receives pool lifecycle events. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

func (c *PoolConfig) applyDefaults() {
	if c.Max <= 0 {
		c.Max = c.Min
	}
	if c.Max <= 0 {
		c.Max = 1
	}
	if c.Min > c.Max {
		c.Min = c.Max
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = DefaultRenderTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Pool owns a bounded set of renderer handles. Handles are created
// lazily: the pool fills to Min on first use and grows to Max on
// demand. Every handle is health-checked as it is taken, and every
// render races the pool's deadline; handles that fail either way are
// evicted and replaced.
type Pool struct {
	config PoolConfig

	// idle holds handles ready for the next render. slots holds one
	// token per live handle; a handle's token is released only when
	// the handle is destroyed, so len(slots) is the live count and
	// sending on slots reserves the right to construct.
	idle  chan Renderer
	slots chan struct{}

	closed    chan struct{}
	closeOnce sync.Once

	prewarmOnce sync.Once

	mu      sync.Mutex
	created int
	evicted int
}

// NewPool builds a pool from config. No handles are created until the
// first render.
func NewPool(config PoolConfig) (*Pool, error) {
	if config.New == nil {
		return nil, fmt.Errorf("render: PoolConfig.New is required")
	}
	config.applyDefaults()
	return &Pool{
		config: config,
		idle:   make(chan Renderer, config.Max),
		slots:  make(chan struct{}, config.Max),
		closed: make(chan struct{}),
	}, nil
}

// Render runs one render on a pooled handle, waiting for a handle if
// all are busy and evicting the handle if the render fails or misses
// the pool's deadline. The caller's context bounds the wait for a
// handle; the render itself is bounded by the pool's RenderTimeout.
func (p *Pool) Render(ctx context.Context, params Params) ([]byte, error) {
	renderer, err := p.take(ctx)
	if err != nil {
		return nil, err
	}

	type renderResult struct {
		data []byte
		err  error
	}
	done := make(chan renderResult, 1)
	go func() {
		data, renderErr := renderer.Render(ctx, params)
		done <- renderResult{data: data, err: renderErr}
	}()

	select {
	case result := <-done:
		if result.err != nil {
			// A handle reporting the caller's own context error is
			// fine to reuse; anything else means it is suspect.
			if errors.Is(result.err, context.Canceled) || errors.Is(result.err, context.DeadlineExceeded) {
				p.put(renderer)
				return nil, result.err
			}
			p.destroy(renderer, "render failed")
			return nil, &RenderError{Err: result.err}
		}
		p.put(renderer)
		return result.data, nil

	case <-p.config.Clock.After(p.config.RenderTimeout):
		// The handle leaves rotation now. Its in-flight call keeps
		// the slot until it finishes, then the handle is destroyed
		// and whatever it produced is discarded.
		p.config.Logger.Warn("render timed out, evicting renderer",
			"timeout", p.config.RenderTimeout)
		go func() {
			<-done
			p.destroy(renderer, "render timeout")
		}()
		return nil, ErrTimeout

	case <-ctx.Done():
		// The caller is gone. Let the render finish on its own and
		// recycle the handle when it does. Failing with the caller's
		// context error is not the handle's fault.
		go func() {
			result := <-done
			if result.err != nil && !errors.Is(result.err, context.Canceled) &&
				!errors.Is(result.err, context.DeadlineExceeded) {
				p.destroy(renderer, "render failed after cancel")
				return
			}
			p.put(renderer)
		}()
		return nil, ctx.Err()
	}
}

// take returns a healthy handle, creating one if the pool is below
// Max. Handles that fail their health check are destroyed and
// replaced.
func (p *Pool) take(ctx context.Context) (Renderer, error) {
	p.prewarmOnce.Do(p.prewarm)

	for {
		select {
		case <-p.closed:
			return nil, ErrPoolClosed
		default:
		}

		// Prefer an idle handle over growing the pool.
		select {
		case renderer := <-p.idle:
			if renderer.Healthy() {
				return renderer, nil
			}
			p.destroy(renderer, "failed health check")
			continue
		default:
		}

		select {
		case renderer := <-p.idle:
			if renderer.Healthy() {
				return renderer, nil
			}
			p.destroy(renderer, "failed health check")
			continue

		case p.slots <- struct{}{}:
			renderer, err := p.create(ctx)
			if err != nil {
				<-p.slots
				return nil, &InitError{Err: err}
			}
			return renderer, nil

		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrExhausted, ctx.Err())

		case <-p.closed:
			return nil, ErrPoolClosed
		}
	}
}

// put parks a handle for reuse, destroying it instead if the pool has
// closed.
func (p *Pool) put(renderer Renderer) {
	select {
	case <-p.closed:
		p.destroy(renderer, "pool closed")
		return
	default:
	}
	select {
	case p.idle <- renderer:
	default:
		p.destroy(renderer, "idle channel full")
		return
	}
	// Close can finish draining between the check above and the
	// enqueue, which would strand the handle in idle forever. One
	// re-drain after the enqueue covers that window: every handle
	// parked after the close is matched by a drain that sees it.
	select {
	case <-p.closed:
		select {
		case late := <-p.idle:
			p.destroy(late, "pool closed")
		default:
		}
	default:
	}
}

// create constructs one handle and counts it. The caller must already
// hold a slot token.
func (p *Pool) create(ctx context.Context) (Renderer, error) {
	renderer, err := p.config.New(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.created++
	p.mu.Unlock()
	return renderer, nil
}

// destroy closes a handle and releases its slot token.
func (p *Pool) destroy(renderer Renderer, reason string) {
	if err := renderer.Close(); err != nil {
		p.config.Logger.Warn("closing renderer", "error", err)
	}
	<-p.slots
	p.mu.Lock()
	p.evicted++
	p.mu.Unlock()
	p.config.Logger.Debug("renderer discarded", "reason", reason)
}

// prewarm fills the pool toward Min in the background. Failures are
// logged and give their slot back; demand re-creates handles later.
func (p *Pool) prewarm() {
	for i := 0; i < p.config.Min; i++ {
		select {
		case p.slots <- struct{}{}:
		default:
			return
		}
		go func() {
			renderer, err := p.create(context.Background())
			if err != nil {
				<-p.slots
				p.config.Logger.Warn("prewarming renderer", "error", err)
				return
			}
			p.put(renderer)
		}()
	}
}

// Stats is a point-in-time view of the pool's accounting.
type Stats struct {
	// Created and Evicted count handles over the pool's lifetime.
	Created int
	Evicted int

	// Idle and InUse partition the currently live handles.
	Idle  int
	InUse int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	created, evicted := p.created, p.evicted
	p.mu.Unlock()
	idle := len(p.idle)
	return Stats{
		Created: created,
		Evicted: evicted,
		Idle:    idle,
		InUse:   len(p.slots) - idle,
	}
}

// Close destroys the pool's idle handles and fails renders from then
// on with ErrPoolClosed. Handles busy in a render are destroyed or
// discarded as their renders finish.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	for {
		select {
		case renderer := <-p.idle:
			p.destroy(renderer, "pool closed")
		default:
			return nil
		}
	}
}
