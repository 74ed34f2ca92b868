// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package render_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tilecast/tilecast/lib/clock"
	"github.com/tilecast/tilecast/lib/render"
	"github.com/tilecast/tilecast/lib/testutil"
)

// fakeRenderer is a scriptable renderer handle. When block is set,
// Render waits for it to close before returning.
type fakeRenderer struct {
	id        int
	block     chan struct{}
	renderErr error
	healthy   atomic.Bool
	closedCh  chan struct{}
	closeOnce sync.Once
}

func newFakeRenderer(id int) *fakeRenderer {
	renderer := &fakeRenderer{id: id, closedCh: make(chan struct{})}
	renderer.healthy.Store(true)
	return renderer
}

func (r *fakeRenderer) Render(ctx context.Context, params render.Params) ([]byte, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.renderErr != nil {
		return nil, r.renderErr
	}
	return []byte{byte(r.id)}, nil
}

func (r *fakeRenderer) Healthy() bool { return r.healthy.Load() }

func (r *fakeRenderer) Close() error {
	r.closeOnce.Do(func() { close(r.closedCh) })
	return nil
}

// fakeFactory constructs fakeRenderers with sequential ids, announcing
// each on built so tests can rendezvous with asynchronous creation.
type fakeFactory struct {
	mu        sync.Mutex
	renderers []*fakeRenderer
	initErrs  []error
	prepare   func(r *fakeRenderer)
	built     chan *fakeRenderer
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{built: make(chan *fakeRenderer, 32)}
}

func (f *fakeFactory) failNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initErrs = append(f.initErrs, err)
}

func (f *fakeFactory) new(ctx context.Context) (render.Renderer, error) {
	f.mu.Lock()
	if len(f.initErrs) > 0 {
		err := f.initErrs[0]
		f.initErrs = f.initErrs[1:]
		f.mu.Unlock()
		return nil, err
	}
	renderer := newFakeRenderer(len(f.renderers) + 1)
	if f.prepare != nil {
		f.prepare(renderer)
	}
	f.renderers = append(f.renderers, renderer)
	f.mu.Unlock()
	f.built <- renderer
	return renderer, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.renderers)
}

func (f *fakeFactory) renderer(i int) *fakeRenderer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renderers[i]
}

func newTestPool(t *testing.T, config render.PoolConfig) *render.Pool {
	t.Helper()
	pool, err := render.NewPool(config)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestRenderReusesIdleHandle(t *testing.T) {
	factory := newFakeFactory()
	pool := newTestPool(t, render.PoolConfig{New: factory.new, Max: 2})

	for i := 0; i < 3; i++ {
		data, err := pool.Render(context.Background(), render.Params{})
		if err != nil {
			t.Fatalf("Render %d: %v", i, err)
		}
		if len(data) == 0 {
			t.Fatalf("Render %d returned no data", i)
		}
	}

	if got := factory.count(); got != 1 {
		t.Errorf("constructed %d renderers, want 1", got)
	}
	stats := pool.Stats()
	if stats.Created != 1 || stats.Evicted != 0 || stats.Idle != 1 || stats.InUse != 0 {
		t.Errorf("Stats() = %+v, want 1 created, 0 evicted, 1 idle, 0 in use", stats)
	}
}

func TestRenderNeverExceedsMax(t *testing.T) {
	factory := newFakeFactory()
	gate := make(chan struct{})
	factory.prepare = func(r *fakeRenderer) { r.block = gate }
	pool := newTestPool(t, render.PoolConfig{New: factory.new, Max: 2})

	const renders = 5
	results := make(chan error, renders)
	for i := 0; i < renders; i++ {
		go func() {
			_, err := pool.Render(context.Background(), render.Params{})
			results <- err
		}()
	}

	// The pool grows to its cap and no further while every handle is
	// busy.
	testutil.RequireReceive(t, factory.built, 5*time.Second, "first renderer")
	testutil.RequireReceive(t, factory.built, 5*time.Second, "second renderer")
	testutil.RequireNoReceive(t, factory.built, 100*time.Millisecond, "renderer beyond max")

	close(gate)
	for i := 0; i < renders; i++ {
		if err := testutil.RequireReceive(t, results, 5*time.Second, "render %d", i); err != nil {
			t.Fatalf("Render %d: %v", i, err)
		}
	}
	if got := factory.count(); got != 2 {
		t.Errorf("constructed %d renderers, want 2", got)
	}
}

func TestRenderTimeoutEvictsHandle(t *testing.T) {
	fake := clock.Fake(time.Unix(1700000000, 0))
	factory := newFakeFactory()
	stuck := make(chan struct{})
	factory.prepare = func(r *fakeRenderer) {
		if r.id == 1 {
			r.block = stuck
		}
	}
	pool := newTestPool(t, render.PoolConfig{New: factory.new, Max: 2, Clock: fake})

	errs := make(chan error, 1)
	go func() {
		_, err := pool.Render(context.Background(), render.Params{})
		errs <- err
	}()

	first := testutil.RequireReceive(t, factory.built, 5*time.Second, "first renderer")
	fake.WaitForTimers(1)
	fake.Advance(render.DefaultRenderTimeout)

	err := testutil.RequireReceive(t, errs, 5*time.Second, "timed-out render")
	if !errors.Is(err, render.ErrTimeout) {
		t.Fatalf("Render error = %v, want ErrTimeout", err)
	}

	// The stuck handle is out of rotation: the next render gets a
	// fresh one immediately.
	data, err := pool.Render(context.Background(), render.Params{})
	if err != nil {
		t.Fatalf("Render after timeout: %v", err)
	}
	if len(data) != 1 || data[0] != 2 {
		t.Fatalf("Render after timeout returned %v, want handle 2's output", data)
	}
	if got := factory.count(); got != 2 {
		t.Errorf("constructed %d renderers, want 2", got)
	}

	// When the stuck render finally finishes, the handle is destroyed
	// and its result goes nowhere.
	close(stuck)
	testutil.RequireClosed(t, first.closedCh, 5*time.Second, "evicted renderer closed")
	testutil.RequireNoReceive(t, errs, 100*time.Millisecond, "late completion leaking to caller")
}

func TestRenderErrorEvictsHandle(t *testing.T) {
	factory := newFakeFactory()
	factory.prepare = func(r *fakeRenderer) {
		if r.id == 1 {
			r.renderErr = errors.New("native renderer crashed")
		}
	}
	pool := newTestPool(t, render.PoolConfig{New: factory.new, Max: 1})

	_, err := pool.Render(context.Background(), render.Params{})
	var renderError *render.RenderError
	if !errors.As(err, &renderError) {
		t.Fatalf("Render error = %v, want *RenderError", err)
	}
	testutil.RequireClosed(t, factory.renderer(0).closedCh, 5*time.Second, "failed renderer closed")

	data, err := pool.Render(context.Background(), render.Params{})
	if err != nil {
		t.Fatalf("Render after failure: %v", err)
	}
	if len(data) != 1 || data[0] != 2 {
		t.Fatalf("Render after failure returned %v, want handle 2's output", data)
	}
}

func TestUnhealthyHandleReplacedOnTake(t *testing.T) {
	factory := newFakeFactory()
	pool := newTestPool(t, render.PoolConfig{New: factory.new, Max: 1})

	if _, err := pool.Render(context.Background(), render.Params{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	factory.renderer(0).healthy.Store(false)

	data, err := pool.Render(context.Background(), render.Params{})
	if err != nil {
		t.Fatalf("Render with unhealthy handle pooled: %v", err)
	}
	if len(data) != 1 || data[0] != 2 {
		t.Fatalf("Render returned %v, want handle 2's output", data)
	}
	testutil.RequireClosed(t, factory.renderer(0).closedCh, 5*time.Second, "unhealthy renderer closed")
	if got := pool.Stats().Evicted; got != 1 {
		t.Errorf("Stats().Evicted = %d, want 1", got)
	}
}

func TestPoolFillsToMinOnFirstUse(t *testing.T) {
	factory := newFakeFactory()
	pool := newTestPool(t, render.PoolConfig{New: factory.new, Min: 3, Max: 3})

	if got := factory.count(); got != 0 {
		t.Fatalf("constructed %d renderers before first use, want 0", got)
	}

	if _, err := pool.Render(context.Background(), render.Params{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	for i := 0; i < 3; i++ {
		testutil.RequireReceive(t, factory.built, 5*time.Second, "prewarmed renderer %d", i)
	}
	testutil.RequireNoReceive(t, factory.built, 100*time.Millisecond, "renderer beyond min")
}

func TestInitFailureReleasesSlot(t *testing.T) {
	factory := newFakeFactory()
	factory.failNext(errors.New("style failed to load"))
	pool := newTestPool(t, render.PoolConfig{New: factory.new, Max: 1})

	_, err := pool.Render(context.Background(), render.Params{})
	var initError *render.InitError
	if !errors.As(err, &initError) {
		t.Fatalf("Render error = %v, want *InitError", err)
	}

	// The failed construction must give its slot back, or this second
	// render would hang.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := pool.Render(ctx, render.Params{}); err != nil {
		t.Fatalf("Render after init failure: %v", err)
	}
}

func TestExhaustedPoolHonorsContext(t *testing.T) {
	factory := newFakeFactory()
	gate := make(chan struct{})
	factory.prepare = func(r *fakeRenderer) { r.block = gate }
	pool := newTestPool(t, render.PoolConfig{New: factory.new, Max: 1})

	holding := make(chan error, 1)
	go func() {
		_, err := pool.Render(context.Background(), render.Params{})
		holding <- err
	}()
	testutil.RequireReceive(t, factory.built, 5*time.Second, "first renderer")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := pool.Render(ctx, render.Params{})
	if !errors.Is(err, render.ErrExhausted) {
		t.Fatalf("Render error = %v, want ErrExhausted", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Render error = %v, want context.DeadlineExceeded in chain", err)
	}

	close(gate)
	if err := testutil.RequireReceive(t, holding, 5*time.Second, "held render"); err != nil {
		t.Fatalf("held Render: %v", err)
	}
}

func TestCallerCancelRecyclesHandle(t *testing.T) {
	factory := newFakeFactory()
	gate := make(chan struct{})
	factory.prepare = func(r *fakeRenderer) { r.block = gate }
	pool := newTestPool(t, render.PoolConfig{New: factory.new, Max: 1})

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := pool.Render(ctx, render.Params{})
		errs <- err
	}()
	testutil.RequireReceive(t, factory.built, 5*time.Second, "first renderer")

	cancel()
	if err := testutil.RequireReceive(t, errs, 5*time.Second, "cancelled render"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Render error = %v, want context.Canceled", err)
	}

	// A handle abandoned by its caller goes back into rotation once
	// its render winds down; cancellation is not the handle's fault.
	close(gate)
	if _, err := pool.Render(context.Background(), render.Params{}); err != nil {
		t.Fatalf("Render after cancel: %v", err)
	}
	if got := factory.count(); got != 1 {
		t.Errorf("constructed %d renderers, want 1", got)
	}
}

func TestCloseDestroysIdleAndRejectsRenders(t *testing.T) {
	factory := newFakeFactory()
	pool := newTestPool(t, render.PoolConfig{New: factory.new, Max: 1})

	if _, err := pool.Render(context.Background(), render.Params{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	testutil.RequireClosed(t, factory.renderer(0).closedCh, 5*time.Second, "idle renderer closed")

	if _, err := pool.Render(context.Background(), render.Params{}); !errors.Is(err, render.ErrPoolClosed) {
		t.Fatalf("Render after Close = %v, want ErrPoolClosed", err)
	}
}

func TestCloseWithRenderInFlight(t *testing.T) {
	factory := newFakeFactory()
	gate := make(chan struct{})
	factory.prepare = func(r *fakeRenderer) { r.block = gate }
	pool := newTestPool(t, render.PoolConfig{New: factory.new, Max: 1})

	type renderOutcome struct {
		data []byte
		err  error
	}
	outcomes := make(chan renderOutcome, 1)
	go func() {
		data, err := pool.Render(context.Background(), render.Params{})
		outcomes <- renderOutcome{data: data, err: err}
	}()
	first := testutil.RequireReceive(t, factory.built, 5*time.Second, "first renderer")

	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	close(gate)

	// The in-flight render still delivers, but its handle is
	// destroyed instead of pooled.
	outcome := testutil.RequireReceive(t, outcomes, 5*time.Second, "in-flight render")
	if outcome.err != nil {
		t.Fatalf("in-flight Render: %v", outcome.err)
	}
	if len(outcome.data) == 0 {
		t.Fatal("in-flight Render returned no data")
	}
	testutil.RequireClosed(t, first.closedCh, 5*time.Second, "in-flight renderer closed")
}
