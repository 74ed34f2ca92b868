// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// Every timeout in the rendering and fetching paths (render deadlines,
// retry backoff, remote asset fetches) waits on a Clock instead of the
// time package, so tests can drive those timeouts deterministically
// with a FakeClock instead of sleeping.
//
// Production code injects Real(). Tests inject Fake(initial), start
// the goroutines under test, call WaitForTimers to rendezvous with
// timer registration, and then Advance to fire deadlines:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	pool := render.NewPool(render.PoolConfig{Clock: fake, ...})
//	go pool.Render(ctx, params)
//	fake.WaitForTimers(1)
//	fake.Advance(30 * time.Second)
package clock

import "time"

// Clock is the time surface used by timeout-bearing code. Real()
// returns the production implementation; Fake() returns a
// deterministic one for tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d has elapsed. If d <= 0 the channel receives
	// immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
