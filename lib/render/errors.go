// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package render

import "errors"

// ErrPoolClosed is returned by renders issued against a closed pool.
var ErrPoolClosed = errors.New("render: pool closed")

// ErrExhausted is returned when the pool is at its maximum size, every
// handle is busy, and the caller's context expires before one frees.
var ErrExhausted = errors.New("render: pool exhausted")

// ErrTimeout is returned when a render misses the pool's deadline. The
// handle involved has been evicted and its eventual result is
// discarded.
var ErrTimeout = errors.New("render: render timed out")

// InitError reports a failure to construct a renderer handle.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return "render: creating renderer: " + e.Err.Error()
}

func (e *InitError) Unwrap() error { return e.Err }

// RenderError reports a failure inside a renderer handle. The handle
// involved has been evicted.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return "render: " + e.Err.Error()
}

func (e *RenderError) Unwrap() error { return e.Err }
