// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O utilities for Tilecast.
//
// Fetch helpers (ReadBody, ErrorBody, DrainClose) bound all response
// body reads at MaxFetchSize to prevent unbounded memory allocation
// from a misbehaving or malicious server. Tile ranges, sprite sheets,
// glyph ranges, and marker icons are all small; the limit is
// intentionally generous so that it never interferes with normal
// operation.
package netutil

import (
	"io"
)

// MaxFetchSize is the bound on remote body reads: 64 MB. A single
// tile, glyph range, or icon is orders of magnitude smaller.
const MaxFetchSize int64 = 64 << 20

// ReadBody reads a response body up to MaxFetchSize bytes. Use
// instead of io.ReadAll when reading HTTP response bodies.
func ReadBody(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxFetchSize))
}

// ErrorBody reads an HTTP error response body and returns it as a
// string for diagnostic error messages, truncated to a length that
// stays readable in a log line. Read errors are silently ignored — a
// partial or empty body is still useful in an error message.
func ErrorBody(body io.Reader) string {
	const diagnosticLimit = 4 << 10
	data, _ := io.ReadAll(io.LimitReader(body, diagnosticLimit))
	return string(data)
}

// DrainClose discards any unread remainder of a response body and
// closes it, allowing the underlying connection to be reused.
// Byte-range readers issue many small requests against the same host;
// dropping the connection after each one defeats keep-alive.
func DrainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxFetchSize))
	_ = body.Close()
}
