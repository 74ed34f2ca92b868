// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"log/slog"
	"os"
)

// NewLogger creates the server's structured logger: JSON on stderr,
// Info level unless verbose asks for Debug. The logger is installed
// as the slog default so that stray library logging lands in the same
// stream.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
