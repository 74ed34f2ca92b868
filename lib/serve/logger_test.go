// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"log/slog"
	"testing"
)

func TestNewRequestIDNeverEmpty(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newRequestID(logger)
		if id == "" {
			t.Fatal("newRequestID returned an empty correlation ID")
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Errorf("newRequestID produced %d distinct IDs in 100 calls, want many", len(seen))
	}
}
