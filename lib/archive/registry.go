// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"sync"
)

// Entry is one served archive: an open handle, its resolved serving
// metadata, and per-archive serving behavior.
type Entry struct {
	// ID is the serving identifier, the {id} in tile URLs.
	ID string

	// Handle is the open archive.
	Handle Handle

	// Metadata is the resolved serving view.
	Metadata *Metadata

	// Sparse marks coverage-area archives: a missing tile inside the
	// zoom range means "intentionally empty" rather than "fill with a
	// placeholder".
	Sparse bool

	// Background is the placeholder fill used for missing tiles of
	// dense raster archives. The zero value is fully transparent.
	Background color.NRGBA
}

// Registry maps serving IDs to open archives. Registration normally
// happens at startup, but entries can be added and removed while
// serving; lookups take a read lock only.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds an entry. The ID must not already be registered.
func (r *Registry) Register(entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[entry.ID]; exists {
		return fmt.Errorf("archive: id %q already registered", entry.ID)
	}
	r.entries[entry.ID] = entry
	return nil
}

// Lookup returns the entry for an ID.
func (r *Registry) Lookup(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// Remove unregisters an entry and closes its handle.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	entry, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("archive: id %q not registered", id)
	}
	return entry.Handle.Close()
}

// IDs returns the registered IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every registered handle and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*Entry)
	r.mu.Unlock()

	var errs []error
	for _, entry := range entries {
		if err := entry.Handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", entry.ID, err))
		}
	}
	return errors.Join(errs...)
}
