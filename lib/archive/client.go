// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tilecast/tilecast/lib/clock"
	"github.com/tilecast/tilecast/lib/source"
)

// defaultAttempts bounds tries for one archive read.
const defaultAttempts = 3

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Attempts is the bound on tries for one read, counting the
	// first. Defaults to 3.
	Attempts int

	// Clock provides time operations for backoff. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

// Client is the archive read path. Reads that fail on backend rate
// limiting are retried with exponential backoff; every other failure
// is immediate, since repeating a read that failed for a structural
// reason (missing object, denied access, corrupt bytes) cannot
// succeed.
type Client struct {
	attempts int
	clock    clock.Clock
	logger   *slog.Logger
}

// NewClient creates a Client from the given configuration.
func NewClient(config ClientConfig) *Client {
	client := &Client{
		attempts: config.Attempts,
		clock:    config.Clock,
		logger:   config.Logger,
	}
	if client.attempts <= 0 {
		client.attempts = defaultAttempts
	}
	if client.clock == nil {
		client.clock = clock.Real()
	}
	if client.logger == nil {
		client.logger = slog.New(slog.DiscardHandler)
	}
	return client
}

// MetadataError reports that an archive's self-description could not
// be read. Nothing can be served from an archive without it, so this
// fails the registration or request that needed it.
type MetadataError struct {
	// Location is the archive's display reference.
	Location string

	// Err is the underlying read failure.
	Err error
}

func (err *MetadataError) Error() string {
	return fmt.Sprintf("archive: reading metadata for %s: %v", err.Location, err.Err)
}

func (err *MetadataError) Unwrap() error { return err.Err }

// IsMetadataUnavailable reports whether err is a failed metadata read.
func IsMetadataUnavailable(err error) bool {
	var metadataError *MetadataError
	return errors.As(err, &metadataError)
}

// Metadata reads an archive's header and metadata document and
// resolves them into the serving view. display names the archive in
// logs and errors.
func (c *Client) Metadata(ctx context.Context, handle Handle, display string) (*Metadata, error) {
	var header Header
	err := c.withRetry(ctx, "header", display, func() error {
		var headerErr error
		header, headerErr = handle.Header(ctx)
		return headerErr
	})
	if err != nil {
		return nil, &MetadataError{Location: display, Err: err}
	}

	var document map[string]any
	err = c.withRetry(ctx, "metadata", display, func() error {
		var documentErr error
		document, documentErr = handle.Metadata(ctx)
		return documentErr
	})
	if err != nil {
		return nil, &MetadataError{Location: display, Err: err}
	}

	return ResolveMetadata(header, document), nil
}

// Tile reads one tile. A missing tile, an exhausted retry budget, and
// a non-retryable read failure all come back as (nil, false): the
// caller can always answer "no tile", and failures are logged here
// rather than failing the request.
func (c *Client) Tile(ctx context.Context, handle Handle, display string, z uint8, x, y uint32) ([]byte, bool) {
	var data []byte
	err := c.withRetry(ctx, "tile", display, func() error {
		var tileErr error
		data, tileErr = handle.Tile(ctx, z, x, y)
		return tileErr
	})
	if err != nil {
		c.logger.Warn("archive tile read failed",
			"archive", display, "z", z, "x", x, "y", y, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	return data, true
}

// withRetry runs call up to c.attempts times, backing off only on
// rate-limited failures. Backoff doubles per attempt: 1s, then 2s.
func (c *Client) withRetry(ctx context.Context, operation, display string, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !source.IsRateLimited(lastErr) {
			return lastErr
		}
		if attempt == c.attempts {
			break
		}

		backoff := time.Duration(1<<(attempt-1)) * time.Second
		c.logger.Warn("archive read rate limited, backing off",
			"operation", operation, "archive", display,
			"attempt", attempt, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(backoff):
		}
	}
	return fmt.Errorf("archive: %s read for %s rate limited across %d attempts: %w",
		operation, display, c.attempts, lastErr)
}
