// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Result is one satisfied byte-range read.
type Result struct {
	// Data holds the requested bytes. A read that runs past the end
	// of the resource returns the bytes that exist, so Data can be
	// shorter than the requested length.
	Data []byte

	// ETag is the entity tag the backend reported, when it reports
	// one. Callers thread it back into later conditional reads.
	ETag string

	// Expires is the backend-declared expiry, zero when absent.
	Expires time.Time

	// CacheControl is the backend's Cache-Control value, when present.
	CacheControl string
}

// Source reads byte ranges from one open archive backend. A Source is
// safe for concurrent use.
type Source interface {
	// Bytes reads length bytes starting at offset. A non-empty etag
	// makes the read conditional on backends that support it: the
	// read fails with KindEtagMismatch when the stored object no
	// longer matches.
	Bytes(ctx context.Context, offset, length int64, etag string) (*Result, error)

	// Key returns a stable identifier for this open resource, used
	// for cache keying and log correlation.
	Key() string

	// Close releases the underlying resource.
	Close() error
}

// Config carries shared construction options for sources.
type Config struct {
	// HTTPClient is used for HTTP archives and, when no S3Client is
	// injected, for object-store transport. Defaults to a
	// [NewHTTPClient] client with short connect and first-byte
	// deadlines.
	HTTPClient *http.Client

	// S3Client overrides the constructed object-store client. Tests
	// inject one pointed at a local endpoint.
	S3Client *s3.Client

	// Logger is used for structured logging. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return defaultHTTPClient
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Open constructs the Source matching the location's type.
func Open(ctx context.Context, location Location, config Config) (Source, error) {
	switch location.Type {
	case TypeLocal:
		return OpenLocal(location)
	case TypeHTTP:
		return NewHTTP(location, config), nil
	case TypeObjectStore:
		return NewObjectStore(ctx, location, config)
	}
	return nil, &Error{
		Kind:     KindInvalidLocation,
		Location: location.String(),
		Err:      fmt.Errorf("unknown location type %d", int(location.Type)),
	}
}
