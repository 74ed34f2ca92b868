// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tilecast/tilecast/lib/netutil"
)

// httpSource reads ranges with HTTP Range requests. It holds no
// connection state of its own; the injected client's transport pools
// connections across reads.
type httpSource struct {
	url    string
	client *http.Client
}

// NewHTTP returns a Source that issues Range requests against an
// http(s) archive URL.
func NewHTTP(location Location, config Config) Source {
	return &httpSource{url: location.URL, client: config.httpClient()}
}

func (s *httpSource) Bytes(ctx context.Context, offset, length int64, etag string) (*Result, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &Error{Kind: KindInvalidLocation, Location: s.url, Err: err}
	}
	request.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	if etag != "" {
		request.Header.Set("If-Match", etag)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return nil, &Error{Kind: KindIO, Location: s.url, Err: err}
	}
	defer netutil.DrainClose(response.Body)

	switch response.StatusCode {
	case http.StatusPartialContent, http.StatusOK:
	case http.StatusPreconditionFailed:
		return nil, &Error{Kind: KindEtagMismatch, Location: s.url}
	case http.StatusNotFound:
		return nil, &Error{Kind: KindNotFound, Location: s.url}
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &Error{Kind: KindAccessDenied, Location: s.url, Err: errors.New(netutil.ErrorBody(response.Body))}
	case http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimited, Location: s.url}
	default:
		return nil, &Error{
			Kind:     KindIO,
			Location: s.url,
			Err:      fmt.Errorf("HTTP %d: %s", response.StatusCode, netutil.ErrorBody(response.Body)),
		}
	}

	data, err := netutil.ReadBody(response.Body)
	if err != nil {
		return nil, &Error{Kind: KindIO, Location: s.url, Err: fmt.Errorf("reading range body: %w", err)}
	}

	// A 200 means the server ignored the Range header and returned
	// the whole resource. Carve the requested window out of it.
	if response.StatusCode == http.StatusOK {
		total := int64(len(data))
		if offset >= total {
			return nil, &Error{
				Kind:     KindIO,
				Location: s.url,
				Err:      fmt.Errorf("range offset %d past end of %d-byte resource", offset, total),
			}
		}
		end := min(offset+length, total)
		data = data[offset:end]
	}

	result := &Result{
		Data:         data,
		ETag:         response.Header.Get("ETag"),
		CacheControl: response.Header.Get("Cache-Control"),
	}
	if expires := response.Header.Get("Expires"); expires != "" {
		if parsed, err := http.ParseTime(expires); err == nil {
			result.Expires = parsed
		}
	}
	return result, nil
}

func (s *httpSource) Key() string { return s.url }

func (s *httpSource) Close() error { return nil }
