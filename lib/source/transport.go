// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"net"
	"net/http"
	"time"
)

// Transport deadlines for remote backends. A tile fetch holds a
// render slot while it waits, so a stalled connect or an origin that
// accepts and never answers must fail within seconds; the body read
// itself stays bounded by the caller's context.
const (
	DialTimeout           = 5 * time.Second
	TLSHandshakeTimeout   = 5 * time.Second
	ResponseHeaderTimeout = 5 * time.Second
)

// NewHTTPClient builds the client used for HTTP archives and
// object-store transport when the config injects none. There is no
// whole-request timeout: range reads of large archives legitimately
// take longer than any fixed budget, and the per-request context
// covers them.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			ForceAttemptHTTP2:     true,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

var defaultHTTPClient = NewHTTPClient()
