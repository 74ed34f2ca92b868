// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

// Package serve is the HTTP serving layer: the route handlers that
// map tile URLs onto archives and renderer pools, and the server
// lifecycle around them.
//
// An App owns the serving state — the archive registry, the retrying
// read client, the resolver, one renderer pool set per style, and the
// overlay compositor — and exposes it as an http.Handler:
//
//	GET /health
//	GET /data/{id}.json                     TileJSON
//	GET /data/{id}/{z}/{x}/{y}.{ext}        stored tiles, no renderer
//	GET /styles/{id}.json                   style document
//	GET /styles/{id}/{z}/{x}/{y}[@Nx].{ext} rendered tiles
//	GET /styles/{id}/static/{position}/{size}[@Nx].{ext}
//	                                        static images with overlays
//
// Request failures map to statuses at the handler boundary: malformed
// addresses are 400s, unknown IDs and missing tiles are 404s, render
// breakdowns are 5xx. One bad request never takes down the process.
//
// Server wraps net/http serving with a Ready channel, a resolved
// Addr, and graceful drain on context cancellation.
package serve
