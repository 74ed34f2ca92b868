// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tilecast/tilecast/lib/archive"
)

// tileJSON builds a TileJSON 3.0 document for a registered archive.
// The archive's own metadata document seeds the result so extra keys
// such as vector_layers survive, then the canonical fields are
// overwritten from what the server actually knows.
func tileJSON(entry *archive.Entry, baseURL string) map[string]any {
	meta := entry.Metadata
	document := make(map[string]any, len(meta.Document)+8)
	for key, value := range meta.Document {
		document[key] = value
	}
	document["tilejson"] = "3.0.0"
	document["scheme"] = "xyz"
	document["tiles"] = []string{
		fmt.Sprintf("%s/data/%s/{z}/{x}/{y}.%s", baseURL, entry.ID, meta.Format.Extension()),
	}
	document["format"] = meta.Format.Extension()
	document["minzoom"] = meta.MinZoom
	document["maxzoom"] = meta.MaxZoom
	document["bounds"] = []float64{
		meta.Bounds.Min[0], meta.Bounds.Min[1],
		meta.Bounds.Max[0], meta.Bounds.Max[1],
	}
	document["center"] = []float64{
		meta.Center[0], meta.Center[1], float64(meta.CenterZoom),
	}
	if meta.Name != "" {
		document["name"] = meta.Name
	}
	if meta.Attribution != "" {
		document["attribution"] = meta.Attribution
	}
	return document
}

// requestBaseURL reconstructs the externally visible origin so tile
// URL templates point back at the right host. A reverse proxy's
// X-Forwarded-Proto wins over the transport the request arrived on.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme, _, _ = strings.Cut(forwarded, ",")
		scheme = strings.TrimSpace(scheme)
	}
	return scheme + "://" + r.Host
}
