// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/zeebo/blake3"
)

// etagFor computes a strong validator for a response body: the first
// half of the body's BLAKE3 digest, hex-encoded and quoted. The
// validator names the exact bytes being sent, so the gzip and
// identity forms of a stored tile carry distinct validators.
func etagFor(data []byte) string {
	sum := blake3.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatch reports whether an If-None-Match header value matches the
// given validator. Handles the wildcard and comma-separated lists;
// weak validators compare by their opaque tag, since the bodies they
// name here are byte-exact.
func etagMatch(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}

// writeCachable writes a response body with its validator, answering
// 304 Not Modified when the request already holds the current bytes.
// Extra header pairs are set on both outcomes, so revalidations keep
// their content metadata.
func writeCachable(writer http.ResponseWriter, request *http.Request, contentType string, data []byte, headers ...string) {
	etag := etagFor(data)
	writer.Header().Set("ETag", etag)
	writer.Header().Set("Content-Type", contentType)
	for i := 0; i+1 < len(headers); i += 2 {
		writer.Header().Set(headers[i], headers[i+1])
	}
	if etagMatch(request.Header.Get("If-None-Match"), etag) {
		writer.WriteHeader(http.StatusNotModified)
		return
	}
	writer.Write(data)
}
