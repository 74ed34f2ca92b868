// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package source_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tilecast/tilecast/lib/source"
)

// newObjectSource builds an object-store source whose client is
// pointed at a local test server with path-style addressing, the same
// shape a self-hosted store presents.
func newObjectSource(t *testing.T, handler http.Handler, location source.Location) source.Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(server.URL),
		Region:       "us-east-1",
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test", "test", ""),
		HTTPClient:   server.Client(),
		Retryer:      aws.NopRetryer{},
	})
	src, err := source.NewObjectStore(context.Background(), location, source.Config{S3Client: client})
	if err != nil {
		t.Fatalf("NewObjectStore: %v", err)
	}
	return src
}

func s3ErrorBody(code string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>%s</Code><Message>%s</Message><RequestId>test</RequestId></Error>`, code, code)
}

func TestObjectStoreRangeReadSendsHeaders(t *testing.T) {
	content := []byte("0123456789abcdef")
	var gotRange, gotIfMatch, gotPayer string

	location := source.Location{
		Type:         source.TypeObjectStore,
		Bucket:       "tiles",
		Key:          "world.pmtiles",
		RequestPayer: true,
	}
	src := newObjectSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tiles/world.pmtiles" {
			t.Errorf("request path = %q, want %q", r.URL.Path, "/tiles/world.pmtiles")
		}
		gotRange = r.Header.Get("Range")
		gotIfMatch = r.Header.Get("If-Match")
		gotPayer = r.Header.Get("x-amz-request-payer")
		w.Header().Set("ETag", `"object-v1"`)
		w.Header().Set("Cache-Control", "max-age=86400")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(content[4:10])
	}), location)

	result, err := src.Bytes(context.Background(), 4, 6, `"object-v1"`)
	if err != nil {
		t.Fatalf("Bytes(4, 6): %v", err)
	}
	if !bytes.Equal(result.Data, content[4:10]) {
		t.Fatalf("Bytes(4, 6) = %q, want %q", result.Data, content[4:10])
	}
	if gotRange != "bytes=4-9" {
		t.Errorf("Range header = %q, want %q", gotRange, "bytes=4-9")
	}
	if gotIfMatch != `"object-v1"` {
		t.Errorf("If-Match header = %q, want %q", gotIfMatch, `"object-v1"`)
	}
	if gotPayer != "requester" {
		t.Errorf("x-amz-request-payer header = %q, want %q", gotPayer, "requester")
	}
	if result.ETag != `"object-v1"` {
		t.Errorf("ETag = %q, want %q", result.ETag, `"object-v1"`)
	}
	if result.CacheControl != "max-age=86400" {
		t.Errorf("CacheControl = %q, want %q", result.CacheControl, "max-age=86400")
	}
}

func TestObjectStoreErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		code   string
		check  func(error) bool
		name   string
	}{
		{http.StatusPreconditionFailed, "PreconditionFailed", source.IsEtagMismatch, "etag mismatch"},
		{http.StatusNotFound, "NoSuchKey", source.IsNotFound, "not found"},
		{http.StatusNotFound, "NoSuchBucket", source.IsBucketNotFound, "bucket not found"},
		{http.StatusForbidden, "AccessDenied", source.IsAccessDenied, "access denied"},
		{http.StatusServiceUnavailable, "SlowDown", source.IsRateLimited, "rate limited"},
	}
	for _, c := range cases {
		location := source.Location{Type: source.TypeObjectStore, Bucket: "tiles", Key: "world.pmtiles"}
		src := newObjectSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(c.status)
			fmt.Fprint(w, s3ErrorBody(c.code))
		}), location)

		if _, err := src.Bytes(context.Background(), 0, 4, ""); !c.check(err) {
			t.Errorf("store error %s mapped to %v, want %s", c.code, err, c.name)
		}
	}
}

func TestObjectStoreKeyIsDisplayForm(t *testing.T) {
	location := source.Location{Type: source.TypeObjectStore, Bucket: "tiles", Key: "world.pmtiles"}
	src := newObjectSource(t, http.NotFoundHandler(), location)
	if got := src.Key(); got != "s3://tiles/world.pmtiles" {
		t.Fatalf("Key() = %q, want %q", got, "s3://tiles/world.pmtiles")
	}
}
