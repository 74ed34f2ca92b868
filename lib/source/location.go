// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// Type tags the backend a Location refers to.
type Type int

const (
	// TypeLocal is a file on the local filesystem.
	TypeLocal Type = iota

	// TypeHTTP is an archive served over http(s) with range requests.
	TypeHTTP

	// TypeObjectStore is an object in an S3-compatible store.
	TypeObjectStore
)

func (t Type) String() string {
	switch t {
	case TypeLocal:
		return "local"
	case TypeHTTP:
		return "http"
	case TypeObjectStore:
		return "objectstore"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Location identifies where archive bytes live and how to reach them.
// Produced by [ParseLocation], consumed by [Open].
type Location struct {
	// Type selects the backend.
	Type Type

	// Path is the filesystem path. Set for TypeLocal.
	Path string

	// URL is the full request URL. Set for TypeHTTP.
	URL string

	// Endpoint is the object-store host, empty when the bucket lives
	// on the default AWS endpoint for the resolved region. Set for
	// TypeObjectStore.
	Endpoint string

	// Bucket and Key name the object. Set for TypeObjectStore.
	Bucket string
	Key    string

	// Profile is the named credentials profile to load, empty for the
	// default chain.
	Profile string

	// Region is the resolved store region, empty to let the SDK's
	// own resolution run.
	Region string

	// RequestPayer marks reads as requester-pays.
	RequestPayer bool
}

// String returns the display form of the location used in logs and
// error messages.
func (l Location) String() string {
	switch l.Type {
	case TypeHTTP:
		return l.URL
	case TypeObjectStore:
		if l.Endpoint != "" {
			return "s3://" + l.Endpoint + "/" + l.Bucket + "/" + l.Key
		}
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// Object URL layout names accepted by the s3UrlFormat query parameter
// and by Overrides.URLFormat.
const (
	// FormatAWS is the two-part layout s3://bucket/key.
	FormatAWS = "aws"

	// FormatCustom is the three-part layout s3://endpoint/bucket/key
	// for S3-compatible stores on their own hostname.
	FormatCustom = "custom"
)

// Overrides carries caller-level settings that take precedence over
// URL query parameters and the process environment. Zero values mean
// "not set".
type Overrides struct {
	// Profile overrides the credentials profile.
	Profile string

	// Region overrides the store region.
	Region string

	// RequestPayer overrides requester-pays. The pointer carries
	// presence: nil defers to the URL and default, while both &true
	// and &false win over them.
	RequestPayer *bool

	// URLFormat forces the object URL layout: FormatAWS, FormatCustom,
	// or empty to detect from the URL shape.
	URLFormat string
}

// ParseLocation classifies an archive reference string into a
// Location. References starting with http:// or https:// are HTTP
// archives, s3:// references are object-store archives, and anything
// else (including file://) is a local path.
//
// For object-store references, access options resolve with the
// precedence overrides > URL query > environment: profile from
// AWS_PROFILE, region from AWS_REGION. The requestPayer query value
// is affirmative only for "true" or "1"; everything else leaves
// requester-pays off.
func ParseLocation(reference string, overrides Overrides, logger *slog.Logger) (Location, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch {
	case strings.HasPrefix(reference, "http://"), strings.HasPrefix(reference, "https://"):
		return Location{Type: TypeHTTP, URL: reference}, nil
	case strings.HasPrefix(reference, "s3://"):
		return parseObjectLocation(reference, overrides, logger)
	case strings.HasPrefix(reference, "file://"):
		return Location{Type: TypeLocal, Path: strings.TrimPrefix(reference, "file://")}, nil
	}
	return Location{Type: TypeLocal, Path: reference}, nil
}

// parseObjectLocation splits an s3:// reference into endpoint, bucket,
// and key. Two layouts exist in the wild: the AWS form s3://bucket/key
// and the self-hosted form s3://endpoint/bucket/key. When no layout is
// forced, the self-hosted form is tried first: a first path component
// containing a dot with at least two components after it reads as a
// hostname. Dotted bucket names on AWS therefore need URLFormat (or
// the s3UrlFormat query parameter) set to FormatAWS.
func parseObjectLocation(reference string, overrides Overrides, logger *slog.Logger) (Location, error) {
	trimmed := strings.TrimPrefix(reference, "s3://")
	rest, rawQuery, _ := strings.Cut(trimmed, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Location{}, &Error{
			Kind:     KindInvalidLocation,
			Location: reference,
			Err:      fmt.Errorf("parsing query parameters: %w", err),
		}
	}

	format := overrides.URLFormat
	if format == "" {
		format = query.Get("s3UrlFormat")
	}
	switch format {
	case "", FormatAWS, FormatCustom:
	default:
		logger.Warn("unrecognized object URL format, detecting from URL shape",
			"format", format, "location", reference)
		format = ""
	}

	location := Location{Type: TypeObjectStore}
	segments := strings.Split(rest, "/")
	useCustom := format == FormatCustom ||
		(format == "" && len(segments) >= 3 && strings.Contains(segments[0], "."))
	if useCustom {
		if len(segments) < 3 {
			return Location{}, invalidObjectURL(reference)
		}
		location.Endpoint = segments[0]
		location.Bucket = segments[1]
		location.Key = strings.Join(segments[2:], "/")
	} else {
		if len(segments) < 2 {
			return Location{}, invalidObjectURL(reference)
		}
		location.Bucket = segments[0]
		location.Key = strings.Join(segments[1:], "/")
	}
	if location.Bucket == "" || location.Key == "" {
		return Location{}, invalidObjectURL(reference)
	}

	location.Profile = firstNonEmpty(overrides.Profile, query.Get("profile"), os.Getenv("AWS_PROFILE"))
	location.Region = firstNonEmpty(overrides.Region, query.Get("region"), os.Getenv("AWS_REGION"))
	if overrides.RequestPayer != nil {
		location.RequestPayer = *overrides.RequestPayer
	} else {
		location.RequestPayer = isAffirmative(query.Get("requestPayer"))
	}
	return location, nil
}

func invalidObjectURL(reference string) *Error {
	return &Error{
		Kind:     KindInvalidLocation,
		Location: reference,
		Err: errors.New("expected s3://bucket/key or s3://endpoint/bucket/key; " +
			"set s3UrlFormat=aws or s3UrlFormat=custom to force a layout"),
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// isAffirmative reports whether a boolean-ish query value is set.
// Only "true" and "1" count; anything else, including "yes" and
// mixed-case spellings, reads as false.
func isAffirmative(value string) bool {
	return value == "true" || value == "1"
}
