// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"errors"
	"fmt"
)

// Kind classifies a source failure. Callers branch on it through the
// Is* predicates rather than matching error strings.
type Kind int

const (
	// KindIO is a generic read or transport failure.
	KindIO Kind = iota

	// KindInvalidLocation means the archive reference could not be
	// parsed or does not describe a reachable resource.
	KindInvalidLocation

	// KindNotFound means the object or file does not exist.
	KindNotFound

	// KindBucketNotFound means the object store has no such bucket.
	KindBucketNotFound

	// KindAccessDenied means the backend refused the credentials.
	KindAccessDenied

	// KindEtagMismatch means a conditional read failed because the
	// stored object no longer matches the caller's entity tag. The
	// caller's cached view of the archive layout is stale and must be
	// re-fetched.
	KindEtagMismatch

	// KindRateLimited means the backend rejected the request for
	// traffic reasons and a later retry may succeed.
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io failure"
	case KindInvalidLocation:
		return "invalid location"
	case KindNotFound:
		return "not found"
	case KindBucketNotFound:
		return "bucket not found"
	case KindAccessDenied:
		return "access denied"
	case KindEtagMismatch:
		return "etag mismatch"
	case KindRateLimited:
		return "rate limited"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified source failure tied to the location it
// occurred on.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Location is the display form of the archive reference.
	Location string

	// Err is the underlying cause, when there is one.
	Err error
}

func (err *Error) Error() string {
	if err.Err == nil {
		return fmt.Sprintf("source: %s: %s", err.Location, err.Kind)
	}
	return fmt.Sprintf("source: %s: %s: %v", err.Location, err.Kind, err.Err)
}

func (err *Error) Unwrap() error { return err.Err }

// IsNotFound reports whether err is a missing-object failure.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

// IsBucketNotFound reports whether err is a missing-bucket failure.
func IsBucketNotFound(err error) bool { return hasKind(err, KindBucketNotFound) }

// IsAccessDenied reports whether err is a credential rejection.
func IsAccessDenied(err error) bool { return hasKind(err, KindAccessDenied) }

// IsEtagMismatch reports whether err is a failed conditional read
// against a changed object.
func IsEtagMismatch(err error) bool { return hasKind(err, KindEtagMismatch) }

// IsRateLimited reports whether err is a backend throttling response.
func IsRateLimited(err error) bool { return hasKind(err, KindRateLimited) }

// IsInvalidLocation reports whether err is an unparseable or
// unreachable archive reference.
func IsInvalidLocation(err error) bool { return hasKind(err, KindInvalidLocation) }

func hasKind(err error, kind Kind) bool {
	var sourceError *Error
	return errors.As(err, &sourceError) && sourceError.Kind == kind
}
