// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tilecast/tilecast/lib/netutil"
)

// objectSource reads ranges from an S3-compatible object store.
type objectSource struct {
	client  *s3.Client
	bucket  string
	key     string
	payer   bool
	display string
}

// NewObjectStore builds a Source over an object-store location. When
// no client is injected through the config, the AWS default
// credential and region chain is loaded once here and reused for
// every read; a custom endpoint switches the client to path-style
// addressing, which self-hosted stores expect. The client always
// runs over the config's HTTP transport, so the short connect and
// first-byte deadlines apply to object reads too.
func NewObjectStore(ctx context.Context, location Location, config Config) (Source, error) {
	client := config.S3Client
	if client == nil {
		loadOptions := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithHTTPClient(config.httpClient()),
		}
		if location.Region != "" {
			loadOptions = append(loadOptions, awsconfig.WithRegion(location.Region))
		}
		if location.Profile != "" {
			loadOptions = append(loadOptions, awsconfig.WithSharedConfigProfile(location.Profile))
		}
		awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
		if err != nil {
			return nil, &Error{
				Kind:     KindInvalidLocation,
				Location: location.String(),
				Err:      fmt.Errorf("loading AWS configuration: %w", err),
			}
		}
		client = s3.NewFromConfig(awsConfig, func(options *s3.Options) {
			if location.Endpoint != "" {
				options.BaseEndpoint = aws.String(endpointURL(location.Endpoint))
				options.UsePathStyle = true
			}
		})
	}
	return &objectSource{
		client:  client,
		bucket:  location.Bucket,
		key:     location.Key,
		payer:   location.RequestPayer,
		display: location.String(),
	}, nil
}

// endpointURL completes a bare endpoint hostname into a URL. An
// endpoint that already carries a scheme passes through, which lets
// tests point at plain-http servers.
func endpointURL(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}

func (s *objectSource) Bytes(ctx context.Context, offset, length int64, etag string) (*Result, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	}
	if etag != "" {
		input.IfMatch = aws.String(etag)
	}
	if s.payer {
		input.RequestPayer = s3types.RequestPayerRequester
	}

	output, err := s.client.GetObject(ctx, input)
	if err != nil {
		return nil, s.classify(err)
	}
	defer output.Body.Close()

	data, err := netutil.ReadBody(output.Body)
	if err != nil {
		return nil, &Error{Kind: KindIO, Location: s.display, Err: fmt.Errorf("reading object body: %w", err)}
	}
	result := &Result{
		Data:         data,
		ETag:         aws.ToString(output.ETag),
		CacheControl: aws.ToString(output.CacheControl),
	}
	if output.Expires != nil {
		result.Expires = *output.Expires
	}
	return result, nil
}

// classify maps store API errors onto the source error taxonomy. A
// failed precondition means the caller's entity tag no longer matches
// the stored object; everything unrecognized stays a generic I/O
// failure with the store's error preserved in the chain.
func (s *objectSource) classify(err error) error {
	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		switch apiError.ErrorCode() {
		case "PreconditionFailed":
			return &Error{Kind: KindEtagMismatch, Location: s.display, Err: err}
		case "NoSuchKey", "NotFound":
			return &Error{Kind: KindNotFound, Location: s.display, Err: err}
		case "NoSuchBucket":
			return &Error{Kind: KindBucketNotFound, Location: s.display, Err: err}
		case "AccessDenied":
			return &Error{Kind: KindAccessDenied, Location: s.display, Err: err}
		case "SlowDown", "TooManyRequests", "Throttling", "RequestLimitExceeded":
			return &Error{Kind: KindRateLimited, Location: s.display, Err: err}
		}
	}
	return &Error{Kind: KindIO, Location: s.display, Err: err}
}

func (s *objectSource) Key() string { return s.display }

func (s *objectSource) Close() error { return nil }
