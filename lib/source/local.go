// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// localSource reads ranges from an open file with positioned reads.
// The open descriptor pins one version of the bytes, so the
// conditional-read token is ignored: the file seen by this source
// cannot change underneath it even if the path is replaced.
type localSource struct {
	file *os.File
	path string
}

// OpenLocal opens a local archive file for positioned range reads.
func OpenLocal(location Location) (Source, error) {
	file, err := os.Open(location.Path)
	if err != nil {
		kind := KindIO
		if errors.Is(err, fs.ErrNotExist) {
			kind = KindNotFound
		}
		return nil, &Error{Kind: kind, Location: location.Path, Err: err}
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &Error{Kind: KindIO, Location: location.Path, Err: err}
	}
	if info.IsDir() {
		file.Close()
		return nil, &Error{
			Kind:     KindInvalidLocation,
			Location: location.Path,
			Err:      errors.New("is a directory, not an archive file"),
		}
	}
	return &localSource{file: file, path: location.Path}, nil
}

func (s *localSource) Bytes(ctx context.Context, offset, length int64, etag string) (*Result, error) {
	buffer := make([]byte, length)
	n, err := s.file.ReadAt(buffer, offset)
	if err != nil && !(errors.Is(err, io.EOF) && n > 0) {
		return nil, &Error{
			Kind:     KindIO,
			Location: s.path,
			Err:      fmt.Errorf("reading %d bytes at offset %d: %w", length, offset, err),
		}
	}
	return &Result{Data: buffer[:n]}, nil
}

func (s *localSource) Key() string { return s.path }

func (s *localSource) Close() error { return s.file.Close() }
