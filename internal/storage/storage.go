// Package storage holds the files of a pipeline job: uploaded inputs, the
// intermediate cropped video and the result, plus optional publishing of
// results to S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for job file storage.
type Storage interface {
	// Dir returns the directory where job files live.
	Dir() string

	// SaveTemp saves data to a new file and returns its path. The name is a
	// hint for the filename; its extension is preserved because the model
	// tools pick readers by extension.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a stored file.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Publish uploads a result video and returns its URL.
	// Returns ErrPublishNotConfigured when no remote store is configured.
	Publish(ctx context.Context, key string, data io.Reader) (url string, err error)
}
