// Package archive stores raw bar batches in cold storage so repeated
// backfills can skip the network.
package archive

import (
	"context"

	"github.com/newthinker/structura/internal/core"
)

// Storage defines the interface for cold/archive storage backends.
// Read returns an error matching core.ErrArchiveMiss for a missing path.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

func missing(path string, cause error) error {
	return core.WrapError(core.ErrArchiveMiss, &pathError{path: path, cause: cause})
}

type pathError struct {
	path  string
	cause error
}

func (e *pathError) Error() string { return e.path + ": " + e.cause.Error() }
func (e *pathError) Unwrap() error { return e.cause }
