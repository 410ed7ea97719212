package transfer

import (
	"context"
	"errors"
	"fmt"
)

// PartSuffix marks an upload that has not been verified and renamed yet.
const PartSuffix = ".part"

// ErrSizeMismatch reports that the uploaded file does not match the local size.
var ErrSizeMismatch = errors.New("transfer size mismatch")

// Transport is a destination filesystem.
type Transport interface {
	// FreeSpace returns bytes available to the login user under dir.
	FreeSpace(ctx context.Context, dir string) (uint64, error)
	// Exists reports whether path exists.
	Exists(ctx context.Context, path string) (bool, error)
	// MkdirAll creates dir and its parents.
	MkdirAll(ctx context.Context, dir string) error
	// Put copies the local file to remote and returns the bytes written.
	Put(ctx context.Context, local, remote string) (int64, error)
	// Close releases the connection.
	Close() error
}

func sizeMismatch(remote string, want, got int64) error {
	return fmt.Errorf("%w: %s has %d bytes, expected %d", ErrSizeMismatch, remote, got, want)
}
