package transfer

import (
	"context"
	"os"
	"path/filepath"

	"mediaagent/internal/fileutil"
)

// Local is a Transport over the local filesystem.
type Local struct{}

// NewLocal returns the local filesystem transport.
func NewLocal() Local { return Local{} }

// FreeSpace returns the free bytes of the filesystem holding dir, or of its
// nearest existing parent.
func (Local) FreeSpace(ctx context.Context, dir string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return fileutil.FreeBytes(existingAncestor(dir))
}

func (Local) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return fileutil.Exists(path)
}

func (Local) MkdirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// Put copies local to remote through a verified .part file.
func (Local) Put(ctx context.Context, local, remote string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return fileutil.CopyVerified(local, remote)
}

func (Local) Close() error { return nil }

func existingAncestor(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
