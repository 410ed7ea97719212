package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/pkg/sftp"
)

// SFTP is a Transport over an SFTP session.
type SFTP struct {
	client *sftp.Client
	closer io.Closer
	host   string
}

// NewSFTP wraps an established client. closer, when set, is closed after the
// client (the underlying SSH connection).
func NewSFTP(host string, client *sftp.Client, closer io.Closer) *SFTP {
	return &SFTP{client: client, closer: closer, host: host}
}

// Host returns the remote host name.
func (s *SFTP) Host() string { return s.host }

// FreeSpace queries statvfs on the remote filesystem holding dir, walking up
// to the nearest existing parent.
func (s *SFTP) FreeSpace(ctx context.Context, dir string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	target := path.Clean(dir)
	var firstErr error
	for {
		stat, err := s.client.StatVFS(target)
		if err == nil {
			return stat.Bavail * stat.Frsize, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		parent := path.Dir(target)
		if parent == target {
			return 0, fmt.Errorf("statvfs %s:%s: %w", s.host, dir, firstErr)
		}
		target = parent
	}
}

func (s *SFTP) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := s.client.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s:%s: %w", s.host, p, err)
}

func (s *SFTP) MkdirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.MkdirAll(dir); err != nil {
		return fmt.Errorf("mkdir %s:%s: %w", s.host, dir, err)
	}
	return nil
}

// Put streams local into remote+".part", checks the remote size and renames
// it over remote.
func (s *SFTP) Put(ctx context.Context, local, remote string) (int64, error) {
	in, err := os.Open(local)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	part := remote + PartSuffix
	out, err := s.client.Create(part)
	if err != nil {
		return 0, fmt.Errorf("create %s:%s: %w", s.host, part, err)
	}
	written, copyErr := out.ReadFrom(contextReader{ctx: ctx, r: in})
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = s.client.Remove(part)
		return 0, fmt.Errorf("upload %s:%s: %w", s.host, part, err)
	}

	remoteInfo, err := s.client.Stat(part)
	if err != nil {
		_ = s.client.Remove(part)
		return 0, fmt.Errorf("stat %s:%s: %w", s.host, part, err)
	}
	if remoteInfo.Size() != info.Size() || written != info.Size() {
		_ = s.client.Remove(part)
		return 0, sizeMismatch(remote, info.Size(), remoteInfo.Size())
	}
	if err := s.client.PosixRename(part, remote); err != nil {
		_ = s.client.Remove(part)
		return 0, fmt.Errorf("rename %s:%s: %w", s.host, remote, err)
	}
	return written, nil
}

// Close ends the SFTP session and the SSH connection beneath it.
func (s *SFTP) Close() error {
	err := s.client.Close()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}

// contextReader aborts a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
