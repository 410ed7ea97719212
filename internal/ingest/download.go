package ingest

import (
	"context"
	"os"
	"strings"
	"time"
)

const partialSuffix = ".part"

// DownloadCheck decides whether a file has finished downloading: it must not
// carry the partial suffix and its size must hold steady across Interval.
type DownloadCheck struct {
	Interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewDownloadCheck returns a check that waits interval between size samples.
func NewDownloadCheck(interval time.Duration) DownloadCheck {
	return DownloadCheck{Interval: interval}
}

// IsPartial reports whether path is an in-progress download.
func IsPartial(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), partialSuffix)
}

// Complete reports whether path is fully downloaded. A file that vanishes
// between samples is reported incomplete without error.
func (c DownloadCheck) Complete(ctx context.Context, path string) (bool, error) {
	if IsPartial(path) {
		return false, nil
	}
	before, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if c.Interval <= 0 {
		return true, nil
	}
	sleep := c.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if err := sleep(ctx, c.Interval); err != nil {
		return false, err
	}
	after, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return before.Size() == after.Size() && before.ModTime().Equal(after.ModTime()), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
