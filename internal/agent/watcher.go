package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mediaagent/internal/ingest"
	"mediaagent/internal/logging"
	"mediaagent/internal/transcode"
)

const minWatchTick = 50 * time.Millisecond

// watcher turns filesystem activity under the media root into cycle triggers.
// A path triggers once it has seen no writes for the settle delay. Triggers
// coalesce: a cycle already signalled absorbs later ones.
type watcher struct {
	root    string
	settle  time.Duration
	logger  *slog.Logger
	fs      *fsnotify.Watcher
	trigger chan struct{}

	mu      sync.Mutex
	pending map[string]time.Time
}

func newWatcher(root string, settle time.Duration, logger *slog.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create media watcher: %w", err)
	}
	w := &watcher{
		root:    root,
		settle:  settle,
		logger:  logging.NewComponentLogger(logger, "watcher"),
		fs:      fw,
		trigger: make(chan struct{}, 1),
		pending: make(map[string]time.Time),
	}
	if err := w.addRecursive(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Events delivers one value per settled burst of changes.
func (w *watcher) Events() <-chan struct{} { return w.trigger }

func (w *watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run consumes fsnotify events until ctx is done.
func (w *watcher) Run(ctx context.Context) {
	tick := w.settle / 4
	if tick < minWatchTick {
		tick = minWatchTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("media watcher error", logging.Error(err))
		case <-ticker.C:
			w.flush(time.Now())
		}
	}
}

func (w *watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Debug("could not watch new directory", logging.String("path", event.Name), logging.Error(err))
			}
			w.mark(event.Name)
		}
		return
	}
	if transcode.IsTempArtifact(event.Name) || ingest.IsPartial(event.Name) {
		return
	}
	if ingest.Classify(event.Name) == ingest.KindOther {
		return
	}
	w.mark(event.Name)
}

func (w *watcher) mark(path string) {
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *watcher) flush(now time.Time) {
	w.mu.Lock()
	settled := 0
	for path, seen := range w.pending {
		if now.Sub(seen) < w.settle {
			continue
		}
		delete(w.pending, path)
		settled++
	}
	w.mu.Unlock()
	if settled == 0 {
		return
	}
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *watcher) Close() error {
	return w.fs.Close()
}
