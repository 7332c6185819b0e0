package library

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ac-schroeder/DJApp/internal/logger"
)

// settleDelay is how long a file must go without write events before it is
// probed; copies in progress are otherwise rejected as unreadable.
const settleDelay = 500 * time.Millisecond

// Watcher adds audio files that appear in a directory to a library.
type Watcher struct {
	lib      *Library
	dir      string
	supports func(path string) bool
	settle   time.Duration
}

// NewWatcher watches dir, adding files for which supports returns true.
func NewWatcher(lib *Library, dir string, supports func(path string) bool) *Watcher {
	return &Watcher{lib: lib, dir: dir, supports: supports, settle: settleDelay}
}

// Run blocks until ctx is cancelled or the watch fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logger.Info("watching for new tracks", logger.String("dir", w.dir))

	pending := make(map[string]time.Time)
	tick := time.NewTicker(w.settle / 5)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !w.supports(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", logger.String("dir", w.dir), logger.ErrorField(err))

		case now := <-tick.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				w.add(path)
			}
		}
	}
}

func (w *Watcher) add(path string) {
	abs, err := filepath.Abs(path)
	if err != nil || w.lib.HasPath(abs) {
		return
	}
	// Add logs failures.
	if t, err := w.lib.Add(abs); err == nil {
		logger.Info("watched track added", logger.Int("id", t.ID), logger.String("path", abs))
	}
}
