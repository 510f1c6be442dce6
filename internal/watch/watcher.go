// Package watch triggers reindex runs when transcripts change on disk.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
)

// DefaultDebounce coalesces event bursts from editors and the agent's
// own append-heavy writes.
const DefaultDebounce = 2 * time.Second

// Watcher observes a transcript root recursively and fires a reindex
// callback after a quiet period. Concurrent triggers collapse into a
// single run.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
	reindex  func() error
	group    singleflight.Group
}

func New(root string, debounce time.Duration, logger *slog.Logger, reindex func() error) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		logger:   logger,
		reindex:  reindex,
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// new day directories appear as sessions roll over
					if err := w.addRecursive(fsw, ev.Name); err != nil {
						w.logger.Warn("watch: add dir failed", "path", ev.Name, "err", err)
					}
				}
			}
			if !w.relevant(ev) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch: watcher error", "err", err)

		case <-timer.C:
			go w.trigger()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if strings.HasSuffix(ev.Name, ".jsonl") {
		return true
	}
	info, err := os.Stat(ev.Name)
	return err == nil && info.IsDir()
}

func (w *Watcher) trigger() {
	_, err, _ := w.group.Do("reindex", func() (any, error) {
		return nil, w.reindex()
	})
	if err != nil {
		w.logger.Warn("watch: reindex failed", "err", err)
	}
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("watch: skipping unreadable entry", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return fsw.Add(path)
	})
}
