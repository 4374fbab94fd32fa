package data

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 500 * time.Millisecond

// Reloader is implemented by anything that can reopen its backing file.
type Reloader interface {
	Reload() error
}

// Watcher reloads a database when its file is written or replaced.
type Watcher struct {
	path     string
	reloader Reloader
	delay    time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher watches the directory holding path, so replacements by rename
// are seen as well as in-place writes.
func NewWatcher(path string, reloader Reloader) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, reloader: reloader, delay: reloadDelay, watcher: fw}, nil
}

// Run processes file events until ctx is done. Bursts of events are
// collapsed into one reload after a short delay.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.delay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				slog.Debug("MMDB file changed", "path", w.path, "op", ev.Op.String())
				timer.Reset(w.delay)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", "path", w.path, "error", err)
		case <-timer.C:
			if err := w.reloader.Reload(); err != nil {
				slog.Error("MMDB reload failed", "path", w.path, "error", err)
			}
		}
	}
}
