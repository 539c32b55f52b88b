package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports PDF files that were created or rewritten under a directory
// tree. A file is reported once it has been quiet for the debounce period, so
// a copy in progress is picked up after its last write.
type Watcher struct {
	root     string
	walker   *Walker
	debounce time.Duration
	logger   *slog.Logger
}

func NewWatcher(root string, walker *Walker, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{root: abs, walker: walker, debounce: debounce, logger: logger}, nil
}

// Run blocks until ctx is done, calling onFile from its own goroutine.
func (w *Watcher) Run(ctx context.Context, onFile func(path string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, ev.Name); err != nil {
						w.logger.Warn("failed to watch directory", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			if path, ok := w.handleEvent(ev); ok {
				pending[path] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) >= w.debounce {
					delete(pending, path)
					onFile(path)
				}
			}
		}
	}
}

// handleEvent returns the file an event refers to when it is a write or
// create of an included, non-excluded regular file.
func (w *Watcher) handleEvent(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}

	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return "", false
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return "", false
	}
	if !w.walker.Match(filepath.ToSlash(rel)) {
		return "", false
	}
	return ev.Name, true
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		if rel != "." && w.walker.shouldExclude(filepath.ToSlash(rel)+"/") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
