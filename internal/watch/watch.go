// Package watch reports changes to asset definition files.
//
// Editors tend to write a file in several steps, so events are batched: the
// handler runs once the paths have been quiet for the debounce window, with
// every changed .hcl file of the batch listed once.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/fsutil"
)

// DefaultDebounce is used when New is given a non-positive window.
const DefaultDebounce = 200 * time.Millisecond

// Handler receives the sorted, de-duplicated paths of one batch.
type Handler func(ctx context.Context, paths []string)

// Watcher watches definition files and directories.
type Watcher struct {
	watcher  *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	// files restricts events in a watched parent directory to these paths.
	files map[string]struct{}
	dirs  map[string]struct{}
}

// New watches paths, which may be files or directories. Directories are
// watched recursively. Missing paths are an error.
func New(paths []string, debounce time.Duration, handler Handler) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		handler:  handler,
		debounce: debounce,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}
	for _, p := range paths {
		if err := w.add(p); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if !info.IsDir() {
		// Editors replace files on save, so the parent directory is watched.
		w.files[path] = struct{}{}
		return w.watchDir(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if fsutil.IsHidden(d.Name()) && p != path {
			return filepath.SkipDir
		}
		w.dirs[p] = struct{}{}
		return w.watchDir(p)
	})
}

func (w *Watcher) watchDir(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	return nil
}

// relevant reports whether an event on path concerns a definition.
func (w *Watcher) relevant(path string) bool {
	if filepath.Ext(path) != ".hcl" {
		return false
	}
	path = filepath.Clean(path)
	if _, ok := w.files[path]; ok {
		return true
	}
	for dir := range w.dirs {
		if strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Run delivers batches until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	logger := ctxlog.FromContext(ctx)
	logger.Info("👀 Watching asset definitions.", "debounce", w.debounce)

	batch := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && w.underWatchedDir(event.Name) {
					w.dirs[filepath.Clean(event.Name)] = struct{}{}
					if err := w.watchDir(event.Name); err != nil {
						logger.Warn("Could not watch new directory.", "path", event.Name, "error", err)
					}
				}
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			logger.Debug("Definition file event.", "path", event.Name, "op", event.Op.String())
			batch[filepath.Clean(event.Name)] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(batch) == 0 {
				continue
			}
			paths := make([]string, 0, len(batch))
			for p := range batch {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(batch)
			w.handler(ctx, paths)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error.", "error", err)
		}
	}
}

func (w *Watcher) underWatchedDir(path string) bool {
	_, ok := w.dirs[filepath.Dir(filepath.Clean(path))]
	return ok
}
