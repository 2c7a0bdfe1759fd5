package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"citerag/internal/apperr"
	"citerag/internal/contextutil"
)

// DefaultWatchDebounce is how long a path must stay quiet before it is re-indexed.
const DefaultWatchDebounce = 500 * time.Millisecond

// Watcher keeps the indexes in sync with a documents directory. Created and
// modified files are re-indexed; removed or renamed files are deleted.
type Watcher struct {
	pipeline *Pipeline
	root     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
}

// NewWatcher watches root and every non-hidden directory below it.
func NewWatcher(pipeline *Pipeline, root string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	root = filepath.Clean(root)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{pipeline: pipeline, root: root, debounce: debounce, fsw: fsw}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run applies file changes until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx).With("root", w.root)
	logger.InfoContext(ctx, "watching documents directory")

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			for _, path := range w.handleEvent(ctx, ev) {
				pending[path] = struct{}{}
			}
			if len(pending) > 0 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "watcher error", "error", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			w.flush(ctx, paths)
		}
	}
}

// handleEvent returns the ingestible paths an event touches. A new directory
// is watched and its files are returned.
func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) []string {
	if ev.Op == fsnotify.Chmod || w.hidden(ev.Name) {
		return nil
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to watch directory", "path", ev.Name, "error", err)
			}
			files, _ := Scan(ctx, ev.Name)
			paths := make([]string, 0, len(files))
			for _, f := range files {
				paths = append(paths, f.AbsPath)
			}
			return paths
		}
	}

	if _, ok := scannedExtensions[strings.ToLower(filepath.Ext(ev.Name))]; !ok {
		return nil
	}
	return []string{ev.Name}
}

// flush indexes paths that exist and deletes the documents of those that do not.
func (w *Watcher) flush(ctx context.Context, paths []string) {
	logger := contextutil.LoggerFromContext(ctx)

	for _, path := range paths {
		file, ok, err := scannedFile(w.root, path)
		if err != nil || !ok {
			continue
		}

		info, statErr := os.Stat(path)
		switch {
		case statErr == nil && info.Mode().IsRegular():
			res, err := w.pipeline.indexFile(ctx, file)
			if err != nil {
				logger.ErrorContext(ctx, "failed to re-index file", "rel_path", file.RelPath, "error", err)
				continue
			}
			logger.InfoContext(ctx, "re-indexed file", "rel_path", file.RelPath, "chunks", res.Chunks)

		case errors.Is(statErr, fs.ErrNotExist):
			n, err := w.pipeline.DeleteDocument(ctx, file.RelPath)
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				logger.ErrorContext(ctx, "failed to delete removed file", "rel_path", file.RelPath, "error", err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "removed file from index", "rel_path", file.RelPath, "chunks", n)
			}
		}
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// hidden reports whether path lies in a hidden file or directory below root.
func (w *Watcher) hidden(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
