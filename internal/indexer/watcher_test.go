package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, f *fixture, root string) {
	t.Helper()
	w, err := NewWatcher(f.pipeline, root, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
}

func textHits(f *fixture, query string) int {
	return len(f.text.Search(query, 10, nil))
}

func TestWatcher_IndexesAndRemovesFiles(t *testing.T) {
	f := newFixture(t, nil)
	root := t.TempDir()
	startWatcher(t, f, root)

	path := filepath.Join(root, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\n\nPenguins live in Antarctica."), 0o644))
	assert.Eventually(t, func() bool { return textHits(f, "penguins") == 1 }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("# Notes\n\nWalruses live in the Arctic."), 0o644))
	assert.Eventually(t, func() bool {
		return textHits(f, "walruses") == 1 && textHits(f, "penguins") == 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool { return f.text.Size() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_NewDirectory(t *testing.T) {
	f := newFixture(t, nil)
	root := t.TempDir()
	startWatcher(t, f, root)

	dir := filepath.Join(root, "ops")
	require.NoError(t, os.Mkdir(dir, 0o755))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup.md"), []byte("Snapshots run nightly."), 0o644))

	assert.Eventually(t, func() bool {
		hits := f.text.Search("snapshots", 10, map[string]string{"folder": "ops"})
		return len(hits) == 1 && hits[0].DocumentID == "ops/backup.md"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_HandleEvent(t *testing.T) {
	f := newFixture(t, nil)
	root := t.TempDir()
	w, err := NewWatcher(f.pipeline, root, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	assert.Equal(t, DefaultWatchDebounce, w.debounce)

	tests := []struct {
		name string
		ev   fsnotify.Event
		want int
	}{
		{"markdown write", fsnotify.Event{Name: filepath.Join(root, "a.md"), Op: fsnotify.Write}, 1},
		{"text remove", fsnotify.Event{Name: filepath.Join(root, "b.txt"), Op: fsnotify.Remove}, 1},
		{"rename", fsnotify.Event{Name: filepath.Join(root, "c.markdown"), Op: fsnotify.Rename}, 1},
		{"chmod only", fsnotify.Event{Name: filepath.Join(root, "a.md"), Op: fsnotify.Chmod}, 0},
		{"unsupported extension", fsnotify.Event{Name: filepath.Join(root, "image.png"), Op: fsnotify.Create}, 0},
		{"hidden directory", fsnotify.Event{Name: filepath.Join(root, ".git", "x.md"), Op: fsnotify.Write}, 0},
		{"hidden file", fsnotify.Event{Name: filepath.Join(root, ".draft.md"), Op: fsnotify.Write}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, w.handleEvent(context.Background(), tt.ev), tt.want)
		})
	}
}

func TestWatcher_FlushIgnoresUnknownRemovals(t *testing.T) {
	f := newFixture(t, nil)
	root := t.TempDir()
	w, err := NewWatcher(f.pipeline, root, time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	w.flush(context.Background(), []string{filepath.Join(root, "never-indexed.md")})
	assert.Equal(t, 0, f.text.Size())
}
