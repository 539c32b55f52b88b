package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/logger"
)

func TestWatcherHandleEvent(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "paper.pdf"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, ".docqa", "uploads", "u.pdf"))
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir.pdf"), 0755))

	w, err := NewWatcher(root, NewWalker(nil, []string{".docqa/**"}), 0, logger.Discard())
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"create pdf", "paper.pdf", fsnotify.Create, true},
		{"write pdf", "paper.pdf", fsnotify.Write, true},
		{"write and chmod", "paper.pdf", fsnotify.Write | fsnotify.Chmod, true},
		{"chmod only", "paper.pdf", fsnotify.Chmod, false},
		{"remove", "gone.pdf", fsnotify.Remove, false},
		{"not a pdf", "notes.txt", fsnotify.Create, false},
		{"excluded", ".docqa/uploads/u.pdf", fsnotify.Create, false},
		{"directory", "dir.pdf", fsnotify.Create, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := filepath.Join(root, tt.path)
			path, ok := w.handleEvent(fsnotify.Event{Name: name, Op: tt.op})
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, name, path)
			}
		})
	}
}

func TestWatcherReportsNewFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "papers"), 0755))

	w, err := NewWatcher(root, NewWalker(nil, nil), 50*time.Millisecond, logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	found := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(path string) { found <- path })
	}()

	target := filepath.Join(root, "papers", "new.pdf")
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	var got string
wait:
	for {
		select {
		case got = <-found:
			break wait
		case <-ticker.C:
			// The watch may not be registered yet; rewrite until it is seen.
			touch(t, target)
		case <-ctx.Done():
			t.Fatal("file was never reported")
		}
	}

	assert.Equal(t, target, got)
	cancel()
	assert.NoError(t, <-done)
}
