// Package file provides a bindings source backed by a file on disk.
package file

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher emits the contents of a file when it is written or replaced.
// It implements ripple.Watcher.
type Watcher struct {
	path string
}

// New creates a Watcher for the file at path.
func New(path string) *Watcher {
	return &Watcher{path: path}
}

// Watch emits the current contents immediately, then the new contents after
// every write or replacement. The parent directory is watched so editors
// that save through rename keep being observed. Empty reads (a file caught
// mid-truncate) and contents identical to the last emission are skipped.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	initial, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", w.path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	out := make(chan []byte)
	go w.loop(ctx, fsw, initial, out)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, last []byte, out chan<- []byte) {
	defer close(out)
	defer fsw.Close()

	if !send(ctx, out, last) {
		return
	}

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			data, err := os.ReadFile(w.path)
			if err != nil || len(data) == 0 || bytes.Equal(data, last) {
				continue
			}
			last = data
			if !send(ctx, out, data) {
				return
			}

		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func send(ctx context.Context, out chan<- []byte, data []byte) bool {
	select {
	case out <- data:
		return true
	case <-ctx.Done():
		return false
	}
}
