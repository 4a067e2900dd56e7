package ota

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/1ureka/groundlink/internal/util"
)

// Watch calls onChange whenever the file at path is written, replaced or
// removed. The parent directory is watched so editors that save by rename
// are seen too. Watching stops when ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func()) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve OTA path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				name, _ := filepath.Abs(ev.Name)
				if name != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
					util.LogDebug("OTA source event: %s", ev)
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				util.LogWarning("OTA watcher error: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
