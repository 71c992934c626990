package subscribers

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Watch calls onChange after the file at path is written, created, renamed,
// or removed, until ctx is done. The parent directory is watched so atomic
// replacements are seen.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("subscribers: watch error: %v", err)
		}
	}
}

// WatchAndReload reloads svc whenever the store file changes.
func WatchAndReload(ctx context.Context, svc *Service, path string) error {
	return Watch(ctx, path, DefaultDebounce, func() {
		if err := svc.Reload(ctx); err != nil {
			log.Printf("subscribers: reload after change: %v", err)
			return
		}
		log.Printf("subscribers: reloaded %d subscribers from %s", svc.Count(), path)
	})
}
