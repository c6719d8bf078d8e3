package suites

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pario-ai/routebench/pkg/models"
)

// DefaultDebounce collapses bursts of writes into one reload.
const DefaultDebounce = 150 * time.Millisecond

// Watch calls onChange with the merged suite list whenever the store's file
// is written, created, renamed or removed. The parent directory is watched so
// that atomic replacements are seen. Watch returns once the watcher is set up;
// it stops when ctx is done.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func([]models.TestSuite)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				all, err := s.List()
				if err != nil {
					log.Printf("suites: reload %s: %v", target, err)
					continue
				}
				onChange(all)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("suites: watch %s: %v", target, err)
			}
		}
	}()
	return nil
}
