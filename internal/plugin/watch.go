package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces a burst of filesystem events (e.g. a plugin file
// copied in several writes) into a single re-discovery pass.
const watchDebounce = 250 * time.Millisecond

// Watch runs a continuous Discover loop against dir: a fresh plugin file
// dropped in (or an existing one rewritten) triggers a new Discover(dir)
// call. This supplements, rather than replaces, an explicit startup
// Discover call; it is an optional hot-reload convenience. Watch blocks
// until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("plugin: watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("plugin: watch %s: %w", dir, err)
	}

	slog.Info("plugin: watching for new plugins", "directory", dir)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			timerC = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("plugin: watch error", "error", err)

		case <-timerC:
			timerC = nil
			if err := r.Discover(dir); err != nil {
				slog.Warn("plugin: re-discovery failed", "directory", dir, "error", err)
			}
		}
	}
}
