package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mastersh0w/citadel/internal/logging"
)

// Watcher hot-reloads the config file into a Store when it changes on disk,
// so threshold or score edits land without a restart.
type Watcher struct {
	watcher *fsnotify.Watcher
	store   *Store
	path    string
}

func NewWatcher(store *Store, path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %q: %w", path, err)
	}
	return &Watcher{watcher: w, store: store, path: path}, nil
}

// Run blocks until ctx is cancelled. Writes are debounced so editors that
// save in multiple syscalls trigger a single reload.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("config watcher: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.Warn("config reload failed, keeping previous values: %v", err)
		return
	}
	cfg.Seed(w.store)
	logging.Info("config reloaded from %s", w.path)
}
