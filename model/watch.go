package model

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a catalog configuration file when it changes on disk and
// exposes the latest good catalog. A failed reload keeps the previous
// catalog in place.
type Watcher struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	catalog *Catalog
}

// WatchConfig loads the configuration file at path and begins watching it
// for changes. Watching stops when the context is cancelled.
func WatchConfig(ctx context.Context, path string, logger *slog.Logger) (*Watcher, error) {
	catalog, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		path:    path,
		logger:  logger,
		catalog: catalog,
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory (more reliable than watching the file directly,
	// and survives editors that replace the file on save).
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	go w.run(ctx, watcher)
	return w, nil
}

// Catalog returns the most recently loaded catalog.
func (w *Watcher) Catalog() *Catalog {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.catalog
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	baseName := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != baseName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			catalog, err := LoadConfig(w.path)
			if err != nil {
				w.logger.Warn("catalog reload failed, keeping previous catalog",
					"path", w.path, "error", err)
				continue
			}

			w.mu.Lock()
			w.catalog = catalog
			w.mu.Unlock()

			w.logger.Info("catalog reloaded", "path", w.path, "models", len(catalog.Models()))

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watch error", "error", err)
		}
	}
}
