package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder guards the current definition for concurrent readers.
type Holder struct {
	mu  sync.RWMutex
	def *Definition
}

// NewHolder creates a holder with an initial definition.
func NewHolder(def *Definition) *Holder {
	return &Holder{def: def}
}

// Get returns the current definition.
func (h *Holder) Get() *Definition {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.def
}

// Store replaces the current definition.
func (h *Holder) Store(def *Definition) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.def = def
}

// Watcher reloads the definition when its file changes.
type Watcher struct {
	logger      zerolog.Logger
	watcher     *fsnotify.Watcher
	reloadDelay time.Duration
}

// NewWatcher creates a new definition watcher.
func NewWatcher(logger zerolog.Logger) *Watcher {
	return &Watcher{
		logger:      logger.With().Str("component", "definition-watcher").Logger(),
		reloadDelay: 500 * time.Millisecond,
	}
}

// Watch starts watching path and calls reloadFn with every valid new
// definition. Invalid documents are logged and the previous definition stays.
func (w *Watcher) Watch(ctx context.Context, path, projectDir string, reloadFn func(*Definition) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Editors replace files on save, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	w.watcher = watcher

	go w.processEvents(ctx, path, projectDir, reloadFn)

	w.logger.Info().Str("path", path).Msg("Started watching definition")
	return nil
}

func (w *Watcher) processEvents(ctx context.Context, path, projectDir string, reloadFn func(*Definition) error) {
	var reloadTimer *time.Timer
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Definition file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.reloadDelay, func() {
				if err := w.reload(path, projectDir, reloadFn); err != nil {
					w.logger.Error().Err(err).Msg("Failed to reload definition")
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) reload(path, projectDir string, reloadFn func(*Definition) error) error {
	def, err := Load(path, projectDir)
	if err != nil {
		return err
	}
	if err := reloadFn(def); err != nil {
		return fmt.Errorf("failed to apply reloaded definition: %w", err)
	}
	w.logger.Info().Int("entities", len(def.Entities)).Msg("Definition reloaded")
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
