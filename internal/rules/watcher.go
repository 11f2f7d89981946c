package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce collapses the burst of events an editor save produces
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads the routing file whenever it changes on disk
type Watcher struct {
	path     string
	debounce time.Duration
	onLoad   func(File)
	logger   zerolog.Logger
}

// NewWatcher creates a watcher for path. onLoad runs on the watcher's
// goroutine after each successful reload; a file that fails to parse is
// logged and the previous configuration stays in effect.
func NewWatcher(path string, onLoad func(File), logger zerolog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		debounce: DefaultDebounce,
		onLoad:   onLoad,
		logger:   logger.With().Str("component", "rules_watcher").Logger(),
	}
}

// Run watches until ctx is cancelled. The parent directory is watched
// rather than the file so that atomic rename-on-save is picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve routing file: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w.logger.Info().Str("path", abs).Msg("watching routing file")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("file watcher error")
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	f, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("routing file reload failed, keeping previous configuration")
		return
	}
	w.logger.Info().
		Int("agents", len(f.Agents)).
		Int("queues", len(f.Queues)).
		Int("rules", len(f.Rules)).
		Msg("routing file changed")
	w.onLoad(f)
}
