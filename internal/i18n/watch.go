// ABOUTME: Watch mode: reloads catalogs when files in the catalog directory change
// ABOUTME: Events are debounced so an editor save triggers a single reload

package i18n

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches rapid successive writes
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a Bundle on catalog file changes
type Watcher struct {
	bundle   *Bundle
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher on the bundle's directory. A zero debounce uses DefaultDebounce.
func NewWatcher(b *Bundle, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(b.Dir()); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", b.Dir(), err)
	}

	return &Watcher{
		bundle:   b,
		fsw:      fsw,
		debounce: debounce,
		logger:   slog.Default().With("component", "i18n", "dir", b.Dir()),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start runs the event loop in a goroutine until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	go w.run(ctx)
	w.logger.Info("watching locale catalogs")
}

// Stop ends the event loop and releases the underlying watcher
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.fsw.Close(); err != nil {
		w.logger.Error("failed to close watcher", "error", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isCatalogEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-fire:
			fire = nil
			if err := w.bundle.Reload(); err != nil {
				w.logger.Error("locale reload failed, keeping previous catalogs", "error", err)
				continue
			}
			w.logger.Info("locale catalogs reloaded")
		}
	}
}

func isCatalogEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	for _, ext := range catalogExtensions {
		if filepath.Ext(event.Name) == ext {
			return true
		}
	}
	return false
}
