// Package watcher notifies about changes to the scanner result files of a directory.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/scanviz/merge-results/internal/constants"
	"github.com/scanviz/merge-results/internal/fileutils"
)

// DefaultDebounce is the default delay during which successive events are coalesced.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a directory for scanner result file changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	ignore   string

	log *slog.Logger
}

type options struct {
	Logger   *slog.Logger
	Debounce time.Duration
	Ignore   string
}

// Options represents an optional function to override Watcher default values.
type Options func(*options)

// WithLogger sets the logger used by the watcher.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.Logger = l
	}
}

// WithDebounce sets the delay during which successive events are coalesced into one change.
func WithDebounce(d time.Duration) Options {
	return func(o *options) {
		o.Debounce = d
	}
}

// WithIgnore ignores events on path, typically the aggregated document when it is written inside the watched directory.
func WithIgnore(path string) Options {
	return func(o *options) {
		o.Ignore = path
	}
}

// New creates a new watcher for dir.
func New(dir string, args ...Options) *Watcher {
	opts := options{
		Logger:   slog.Default(),
		Debounce: DefaultDebounce,
	}

	for _, opt := range args {
		opt(&opts)
	}

	return &Watcher{
		dir:      dir,
		debounce: opts.Debounce,
		ignore:   opts.Ignore,
		log:      opts.Logger,
	}
}

// Watch starts watching the directory for scanner result files being created, written, removed or renamed.
// The directory is being watched once Watch returns.
//
// It returns two channels: one signaling changes, after the debounce delay, and another for unrecoverable watcher errors.
// Both channels are closed once ctx is done or an unrecoverable error was sent.
func (w *Watcher) Watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", w.dir, err)
	}

	w.log.Info("Watching scanner results directory", "dir", w.dir)
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		timer := time.NewTimer(w.debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				w.log.Info("Scanner results watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if !w.relevant(event) {
					continue
				}

				w.log.Debug("Scanner results changed", "file", event.Name, "op", event.Op.String())
				timer.Reset(w.debounce)

			case <-timer.C:
				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				w.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}

// relevant returns true if the event may change the aggregated document.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}

	if !strings.HasSuffix(filepath.Base(event.Name), constants.ResultsExt) {
		return false
	}

	return w.ignore == "" || !fileutils.SamePath(event.Name, w.ignore)
}
