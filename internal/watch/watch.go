// Package watch re-plans queries whenever the schema or configuration
// files they depend on change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events one save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher runs a build function when one of its files changes.
type Watcher struct {
	files    []string
	debounce time.Duration
	logger   *slog.Logger
	ready    chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for reload records.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets the quiet period after the last event before a build.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a Watcher over files. Empty paths are ignored.
func New(files []string, opts ...Option) *Watcher {
	w := &Watcher{
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		ready:    make(chan struct{}),
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		if !slices.Contains(w.files, f) {
			w.files = append(w.files, f)
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Files returns the absolute paths of the watched files.
func (w *Watcher) Files() []string { return slices.Clone(w.files) }

// Ready is closed once Run has installed its watches.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run calls build after every change to a watched file until ctx is
// cancelled. Build failures are logged and do not stop the loop.
//
// Directories are watched rather than the files themselves, since editors
// often save by renaming a new file over the old one.
func (w *Watcher) Run(ctx context.Context, build func(context.Context) error) error {
	if len(w.files) == 0 {
		return errors.New("watch: no files to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()

	var dirs []string
	for _, f := range w.files {
		dir := filepath.Dir(f)
		if slices.Contains(dirs, dir) {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs = append(dirs, dir)
	}
	w.logger.Info("watching", "files", w.files)
	close(w.ready)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	var trigger string

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file changed", "file", event.Name, "op", event.Op.String())
			trigger = event.Name
			timer.Reset(w.debounce)
		case <-timer.C:
			if err := build(ctx); err != nil {
				w.logger.Error("rebuild failed", "trigger", trigger, "error", err)
				continue
			}
			w.logger.Info("rebuild complete", "trigger", trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := event.Name
	if abs, err := filepath.Abs(name); err == nil {
		name = abs
	}
	return slices.Contains(w.files, name)
}
