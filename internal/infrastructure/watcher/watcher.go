// Package watcher triggers session re-runs when Go sources or coverage
// settings change on disk.
package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/testcov/internal/application"
)

// DefaultDebounce groups bursts of editor writes into one run.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes below a module root.
type Watcher struct {
	fsw        *fsnotify.Watcher
	debounce   time.Duration
	extensions []string
	files      map[string]bool
	skipDirs   map[string]bool
}

var _ application.FileWatcher = (*Watcher)(nil)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period after the last change before an event fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithExtensions replaces the watched file extensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) { w.extensions = exts }
}

// WithFiles adds exact base names that trigger a run, such as a config file.
func WithFiles(names ...string) Option {
	return func(w *Watcher) {
		for _, n := range names {
			w.files[filepath.Base(n)] = true
		}
	}
}

// WithSkipDirs adds directory names that are never watched, typically
// report output directories.
func WithSkipDirs(names ...string) Option {
	return func(w *Watcher) {
		for _, n := range names {
			w.skipDirs[filepath.Base(filepath.Clean(n))] = true
		}
	}
}

// New creates a watcher for .go files, go.mod and go.sum.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:        fsw,
		debounce:   DefaultDebounce,
		extensions: []string{".go"},
		files:      map[string]bool{"go.mod": true, "go.sum": true},
		skipDirs:   map[string]bool{"vendor": true, "testdata": true, "node_modules": true},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WatchDir watches root and every directory below it, except hidden and
// skipped ones.
func (w *Watcher) WatchDir(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skip(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) skip(dir string) bool {
	return strings.HasPrefix(dir, ".") || w.skipDirs[dir]
}

// Events returns a channel that receives one value per debounced burst of
// relevant changes. It is closed when ctx ends or the watcher is closed.
func (w *Watcher) Events(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})

	go func() {
		defer close(out)

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

			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if !isWrite(event.Op) || !w.relevant(event.Name) {
					continue
				}
				log.Debug("change detected", "file", event.Name, "op", event.Op.String())
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(w.debounce)
				fire = timer.C

			case <-fire:
				fire = nil
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}

			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				log.Warn("file watcher error", "err", err)
			}
		}
	}()

	return out
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func isWrite(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}

func (w *Watcher) relevant(path string) bool {
	if w.files[filepath.Base(path)] {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
