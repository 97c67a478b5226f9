package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/randalmurphal/mosaic/pkg/mosaic"
)

// ErrWatcherClosed indicates Run was called on a closed Watcher.
var ErrWatcherClosed = errors.New("watcher closed")

// Watcher keeps a registry in sync with a directory of fragments.
// Writing <dir>/<name><ext> defines name; removing it deletes name.
type Watcher struct {
	dir      string
	registry *mosaic.Registry
	opts     options
	fsw      *fsnotify.Watcher

	mu     sync.Mutex
	closed bool
}

// NewWatcher starts watching dir. Call Run to process changes.
func NewWatcher(dir string, registry *mosaic.Registry, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		dir:      abs,
		registry: registry,
		opts:     buildOptions(opts),
		fsw:      fsw,
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Preload defines every fragment currently in the directory and returns
// how many were defined.
func (w *Watcher) Preload() (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, err
	}
	var errs []error
	count := 0
	for _, e := range entries {
		name, ok := w.component(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		f, err := w.read(name, filepath.Join(w.dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		w.apply(func() { w.registry.Define(name, f) })
		count++
	}
	return count, errors.Join(errs...)
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrWatcherClosed
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.logger.Error("view watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops watching. Run returns once the event channels close.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name, ok := w.component(filepath.Base(ev.Name))
	if !ok {
		return
	}

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		f, err := w.read(name, ev.Name)
		if err != nil {
			w.changed(name, err)
			return
		}
		w.apply(func() {
			w.registry.Define(name, f)
			w.opts.logger.Info("view defined", slog.String("component", name))
			w.changed(name, nil)
		})
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.apply(func() {
			w.registry.Delete(name)
			w.opts.logger.Info("view removed", slog.String("component", name))
			w.changed(name, nil)
		})
	}
}

// read loads and parses one fragment file.
func (w *Watcher) read(name, path string) (*Fragment, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		w.opts.logger.Error("view read failed",
			slog.String("component", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("read view %s: %w", name, err)
	}
	f, err := ParseFragment(name, src, w.opts.expander)
	if err != nil {
		w.opts.logger.Error("view parse failed",
			slog.String("component", name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return f, nil
}

// apply runs fn on the executor when one is configured.
func (w *Watcher) apply(fn func()) {
	if w.opts.executor != nil && w.opts.executor.Post(fn) {
		return
	}
	fn()
}

func (w *Watcher) changed(name string, err error) {
	if w.opts.onChange != nil {
		w.opts.onChange(name, err)
	}
}

// component maps a file name to a component name.
func (w *Watcher) component(file string) (string, bool) {
	if !strings.HasSuffix(file, w.opts.ext) || strings.HasPrefix(file, ".") {
		return "", false
	}
	name := strings.TrimSuffix(file, w.opts.ext)
	return name, validName(name) == nil
}
