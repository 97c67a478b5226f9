// Package loader provides mosaic.Loader implementations for views that are
// not compiled into the program.
//
// Views are HTML fragments named <component>.html, optionally starting
// with a YAML front matter block that declares imports and template
// defaults. They can be served from a directory (Dir), from a web server
// (HTTP), or from memory (Catalog); Chain tries several in order. A
// Watcher redefines components when their files change.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/mosaic/pkg/mosaic"
	"github.com/randalmurphal/mosaic/pkg/mosaic/template"
)

// DefaultExt is the file extension of view fragments.
const DefaultExt = ".html"

// Sentinel errors for loaders.
var (
	// ErrNotFound indicates a loader has no view for a name.
	ErrNotFound = errors.New("view not found")

	// ErrInvalidName indicates a component name that cannot map to a file.
	ErrInvalidName = errors.New("invalid view name")
)

// FetchError describes a failed HTTP fetch.
type FetchError struct {
	// Name is the component being loaded.
	Name string
	// URL is the requested URL.
	URL string
	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s from %s: status %d: %v", e.Name, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s from %s: %v", e.Name, e.URL, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// options holds configuration shared by the loaders in this package.
type options struct {
	ext          string
	expander     *template.Expander
	logger       *slog.Logger
	timeout      time.Duration
	retries      uint
	maxFailures  uint32
	openTimeout  time.Duration
	onChange     func(name string, err error)
	executor     mosaic.Executor
	initialDelay time.Duration
}

func defaultOptions() options {
	return options{
		ext:          DefaultExt,
		logger:       slog.Default(),
		timeout:      5 * time.Second,
		retries:      3,
		maxFailures:  5,
		openTimeout:  30 * time.Second,
		initialDelay: 100 * time.Millisecond,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.expander == nil {
		o.expander = template.NewExpander()
	}
	return o
}

// Option configures a loader.
type Option func(*options)

// WithExt sets the fragment file extension. Default: ".html".
func WithExt(ext string) Option {
	return func(o *options) {
		if ext != "" {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			o.ext = ext
		}
	}
}

// WithExpander sets the expander fragments interpolate with.
func WithExpander(e *template.Expander) Option {
	return func(o *options) {
		o.expander = e
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTimeout bounds each HTTP attempt. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRetries sets how many times an HTTP fetch is attempted. Default: 3.
func WithRetries(n uint) Option {
	return func(o *options) {
		if n > 0 {
			o.retries = n
		}
	}
}

// WithRetryDelay sets the first backoff interval between attempts.
// Default: 100ms.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.initialDelay = d
		}
	}
}

// WithBreaker configures the HTTP circuit breaker: it opens after
// maxFailures consecutive failures and stays open for openFor.
// Default: 5 failures, 30s.
func WithBreaker(maxFailures uint32, openFor time.Duration) Option {
	return func(o *options) {
		if maxFailures > 0 {
			o.maxFailures = maxFailures
		}
		if openFor > 0 {
			o.openTimeout = openFor
		}
	}
}

// WithOnChange is called by a Watcher after each redefinition or removal.
func WithOnChange(fn func(name string, err error)) Option {
	return func(o *options) {
		o.onChange = fn
	}
}

// WithExecutor makes a Watcher apply registry changes on x.
func WithExecutor(x mosaic.Executor) Option {
	return func(o *options) {
		o.executor = x
	}
}

// validName rejects names that would escape the view directory.
func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Catalog serves definitions from memory.
type Catalog map[string]mosaic.Definition

// Load implements mosaic.Loader.
func (c Catalog) Load(_ context.Context, name string) (mosaic.Definition, error) {
	def, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return def, nil
}

// Chain tries each loader in order and returns the first definition
// found. Loaders reporting ErrNotFound are skipped; any other error stops
// the chain.
type Chain []mosaic.Loader

// Load implements mosaic.Loader.
func (c Chain) Load(ctx context.Context, name string) (mosaic.Definition, error) {
	for _, l := range c {
		def, err := l.Load(ctx, name)
		if err == nil {
			return def, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}
