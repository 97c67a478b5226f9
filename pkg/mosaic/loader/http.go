package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"

	"github.com/randalmurphal/mosaic/pkg/mosaic"
)

// maxFragmentSize bounds a fetched fragment body.
const maxFragmentSize = 4 << 20

// HTTP fetches fragments from <base>/<name><ext>.
//
// Transient failures (network errors, 5xx, 429) are retried with
// exponential backoff. Consecutive failures open a circuit breaker, after
// which loads fail fast with gobreaker.ErrOpenState until it half-opens.
// A 404 is reported as ErrNotFound and does not count as a failure.
type HTTP struct {
	base    *url.URL
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	opts    options
}

// Compile-time interface check.
var _ mosaic.Loader = (*HTTP)(nil)

// NewHTTP creates a loader for views under baseURL, for example
// "https://example.com/part/". client may be nil.
func NewHTTP(baseURL string, client *http.Client, opts ...Option) (*HTTP, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}

	o := buildOptions(opts)
	h := &HTTP{base: base, client: client, opts: o}
	h.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mosaic-views " + base.Host,
		MaxRequests: 1,
		Timeout:     o.openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= o.maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.logger.Warn("view circuit breaker changed state",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return h, nil
}

// URL returns the address a name is fetched from.
func (h *HTTP) URL(name string) string {
	return h.base.ResolveReference(&url.URL{Path: url.PathEscape(name) + h.opts.ext}).String()
}

// State returns the circuit breaker state.
func (h *HTTP) State() gobreaker.State {
	return h.breaker.State()
}

// Load implements mosaic.Loader.
func (h *HTTP) Load(ctx context.Context, name string) (mosaic.Definition, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	target := h.URL(name)

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		out, err := h.breaker.Execute(func() (interface{}, error) {
			return h.get(ctx, name, target)
		})
		if err != nil {
			if !retryable(err) {
				return nil, backoff.Permanent(err)
			}
			h.opts.logger.Debug("view fetch failed, retrying",
				slog.String("component", name),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		return out.([]byte), nil
	},
		backoff.WithBackOff(h.newBackOff()),
		backoff.WithMaxTries(h.opts.retries),
	)
	if err != nil {
		return nil, err
	}

	f, err := ParseFragment(name, body, h.opts.expander)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (h *HTTP) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.opts.initialDelay
	b.MaxInterval = 10 * h.opts.initialDelay
	return b
}

func (h *HTTP) get(ctx context.Context, name, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Name: name, URL: target, Err: err}
	}
	req.Header.Set("Accept", "text/html")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &FetchError{Name: name, URL: target, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &FetchError{Name: name, URL: target, StatusCode: resp.StatusCode, Err: ErrNotFound}
	case resp.StatusCode != http.StatusOK:
		return nil, &FetchError{
			Name:       name,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFragmentSize))
	if err != nil {
		return nil, &FetchError{Name: name, URL: target, StatusCode: resp.StatusCode, Err: err}
	}
	return body, nil
}

// retryable reports whether a fetch failure may succeed on another attempt.
func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ferr *FetchError
	if errors.As(err, &ferr) && ferr.StatusCode != 0 {
		return ferr.StatusCode >= 500 || ferr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
