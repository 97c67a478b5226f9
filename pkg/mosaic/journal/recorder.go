package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/mosaic/pkg/mosaic/bus"
)

// Recorder appends applied notifications to a Store. It implements
// bus.Observer; register it with bus.WithObserver.
type Recorder struct {
	store  Store
	logger *slog.Logger
	filter func(topic, event string) bool

	mu sync.Mutex
	// restoring holds restored calls not yet applied by the bus, in order.
	restoring []bus.Call
	// suppress counts open applies of a restored call, including the
	// handler notifications it triggers. None of those are recorded.
	suppress int
}

// Compile-time interface check.
var _ bus.Observer = (*Recorder)(nil)

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFilter records only notifications for which keep returns true.
func WithFilter(keep func(topic, event string) bool) RecorderOption {
	return func(r *Recorder) {
		r.filter = keep
	}
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying store.
func (r *Recorder) Store() Store {
	return r.store
}

// OnCapture implements bus.Observer. Buffered calls are recorded when
// the bus applies them.
func (r *Recorder) OnCapture(bus.Call) {}

// OnSubscribe implements bus.Observer.
func (r *Recorder) OnSubscribe(string, string, int) {}

// OnApply implements bus.Observer. Entries are appended in apply order,
// so a handler's notifications follow the call that caused them.
// Failures are logged; they never reach the bus.
func (r *Recorder) OnApply(c bus.Call) {
	if r.replaying(c) {
		return
	}
	if r.filter != nil && !r.filter(c.Topic, c.Event) {
		return
	}
	if _, err := r.Record(c); err != nil {
		r.logger.Warn("journal append failed",
			slog.String("topic", c.Topic),
			slog.String("event", c.Event),
			slog.String("error", err.Error()),
		)
	}
}

// OnNotify implements bus.Observer.
func (r *Recorder) OnNotify(bus.Call, int) {
	r.mu.Lock()
	if r.suppress > 0 {
		r.suppress--
	}
	r.mu.Unlock()
}

// Record appends c to the store.
func (r *Recorder) Record(c bus.Call) (Entry, error) {
	var payload json.RawMessage
	if c.Payload != nil {
		data, err := json.Marshal(c.Payload)
		if err != nil {
			return Entry{}, fmt.Errorf("encode payload for %s/%s: %w", c.Topic, c.Event, err)
		}
		payload = data
	}
	return r.store.Append(Entry{
		Topic:         c.Topic,
		Event:         c.Event,
		Payload:       payload,
		FirstTimeOnly: c.FirstTimeOnly,
		Nested:        c.Nested,
	})
}

// Restore notifies b with every stored top-level entry, in order, and
// returns how many were notified. Nested entries are skipped: the
// handlers that made them run again and notify anew. Neither restored
// calls nor what they trigger are recorded again, which requires r to
// observe b. Call it before anything else notifies b; a halted bus
// applies them on Unhalt.
func (r *Recorder) Restore(b *bus.Bus) (int, error) {
	entries, err := r.store.List()
	if err != nil {
		return 0, err
	}

	calls := make([]bus.Call, 0, len(entries))
	var errs []error
	for _, e := range entries {
		if e.Nested {
			continue
		}
		c := bus.Call{Topic: e.Topic, Event: e.Event, FirstTimeOnly: e.FirstTimeOnly}
		if len(e.Payload) > 0 {
			if err := json.Unmarshal(e.Payload, &c.Payload); err != nil {
				errs = append(errs, fmt.Errorf("decode entry %d: %w", e.Seq, err))
				continue
			}
		}
		calls = append(calls, c)
	}

	r.mu.Lock()
	r.restoring = append(r.restoring, calls...)
	r.mu.Unlock()

	for _, c := range calls {
		b.Notify(c.Topic, c.Event, c.Payload, c.FirstTimeOnly)
	}
	r.logger.Info("journal restored",
		slog.Int("entries", len(calls)),
		slog.Int("skipped_nested", len(entries)-len(calls)-len(errs)),
	)
	return len(calls), errors.Join(errs...)
}

// replaying reports whether c is a restored call, or was triggered by one,
// and opens a suppressed apply for it.
func (r *Recorder) replaying(c bus.Call) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	restored := false
	if !c.Nested && len(r.restoring) > 0 {
		next := r.restoring[0]
		if next.Topic == c.Topic && next.Event == c.Event && next.FirstTimeOnly == c.FirstTimeOnly {
			r.restoring = r.restoring[1:]
			restored = true
		}
	}
	if restored || r.suppress > 0 {
		r.suppress++
		return true
	}
	return false
}
