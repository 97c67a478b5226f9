package bus

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
)

// Handler receives one payload per invocation.
type Handler func(payload any)

// EventMap maps event names to handlers for a single topic.
type EventMap map[string]Handler

// Handle identifies one subscriber within a channel.
// Handles are never reused within a channel, so removing one subscriber
// does not invalidate the handles of the others.
type Handle uint64

// Subscription identifies a registered handler.
type Subscription struct {
	Topic  string
	Event  string
	Handle Handle
}

// subscriber is one registered handler and its delivery cursor.
type subscriber struct {
	handle  Handle
	handler Handler
	cursor  int
	removed bool
}

// channel holds the subscribers and payload log for one (topic, event).
type channel struct {
	subs       []*subscriber
	log        []any
	ready      bool
	nextHandle Handle
}

// Bus is a replaying publish/subscribe bus. See the package documentation
// for delivery guarantees.
type Bus struct {
	topics    map[string]map[string]*channel
	halted    bool
	buffer    []Call
	depth     int // handler invocations in progress
	observers []Observer
	onPanic   func(err *PanicError)
	logger    *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// StartUnhalted creates the bus in the unhalted state.
func StartUnhalted() Option {
	return func(b *Bus) {
		b.halted = false
	}
}

// WithObserver adds an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(b *Bus) {
		if o != nil {
			b.observers = append(b.observers, o)
		}
	}
}

// WithLogger sets the logger used to report handler panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithPanicHandler replaces the default panic report (an error log line).
func WithPanicHandler(fn func(err *PanicError)) Option {
	return func(b *Bus) {
		b.onPanic = fn
	}
}

// New creates a bus. The bus starts halted unless StartUnhalted is given.
func New(opts ...Option) *Bus {
	b := &Bus{
		topics: make(map[string]map[string]*channel),
		halted: true,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers every handler in events against topic.
//
// For channels that already hold payloads the handler is invoked once per
// logged payload, in log order, before Subscribe returns. Handlers are
// processed in event-name order so replay order is deterministic.
//
// If any handler is nil, Subscribe returns a *ConfigError and registers
// nothing.
func (b *Bus) Subscribe(topic string, events EventMap) ([]Subscription, error) {
	names := make([]string, 0, len(events))
	for name, h := range events {
		if h == nil {
			return nil, &ConfigError{Topic: topic, Event: name, Err: ErrNilHandler}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	subs := make([]Subscription, 0, len(names))
	for _, name := range names {
		subs = append(subs, b.subscribe(topic, name, events[name]))
	}
	return subs, nil
}

func (b *Bus) subscribe(topic, event string, h Handler) Subscription {
	ch := b.channel(topic, event)

	s := &subscriber{handler: h}
	replayed := 0
	if ch.ready {
		for s.cursor < len(ch.log) {
			payload := ch.log[s.cursor]
			s.cursor++
			b.invoke(topic, event, h, payload)
			replayed++
		}
	}

	ch.nextHandle++
	s.handle = ch.nextHandle
	ch.subs = append(ch.subs, s)

	for _, o := range b.observers {
		o.OnSubscribe(topic, event, replayed)
	}
	return Subscription{Topic: topic, Event: event, Handle: s.handle}
}

// Unsubscribe removes the subscriber identified by handle. Unknown topics,
// events and handles are ignored.
func (b *Bus) Unsubscribe(topic, event string, handle Handle) {
	events, ok := b.topics[topic]
	if !ok {
		return
	}
	ch, ok := events[event]
	if !ok {
		return
	}
	for i, s := range ch.subs {
		if s.handle == handle {
			s.removed = true
			ch.subs = append(ch.subs[:i:i], ch.subs[i+1:]...)
			return
		}
	}
}

// UnsubscribeAll removes every subscription in subs.
func (b *Bus) UnsubscribeAll(subs []Subscription) {
	for _, s := range subs {
		b.Unsubscribe(s.Topic, s.Event, s.Handle)
	}
}

// Notify publishes payload on (topic, event).
//
// While the bus is halted the call is buffered and nothing else happens.
// Otherwise the payload is logged and every subscriber receives all
// payloads from its cursor onward. With firstTimeOnly, subscribers whose
// cursor is not zero are skipped.
func (b *Bus) Notify(topic, event string, payload any, firstTimeOnly bool) {
	c := Call{Topic: topic, Event: event, Payload: payload, FirstTimeOnly: firstTimeOnly, Nested: b.depth > 0}
	if b.halted {
		b.buffer = append(b.buffer, c)
		for _, o := range b.observers {
			o.OnCapture(c)
		}
		return
	}
	b.apply(c)
}

func (b *Bus) apply(c Call) {
	ch := b.channel(c.Topic, c.Event)
	ch.log = append(ch.log, c.Payload)
	ch.ready = true
	for _, o := range b.observers {
		o.OnApply(c)
	}

	// Subscribers added by a handler during delivery catch up through
	// their own replay, so iterating a snapshot is enough.
	snapshot := make([]*subscriber, len(ch.subs))
	copy(snapshot, ch.subs)

	delivered := 0
	for _, s := range snapshot {
		if c.FirstTimeOnly && s.cursor != 0 {
			continue
		}
		for !s.removed && s.cursor < len(ch.log) {
			payload := ch.log[s.cursor]
			s.cursor++
			b.invoke(c.Topic, c.Event, s.handler, payload)
			delivered++
		}
	}

	for _, o := range b.observers {
		o.OnNotify(c, delivered)
	}
}

// Halt puts the bus into the halted state. Subsequent Notify calls are
// buffered until Unhalt.
func (b *Bus) Halt() {
	b.halted = true
}

// Unhalt releases the bus and replays every buffered Notify, in the order
// the calls were made. Calling Unhalt on a running bus does nothing.
func (b *Bus) Unhalt() {
	if !b.halted {
		return
	}
	b.halted = false

	// Calls stay in the buffer until applied, so a handler that halts the
	// bus again queues its own calls behind the ones not yet replayed.
	for !b.halted && len(b.buffer) > 0 {
		c := b.buffer[0]
		b.buffer = b.buffer[1:]
		b.apply(c)
	}
	if len(b.buffer) == 0 {
		b.buffer = nil
	}
}

// Halted reports whether Notify calls are currently buffered.
func (b *Bus) Halted() bool {
	return b.halted
}

// Pending returns the number of buffered Notify calls.
func (b *Bus) Pending() int {
	return len(b.buffer)
}

// Topics returns every topic the bus has seen, sorted.
func (b *Bus) Topics() []string {
	topics := make([]string, 0, len(b.topics))
	for t := range b.topics {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Log returns a copy of the payloads published on (topic, event).
func (b *Bus) Log(topic, event string) []any {
	ch := b.lookup(topic, event)
	if ch == nil {
		return nil
	}
	out := make([]any, len(ch.log))
	copy(out, ch.log)
	return out
}

// Subscribers returns the number of live subscribers on (topic, event).
func (b *Bus) Subscribers(topic, event string) int {
	ch := b.lookup(topic, event)
	if ch == nil {
		return 0
	}
	return len(ch.subs)
}

func (b *Bus) lookup(topic, event string) *channel {
	events, ok := b.topics[topic]
	if !ok {
		return nil
	}
	return events[event]
}

func (b *Bus) channel(topic, event string) *channel {
	events, ok := b.topics[topic]
	if !ok {
		events = make(map[string]*channel)
		b.topics[topic] = events
	}
	ch, ok := events[event]
	if !ok {
		ch = &channel{}
		events[event] = ch
	}
	return ch
}

// invoke calls h, converting a panic into a reported *PanicError.
func (b *Bus) invoke(topic, event string, h Handler, payload any) {
	b.depth++
	defer func() {
		b.depth--
		if r := recover(); r != nil {
			err := &PanicError{
				Topic: topic,
				Event: event,
				Value: r,
				Stack: string(debug.Stack()),
			}
			if b.onPanic != nil {
				b.onPanic(err)
				return
			}
			b.logger.Error("bus handler panicked",
				slog.String("topic", topic),
				slog.String("event", event),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	h(payload)
}
