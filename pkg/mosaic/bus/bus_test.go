package bus_test

import (
	"errors"
	"testing"

	"github.com/randalmurphal/mosaic/pkg/mosaic/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects payloads delivered to a handler.
type recorder struct {
	got []any
}

func (r *recorder) handle(p any) {
	r.got = append(r.got, p)
}

func TestNotifyDeliversToExistingSubscriber(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	rec := &recorder{}

	_, err := b.Subscribe("router", bus.EventMap{"after": rec.handle})
	require.NoError(t, err)

	b.Notify("router", "after", map[string]string{"path": "/x"}, false)

	require.Len(t, rec.got, 1)
	assert.Equal(t, map[string]string{"path": "/x"}, rec.got[0])
}

func TestSubscribeReplaysLoggedPayloads(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	b.Notify("app", "ready", "payload1", false)
	b.Notify("app", "ready", "payload2", false)

	rec := &recorder{}
	_, err := b.Subscribe("app", bus.EventMap{"ready": rec.handle})
	require.NoError(t, err)

	// Delivered synchronously, inside Subscribe.
	assert.Equal(t, []any{"payload1", "payload2"}, rec.got)

	b.Notify("app", "ready", "payload3", false)
	assert.Equal(t, []any{"payload1", "payload2", "payload3"}, rec.got)
}

func TestReplayCompleteness(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	const n = 25
	for i := 0; i < n; i++ {
		b.Notify("t", "e", i, false)
	}

	rec := &recorder{}
	_, err := b.Subscribe("t", bus.EventMap{"e": rec.handle})
	require.NoError(t, err)

	require.Len(t, rec.got, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, i, rec.got[i])
	}
}

func TestSubscribeBeforeReadyDoesNotInvoke(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	rec := &recorder{}

	_, err := b.Subscribe("t", bus.EventMap{"e": rec.handle})
	require.NoError(t, err)
	assert.Empty(t, rec.got)

	// Other channels on the same topic do not affect this one.
	b.Notify("t", "other", 1, false)
	assert.Empty(t, rec.got)
}

func TestHaltBuffersUntilUnhalt(t *testing.T) {
	b := bus.New()
	require.True(t, b.Halted())

	b.Notify("app", "auth", "profile", false)
	assert.Equal(t, 1, b.Pending())
	assert.Empty(t, b.Log("app", "auth"), "halted notify must not touch the log")

	rec := &recorder{}
	_, err := b.Subscribe("app", bus.EventMap{"auth": rec.handle})
	require.NoError(t, err)
	assert.Empty(t, rec.got)

	b.Unhalt()
	assert.Equal(t, []any{"profile"}, rec.got)
	assert.Equal(t, 0, b.Pending())
	assert.False(t, b.Halted())
}

func TestUnhaltPreservesCallOrder(t *testing.T) {
	b := bus.New()
	var order []string
	_, err := b.Subscribe("t", bus.EventMap{
		"a": func(p any) { order = append(order, "a:"+p.(string)) },
		"b": func(p any) { order = append(order, "b:"+p.(string)) },
	})
	require.NoError(t, err)

	b.Notify("t", "b", "1", false)
	b.Notify("t", "a", "2", false)
	b.Notify("t", "b", "3", false)
	assert.Empty(t, order)

	b.Unhalt()
	assert.Equal(t, []string{"b:1", "a:2", "b:3"}, order)
}

func TestUnhaltIsIdempotent(t *testing.T) {
	b := bus.New()
	rec := &recorder{}
	_, err := b.Subscribe("t", bus.EventMap{"e": rec.handle})
	require.NoError(t, err)

	b.Notify("t", "e", 1, false)
	b.Unhalt()
	b.Unhalt()

	assert.Equal(t, []any{1}, rec.got)
	assert.Equal(t, []any{1}, b.Log("t", "e"))
}

func TestFirstTimeOnlySkipsConsumedSubscribers(t *testing.T) {
	b := bus.New(bus.StartUnhalted())

	early := &recorder{}
	_, err := b.Subscribe("view", bus.EventMap{"create": early.handle})
	require.NoError(t, err)

	b.Notify("view", "create", "first", false)
	require.Equal(t, []any{"first"}, early.got)

	b.Notify("view", "create", "second", true)
	assert.Equal(t, []any{"first"}, early.got, "subscriber with cursor > 0 must be skipped")

	// The log still records the payload, so a late subscriber replays both.
	late := &recorder{}
	_, err = b.Subscribe("view", bus.EventMap{"create": late.handle})
	require.NoError(t, err)
	assert.Equal(t, []any{"first", "second"}, late.got)
}

func TestFirstTimeOnlyReachesFreshSubscribers(t *testing.T) {
	b := bus.New(bus.StartUnhalted())

	fresh := &recorder{}
	_, err := b.Subscribe("view", bus.EventMap{"create": fresh.handle})
	require.NoError(t, err)

	b.Notify("view", "create", "hello", true)
	assert.Equal(t, []any{"hello"}, fresh.got)
}

func TestFirstTimeOnlyEvaluatedAtReplay(t *testing.T) {
	b := bus.New()
	rec := &recorder{}
	_, err := b.Subscribe("t", bus.EventMap{"e": rec.handle})
	require.NoError(t, err)

	b.Notify("t", "e", "one", false)
	b.Notify("t", "e", "two", true)
	b.Unhalt()

	// When "two" is replayed the subscriber has already consumed "one".
	assert.Equal(t, []any{"one"}, rec.got)
	assert.Equal(t, []any{"one", "two"}, b.Log("t", "e"))
}

func TestSkippedSubscriberCatchesUpLater(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	rec := &recorder{}
	_, err := b.Subscribe("t", bus.EventMap{"e": rec.handle})
	require.NoError(t, err)

	b.Notify("t", "e", 1, false)
	b.Notify("t", "e", 2, true)
	b.Notify("t", "e", 3, false)

	// The skipped payload is not lost: delivery resumes from the cursor.
	assert.Equal(t, []any{1, 2, 3}, rec.got)
}

func TestNoDuplicateDeliveryOnReentrantNotify(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	var got []any
	_, err := b.Subscribe("t", bus.EventMap{
		"e": func(p any) {
			got = append(got, p)
			if p == 1 {
				b.Notify("t", "e", 2, false)
			}
		},
	})
	require.NoError(t, err)

	b.Notify("t", "e", 1, false)
	assert.Equal(t, []any{1, 2}, got)
}

func TestReentrantNotifyDuringReplay(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	b.Notify("t", "e", 1, false)

	var got []any
	_, err := b.Subscribe("t", bus.EventMap{
		"e": func(p any) {
			got = append(got, p)
			if p == 1 {
				b.Notify("t", "e", 2, false)
			}
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, got)
}

func TestSubscribeNilHandlerAbortsBatch(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	rec := &recorder{}

	subs, err := b.Subscribe("t", bus.EventMap{
		"good": rec.handle,
		"bad":  nil,
	})
	require.Error(t, err)
	assert.Nil(t, subs)
	assert.True(t, errors.Is(err, bus.ErrNilHandler))

	var cfgErr *bus.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "t", cfgErr.Topic)
	assert.Equal(t, "bad", cfgErr.Event)
	assert.Equal(t, 0, b.Subscribers("t", "good"))

	// The bus is still usable.
	_, err = b.Subscribe("t", bus.EventMap{"good": rec.handle})
	require.NoError(t, err)
	b.Notify("t", "good", "ok", false)
	assert.Equal(t, []any{"ok"}, rec.got)
}

func TestUnsubscribe(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	first, second := &recorder{}, &recorder{}

	subs1, err := b.Subscribe("t", bus.EventMap{"e": first.handle})
	require.NoError(t, err)
	_, err = b.Subscribe("t", bus.EventMap{"e": second.handle})
	require.NoError(t, err)
	require.Equal(t, 2, b.Subscribers("t", "e"))

	b.UnsubscribeAll(subs1)
	assert.Equal(t, 1, b.Subscribers("t", "e"))

	b.Notify("t", "e", "x", false)
	assert.Empty(t, first.got)
	assert.Equal(t, []any{"x"}, second.got)
}

func TestUnsubscribeUnknownIsNoop(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	b.Unsubscribe("missing", "e", 1)

	_, err := b.Subscribe("t", bus.EventMap{"e": func(any) {}})
	require.NoError(t, err)
	b.Unsubscribe("t", "missing", 1)
	b.Unsubscribe("t", "e", 999)
	assert.Equal(t, 1, b.Subscribers("t", "e"))
}

func TestUnsubscribeDuringDelivery(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	var later recorder
	var laterSubs []bus.Subscription

	_, err := b.Subscribe("t", bus.EventMap{
		"e": func(any) { b.UnsubscribeAll(laterSubs) },
	})
	require.NoError(t, err)
	laterSubs, err = b.Subscribe("t", bus.EventMap{"e": later.handle})
	require.NoError(t, err)

	b.Notify("t", "e", 1, false)
	assert.Empty(t, later.got)
}

func TestHandlesStayValidAfterRemoval(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	a, c := &recorder{}, &recorder{}

	subsA, err := b.Subscribe("t", bus.EventMap{"e": a.handle})
	require.NoError(t, err)
	subsB, err := b.Subscribe("t", bus.EventMap{"e": func(any) {}})
	require.NoError(t, err)
	subsC, err := b.Subscribe("t", bus.EventMap{"e": c.handle})
	require.NoError(t, err)

	b.UnsubscribeAll(subsB)
	b.UnsubscribeAll(subsC)

	b.Notify("t", "e", 1, false)
	assert.Equal(t, []any{1}, a.got)
	assert.Empty(t, c.got)
	assert.NotEqual(t, subsA[0].Handle, subsC[0].Handle)
}

func TestHandlerPanicDoesNotStopDelivery(t *testing.T) {
	var reported []*bus.PanicError
	b := bus.New(bus.StartUnhalted(), bus.WithPanicHandler(func(err *bus.PanicError) {
		reported = append(reported, err)
	}))
	rec := &recorder{}

	_, err := b.Subscribe("t", bus.EventMap{"e": func(any) { panic("boom") }})
	require.NoError(t, err)
	_, err = b.Subscribe("t", bus.EventMap{"e": rec.handle})
	require.NoError(t, err)

	b.Notify("t", "e", 1, false)
	b.Notify("t", "e", 2, false)

	assert.Equal(t, []any{1, 2}, rec.got)
	require.Len(t, reported, 2)
	assert.Equal(t, "boom", reported[0].Value)
	assert.Contains(t, reported[0].Error(), "panicked")
}

func TestHaltDuringUnhaltRebuffers(t *testing.T) {
	b := bus.New()
	var got []any
	_, err := b.Subscribe("t", bus.EventMap{
		"e": func(p any) {
			got = append(got, p)
			if p == 1 {
				b.Halt()
			}
		},
	})
	require.NoError(t, err)

	b.Notify("t", "e", 1, false)
	b.Notify("t", "e", 2, false)
	b.Unhalt()

	assert.Equal(t, []any{1}, got)
	assert.True(t, b.Halted())
	assert.Equal(t, 1, b.Pending())

	b.Unhalt()
	assert.Equal(t, []any{1, 2}, got)
}

func TestRehaltKeepsCallOrder(t *testing.T) {
	b := bus.New()
	var got []any
	_, err := b.Subscribe("t", bus.EventMap{
		"e": func(p any) {
			got = append(got, p)
			if p == 1 {
				b.Halt()
				b.Notify("t", "e", 3, false)
			}
		},
	})
	require.NoError(t, err)

	b.Notify("t", "e", 1, false)
	b.Notify("t", "e", 2, false)
	b.Unhalt()
	assert.Equal(t, 2, b.Pending())

	b.Unhalt()
	assert.Equal(t, []any{1, 2, 3}, got)
	assert.Equal(t, []any{1, 2, 3}, b.Log("t", "e"))
	assert.Zero(t, b.Pending())
}

func TestNestedUnhaltDrainsInOrder(t *testing.T) {
	b := bus.New()
	var got []any
	_, err := b.Subscribe("t", bus.EventMap{
		"e": func(p any) {
			got = append(got, p)
			if p == 1 {
				b.Halt()
				b.Notify("t", "e", 3, false)
				b.Unhalt()
			}
		},
	})
	require.NoError(t, err)

	b.Notify("t", "e", 1, false)
	b.Notify("t", "e", 2, false)
	b.Unhalt()

	assert.Equal(t, []any{1, 2, 3}, got)
	assert.False(t, b.Halted())
}

func TestObserver(t *testing.T) {
	var captured, notified []bus.Call
	var delivered, replayed []int
	b := bus.New(bus.WithObserver(bus.ObserverFuncs{
		Capture: func(c bus.Call) { captured = append(captured, c) },
		Notify: func(c bus.Call, n int) {
			notified = append(notified, c)
			delivered = append(delivered, n)
		},
		Subscribe: func(_, _ string, n int) { replayed = append(replayed, n) },
	}))

	b.Notify("t", "e", "a", false)
	require.Len(t, captured, 1)
	assert.Empty(t, notified)

	b.Unhalt()
	require.Len(t, notified, 1)
	assert.Equal(t, 0, delivered[0])

	_, err := b.Subscribe("t", bus.EventMap{"e": func(any) {}})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, replayed)

	b.Notify("t", "e", "b", true)
	assert.Equal(t, []int{0, 0}, delivered, "subscriber already consumed a payload")
}

func TestIntrospection(t *testing.T) {
	b := bus.New(bus.StartUnhalted())
	b.Notify("b", "x", 1, false)
	b.Notify("a", "y", 2, false)

	assert.Equal(t, []string{"a", "b"}, b.Topics())
	assert.Equal(t, []any{1}, b.Log("b", "x"))
	assert.Nil(t, b.Log("c", "z"))
	assert.Equal(t, 0, b.Subscribers("c", "z"))
}

func TestApplyReportsTriggerBeforeDerivedCalls(t *testing.T) {
	var applied []bus.Call
	var notified []string
	b := bus.New(bus.StartUnhalted(), bus.WithObserver(bus.ObserverFuncs{
		Apply:  func(c bus.Call) { applied = append(applied, c) },
		Notify: func(c bus.Call, _ int) { notified = append(notified, c.Event) },
	}))
	_, err := b.Subscribe("a", bus.EventMap{
		"x": func(any) { b.Notify("a", "y", "derived", false) },
	})
	require.NoError(t, err)

	b.Notify("a", "x", "root", false)

	require.Len(t, applied, 2)
	assert.Equal(t, "x", applied[0].Event)
	assert.False(t, applied[0].Nested)
	assert.Equal(t, "y", applied[1].Event)
	assert.True(t, applied[1].Nested)
	assert.Equal(t, []string{"y", "x"}, notified, "OnNotify runs after delivery")
}

func TestNestedFlagSurvivesHaltBuffer(t *testing.T) {
	var applied []bus.Call
	b := bus.New(bus.StartUnhalted(), bus.WithObserver(bus.ObserverFuncs{
		Apply: func(c bus.Call) { applied = append(applied, c) },
	}))
	_, err := b.Subscribe("a", bus.EventMap{
		"x": func(any) {
			b.Halt()
			b.Notify("a", "y", nil, false)
		},
	})
	require.NoError(t, err)

	b.Notify("a", "x", nil, false)
	b.Unhalt()

	require.Len(t, applied, 2)
	assert.True(t, applied[1].Nested)
}
