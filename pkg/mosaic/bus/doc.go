// Package bus implements the mosaic event bus.
//
// A Bus maps a (topic, event) pair to a channel. Each channel keeps an
// append-only log of every payload ever published on it and an ordered
// list of subscribers. Every subscriber carries a cursor: the index of the
// next log entry it has not yet seen.
//
// # Replay
//
// Subscribing to a channel that already has payloads delivers all of them,
// oldest first, before Subscribe returns:
//
//	b := bus.New(bus.StartUnhalted())
//	b.Notify("router", "after", "/a", false)
//	b.Notify("router", "after", "/b", false)
//
//	b.Subscribe("router", bus.EventMap{
//	    "after": func(p any) { fmt.Println(p) }, // prints /a then /b
//	})
//
// Notify delivers to every subscriber all payloads between its cursor and
// the end of the log, so no subscriber ever skips a payload or sees one
// twice.
//
// # First-time notifications
//
// Notify with firstTimeOnly set only reaches subscribers whose cursor is
// still zero. Subscribers that have already consumed a payload on that
// channel are skipped for that call.
//
// # Halting
//
// A new Bus starts halted. While halted, Notify records the call and does
// nothing else. Unhalt replays the recorded calls in their original order.
// If a handler halts the bus during that replay, calls it makes queue
// behind the ones not yet replayed. A second Unhalt is a no-op.
//
// # Concurrency
//
// A Bus is not safe for concurrent use. All calls for one Bus must happen
// on the same goroutine (see package loop). Handlers may call back into
// the Bus; nested calls run to completion before the outer call resumes.
package bus
