// Package journal records bus notifications so they can be replayed into
// a fresh bus, for example after a restart.
//
// A Recorder observes a bus and appends every applied Notify to a Store,
// in the order the bus applied them. Restore re-notifies the stored
// top-level entries in order, which gives
// subscribers that arrive later the same history the previous process
// had. Payloads are stored as JSON, so restored payloads are the
// decoded generic form (maps, slices, strings, float64, bool, nil).
package journal

import (
	"encoding/json"
	"errors"
	"time"
)

// Store persists journal entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores e and returns it with Seq and Time assigned.
	Append(e Entry) (Entry, error)

	// List returns all entries ordered by Seq.
	// Returns an empty slice (not error) if the journal is empty.
	List() ([]Entry, error)

	// Len returns the number of stored entries.
	Len() (int, error)

	// Clear removes all entries. Sequence numbers keep increasing.
	Clear() error

	// Close releases any resources (connections, files).
	Close() error
}

// Entry is one recorded notification.
type Entry struct {
	Seq           int64
	Topic         string
	Event         string
	Payload       json.RawMessage
	FirstTimeOnly bool
	// Nested marks a notification made by a handler. Restore skips these
	// because replaying their trigger makes the handler notify again.
	Nested bool
	Time   time.Time
}

// Sentinel errors for journal operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
