// Package loop provides a single dispatch goroutine.
//
// mosaic's bus and engine are not safe for concurrent use; every call for
// one engine must happen on the same goroutine. A Loop is that goroutine:
// work from other goroutines (a finished fetch, an HTTP request) is posted
// to it and executed in arrival order.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Sentinel errors.
var (
	// ErrStopped indicates the loop is not accepting tasks.
	ErrStopped = errors.New("loop stopped")

	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("loop already running")
)

// Loop executes posted tasks one at a time on the goroutine that calls Run.
type Loop struct {
	queueSize int
	logger    *slog.Logger

	mu      sync.Mutex
	tasks   chan func()
	done    chan struct{}
	stopped bool
	posting sync.WaitGroup // Post calls that passed the stopped check
	running atomic.Bool

	executed atomic.Uint64
	panicked atomic.Uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithQueueSize sets the task queue capacity. Default: 1024.
func WithQueueSize(size int) Option {
	return func(l *Loop) {
		if size > 0 {
			l.queueSize = size
		}
	}
}

// WithLogger sets the logger used to report task panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loop. Call Run to start processing.
func New(opts ...Option) *Loop {
	l := &Loop{
		queueSize: 1024,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.tasks = make(chan func(), l.queueSize)
	l.done = make(chan struct{})
	return l
}

// Run processes tasks until ctx is done or Stop is called. Tasks queued
// before Stop are drained first.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	for {
		select {
		case task := <-l.tasks:
			l.execute(task)
		case <-l.done:
			l.finish()
			return nil
		case <-ctx.Done():
			l.Stop()
			l.finish()
			return ctx.Err()
		}
	}
}

// finish waits for in-flight Posts to settle, then runs whatever they
// queued. A Post that reported true always has its task run.
func (l *Loop) finish() {
	l.posting.Wait()
	l.drain()
}

func (l *Loop) drain() {
	for {
		select {
		case task := <-l.tasks:
			l.execute(task)
		default:
			return
		}
	}
}

func (l *Loop) execute(task func()) {
	defer func() {
		l.executed.Add(1)
		if r := recover(); r != nil {
			l.panicked.Add(1)
			l.logger.Error("loop task panicked",
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	task()
}

// Post queues task for execution. It blocks while the queue is full and
// reports false if the loop has been stopped. Posting from inside a task
// while the queue is full deadlocks.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.posting.Add(1)
	l.mu.Unlock()
	defer l.posting.Done()

	select {
	case l.tasks <- task:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops accepting tasks. Run returns after draining the queue.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	close(l.done)
}

// Stats reports how many tasks ran, panicking ones included, and how many
// of those panicked.
func (l *Loop) Stats() (executed, panicked uint64) {
	return l.executed.Load(), l.panicked.Load()
}
