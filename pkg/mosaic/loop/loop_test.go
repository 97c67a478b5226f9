package loop_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randalmurphal/mosaic/pkg/mosaic/loop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, opts ...loop.Option) *loop.Loop {
	t.Helper()
	l := loop.New(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() {}))

	require.Len(t, got, 100)
	for i := range got {
		assert.Equal(t, i, got[i])
	}
}

func TestLoopSerializesPostersFromManyGoroutines(t *testing.T) {
	l := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = l.Do(context.Background(), func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var final int
	require.NoError(t, l.Do(context.Background(), func() { final = counter }))
	assert.Equal(t, 1000, final)
}

func TestLoopRecoversFromPanics(t *testing.T) {
	l := startLoop(t)

	require.NoError(t, l.Do(context.Background(), func() { panic("boom") }))

	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)

	executed, panicked := l.Stats()
	assert.Equal(t, uint64(2), executed)
	assert.Equal(t, uint64(1), panicked)
}

func TestLoopStop(t *testing.T) {
	l := loop.New()
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	require.NoError(t, l.Do(context.Background(), func() {}))
	l.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), loop.ErrStopped)
	l.Stop()
}

func TestLoopRunTwice(t *testing.T) {
	l := startLoop(t)
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.ErrorIs(t, l.Run(context.Background()), loop.ErrAlreadyRunning)
}

func TestLoopContextCancel(t *testing.T) {
	l := loop.New(loop.WithQueueSize(4))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, l.Post(func() {}))
}

func TestLoopRunsEveryAcceptedTaskAcrossStop(t *testing.T) {
	for round := 0; round < 200; round++ {
		l := loop.New(loop.WithQueueSize(2))
		done := make(chan error, 1)
		go func() { done <- l.Run(context.Background()) }()

		var accepted, ran atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					if l.Post(func() { ran.Add(1) }) {
						accepted.Add(1)
					}
				}
			}()
		}
		l.Stop()
		wg.Wait()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after Stop")
		}
		require.Equal(t, accepted.Load(), ran.Load(), "round %d", round)
	}
}

func TestLoopDoNeverHangsAcrossStop(t *testing.T) {
	l := loop.New()
	go func() { _ = l.Run(context.Background()) }()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), func() {})
			if err != nil {
				assert.ErrorIs(t, err, loop.ErrStopped)
			}
		}()
	}
	l.Stop()

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Do blocked on a task that never ran")
	}
}
