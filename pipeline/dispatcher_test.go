package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsTasksInOrderOnOneGoroutine(t *testing.T) {
	d := NewDispatcher(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	var order []int
	active := 0
	maxActive := 0
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, d.Post(func() {
			active++
			maxActive = max(maxActive, active)
			order = append(order, i)
			active--
			if i == 99 {
				close(done)
			}
		}))
	}
	<-done

	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 1, maxActive)
	assert.Equal(t, uint64(100), d.Executed())
}

func TestDispatcherTryPostDropsWhenFull(t *testing.T) {
	d := NewDispatcher(1)

	assert.True(t, d.TryPost(func() {}))
	assert.False(t, d.TryPost(func() {}))
	assert.Equal(t, uint64(1), d.Dropped())
}

func TestDispatcherStopsAcceptingAfterRun(t *testing.T) {
	d := NewDispatcher(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
	assert.False(t, d.Post(func() {}))
	assert.False(t, d.TryPost(func() {}))
}

func TestDispatcherPostUnblocksOnStop(t *testing.T) {
	d := NewDispatcher(1)
	require.True(t, d.Post(func() {}))

	posted := make(chan bool)
	go func() { posted <- d.Post(func() {}) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Run may execute the queued task before seeing ctx; either way Post must return.
	go d.Run(ctx)

	select {
	case <-posted:
	case <-time.After(time.Second):
		t.Fatal("Post stayed blocked after the dispatcher stopped")
	}
}

func TestDispatcherEveryPostsUntilStopped(t *testing.T) {
	d := NewDispatcher(4)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	var ticks atomic.Int32
	stopped := make(chan struct{})
	go func() {
		d.Every(context.Background(), time.Millisecond, func() { ticks.Add(1) })
		close(stopped)
	}()

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Every kept running after the dispatcher stopped")
	}
}
