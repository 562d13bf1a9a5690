// Package pipeline - Frame to inference scheduling and result delivery.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher runs posted tasks one at a time, in the order they were posted,
// on the goroutine that calls Run. It stands in for a UI thread.
type Dispatcher struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64
	executed atomic.Uint64
}

// NewDispatcher creates a dispatcher with a bounded queue.
//
// Arguments:
//   - queue: The number of tasks that may wait to run. Values below 1 become 1.
//
// Returns:
//   - *Dispatcher: The dispatcher. Call Run to start executing tasks.
func NewDispatcher(queue int) *Dispatcher {
	if queue < 1 {
		queue = 1
	}
	return &Dispatcher{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// Post queues fn, waiting for room if the queue is full.
// It returns false without queuing once the dispatcher has stopped.
func (d *Dispatcher) Post(fn func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.tasks <- fn:
		return true
	case <-d.done:
		return false
	}
}

// TryPost queues fn only if there is room right now.
func (d *Dispatcher) TryPost(fn func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.tasks <- fn:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// Run executes tasks until ctx is done. Tasks still queued at that point are discarded.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.tasks:
			fn()
			d.executed.Add(1)
		}
	}
}

// Every posts fn with TryPost once per interval until ctx is done or the
// dispatcher stops. A tick that finds the queue full is skipped.
func (d *Dispatcher) Every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case <-ticker.C:
			d.TryPost(fn)
		}
	}
}

func (d *Dispatcher) stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

// Done is closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Dropped returns how many TryPost calls found the queue full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Executed returns how many tasks have run.
func (d *Dispatcher) Executed() uint64 {
	return d.executed.Load()
}
