package orientation

import (
	"context"
	"sync/atomic"

	"github.com/nvr-ai/live-classify/internal/log"
)

// Tracker holds the correction applied to frames handed to the classifier.
//
// Writes come from a single rotation event goroutine; reads come from the frame
// delivery goroutine. The value is stored atomically and is last-write-wins.
type Tracker struct {
	current atomic.Int32
	device  atomic.Int32
	updates atomic.Uint64
}

// NewTracker creates a tracker starting at the given correction.
// An invalid initial correction falls back to Portrait.
func NewTracker(initial Correction) *Tracker {
	if !initial.Valid() {
		initial = Portrait
	}
	t := &Tracker{}
	t.current.Store(int32(initial))
	return t
}

// Current returns the correction to apply to the next request.
func (t *Tracker) Current() Correction {
	return Correction(t.current.Load())
}

// Update recomputes the correction from a device rotation event.
//
// Orientations without a defined correction (unknown, face up, face down, or any
// unrecognized value) keep the last known portrait/landscape correction.
//
// Arguments:
//   - d: The new device orientation.
//
// Returns:
//   - Correction: The correction in effect after the update.
func (t *Tracker) Update(d DeviceOrientation) Correction {
	t.device.Store(int32(d))
	c, ok := CorrectionFor(d)
	if !ok {
		return t.Current()
	}
	if prev := Correction(t.current.Swap(int32(c))); prev != c {
		t.updates.Add(1)
		log.Debug("orientation changed", "device", d.String(), "from", prev.String(), "to", c.String())
	}
	return c
}

// Device returns the last reported device orientation, including ones
// without a correction such as FaceUp. It is Unknown until the first update.
func (t *Tracker) Device() DeviceOrientation {
	return DeviceOrientation(t.device.Load())
}

// Changes returns how many updates changed the correction.
func (t *Tracker) Changes() uint64 {
	return t.updates.Load()
}

// Subscribe consumes rotation events until ctx is done or events is closed.
// It blocks; run it on its own goroutine.
func (t *Tracker) Subscribe(ctx context.Context, events <-chan DeviceOrientation) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-events:
			if !ok {
				return
			}
			t.Update(d)
		}
	}
}
