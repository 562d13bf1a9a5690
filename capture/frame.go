// Package capture - Frame sources feeding the classification pipeline.
package capture

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/live-classify/orientation"
	"github.com/pkg/errors"
)

// ErrSourceUnavailable is returned when a source cannot be opened.
// The caller decides whether to continue without frames.
var ErrSourceUnavailable = errors.New("frame source unavailable")

// Frame is one captured image plus its metadata.
type Frame struct {
	// Seq increases by one per emitted frame within a source session.
	Seq uint64
	// SessionID identifies the source session that produced the frame.
	SessionID uuid.UUID
	// Image holds the pixels in sensor orientation.
	Image image.Image
	// Timestamp is the capture time.
	Timestamp time.Time
	// Orientation is the device orientation at capture time.
	Orientation orientation.DeviceOrientation
}

// Source produces frames on a channel until its context is cancelled or it runs out.
type Source interface {
	// Start opens the source and begins delivery. The returned channel is closed
	// when delivery stops.
	Start(ctx context.Context) (<-chan Frame, error)
	// Stats returns delivery counters.
	Stats() Stats
}

// Stats counts frames seen by a source.
type Stats struct {
	Emitted uint64
	Dropped uint64
}

// OrientationFunc reports the current device orientation for tagging frames.
type OrientationFunc func() orientation.DeviceOrientation

// emitter pushes frames into a bounded channel without blocking the capture loop.
type emitter struct {
	out         chan Frame
	sessionID   uuid.UUID
	orientation OrientationFunc
	seq         uint64
	emitted     atomic.Uint64
	dropped     atomic.Uint64
}

func newEmitter(buffer int, fn OrientationFunc) *emitter {
	if buffer < 1 {
		buffer = 1
	}
	if fn == nil {
		fn = func() orientation.DeviceOrientation { return orientation.DeviceUnknown }
	}
	return &emitter{
		out:         make(chan Frame, buffer),
		sessionID:   uuid.New(),
		orientation: fn,
	}
}

// emit delivers img if the channel has room and drops it otherwise.
// It is only called from the capture goroutine.
func (e *emitter) emit(img image.Image, ts time.Time) bool {
	e.seq++
	f := Frame{
		Seq:         e.seq,
		SessionID:   e.sessionID,
		Image:       img,
		Timestamp:   ts,
		Orientation: e.orientation(),
	}
	select {
	case e.out <- f:
		e.emitted.Add(1)
		return true
	default:
		e.dropped.Add(1)
		return false
	}
}

func (e *emitter) stats() Stats {
	return Stats{Emitted: e.emitted.Load(), Dropped: e.dropped.Load()}
}

func (e *emitter) close() {
	close(e.out)
}
