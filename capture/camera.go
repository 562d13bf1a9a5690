package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nvr-ai/live-classify/images"
	"github.com/nvr-ai/live-classify/internal/log"
	"gocv.io/x/gocv"
)

// CameraOptions configures a CameraSource.
type CameraOptions struct {
	// DeviceID is the capture device index. Used when Path is empty.
	DeviceID int
	// Path is a video file or stream URL.
	Path string
	// Buffer is the capacity of the frame channel.
	Buffer int
	// Orientation tags each frame. Optional.
	Orientation OrientationFunc
}

// CameraSource reads frames from a capture device or video file with OpenCV.
type CameraSource struct {
	opts CameraOptions

	mu      sync.Mutex
	emitter *emitter
}

// NewCameraSource creates a camera source. Nothing is opened until Start.
func NewCameraSource(opts CameraOptions) *CameraSource {
	return &CameraSource{opts: opts}
}

func (s *CameraSource) name() string {
	if s.opts.Path != "" {
		return s.opts.Path
	}
	return fmt.Sprintf("device %d", s.opts.DeviceID)
}

// Start opens the device and starts the capture loop.
//
// Arguments:
//   - ctx: Stops the capture loop when done.
//
// Returns:
//   - <-chan Frame: The frame channel, closed when capture stops.
//   - error: An error wrapping ErrSourceUnavailable if the device cannot be opened.
func (s *CameraSource) Start(ctx context.Context) (<-chan Frame, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if s.opts.Path != "" {
		vc, err = gocv.OpenVideoCapture(s.opts.Path)
	} else {
		vc, err = gocv.OpenVideoCapture(s.opts.DeviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.name(), err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s did not open", ErrSourceUnavailable, s.name())
	}

	e := newEmitter(s.opts.Buffer, s.opts.Orientation)
	s.mu.Lock()
	s.emitter = e
	s.mu.Unlock()

	// Files are paced at their native rate; devices deliver at hardware rate.
	var interval time.Duration
	if s.opts.Path != "" {
		if fps := vc.Get(gocv.VideoCaptureFPS); fps > 0 {
			interval = time.Duration(float64(time.Second) / fps)
		}
	}

	log.Info("📷 capture started", "source", s.name(), "session", e.sessionID)
	go s.loop(ctx, vc, e, interval)
	return e.out, nil
}

func (s *CameraSource) loop(ctx context.Context, vc *gocv.VideoCapture, e *emitter, interval time.Duration) {
	defer e.close()
	defer vc.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Info("capture stopped", "source", s.name(), "emitted", e.emitted.Load(), "dropped", e.dropped.Load())
			return
		default:
		}

		if ok := vc.Read(&mat); !ok {
			log.Warn("cannot read from source", "source", s.name())
			return
		}
		if mat.Empty() {
			continue
		}

		img, err := images.MatToImage(mat)
		if err != nil {
			log.Warn("failed to convert frame", "source", s.name(), "error", err)
			continue
		}
		e.emit(img, time.Now())

		if interval > 0 {
			next = next.Add(interval)
			if wait := time.Until(next); wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			} else {
				next = time.Now()
			}
		}
	}
}

// Stats returns delivery counters for the current session.
func (s *CameraSource) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitter == nil {
		return Stats{}
	}
	return s.emitter.stats()
}
