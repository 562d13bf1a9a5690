package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvr-ai/live-classify/capture"
	"github.com/nvr-ai/live-classify/inference"
	"github.com/nvr-ai/live-classify/internal/log"
	"github.com/nvr-ai/live-classify/orientation"
	"github.com/nvr-ai/live-classify/presentation"
)

// OperationTimer times named operations. The runtime profiler implements it.
type OperationTimer interface {
	StartOperation(name string) func()
}

// Options configures a Pipeline.
type Options struct {
	// TopN caps the predictions forwarded to the sink.
	TopN int
	// MinConfidence is the exclusive lower bound on forwarded confidences.
	MinConfidence float32
	// Timeout marks a classification as failed when it takes longer, discarding its
	// late result. The pipeline stays InFlight until the call returns. 0 disables it.
	Timeout time.Duration
	// OnFrame is called on the delivery goroutine for every frame, accepted or not.
	OnFrame func(capture.Frame)
	// Timer records the "classify" operation. Optional.
	Timer OperationTimer
}

// Stats counts frames handled by a Pipeline.
type Stats struct {
	Submitted uint64
	Accepted  uint64
	Dropped   uint64
	Failed    uint64
	TimedOut  uint64
	Delivered uint64
}

type sinkRef struct {
	sink presentation.Sink
}

// Pipeline feeds frames to a classifier with at most one classification in flight.
//
// Frames that arrive while a classification is running are dropped, not queued.
// Results are handed to the sink through the Dispatcher in completion order,
// which is also submission order since only one frame is ever in flight.
type Pipeline struct {
	classifier inference.Classifier
	tracker    *orientation.Tracker
	dispatcher *Dispatcher
	opts       Options

	sink      atomic.Pointer[sinkRef]
	inFlight  atomic.Bool
	closed    atomic.Bool
	loaded    atomic.Bool
	startOnce sync.Once
	wg        sync.WaitGroup

	submitted atomic.Uint64
	accepted  atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
	timedOut  atomic.Uint64
	delivered atomic.Uint64
}

// New creates a pipeline.
//
// Arguments:
//   - classifier: Runs one classification per accepted frame.
//   - tracker: Supplies the orientation correction at request time.
//   - dispatcher: The presentation context that calls the sink.
//   - sink: Receives results and loading indicator updates.
//   - opts: Filtering and scheduling options.
//
// Returns:
//   - *Pipeline: The pipeline in the Idle state.
func New(
	classifier inference.Classifier,
	tracker *orientation.Tracker,
	dispatcher *Dispatcher,
	sink presentation.Sink,
	opts Options,
) *Pipeline {
	if opts.TopN <= 0 {
		opts.TopN = inference.DefaultTopN
	}
	p := &Pipeline{
		classifier: classifier,
		tracker:    tracker,
		dispatcher: dispatcher,
		opts:       opts,
	}
	if sink != nil {
		p.sink.Store(&sinkRef{sink: sink})
	}
	return p
}

// Start shows the loading indicator. Later calls do nothing.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		p.dispatcher.Post(func() {
			if ref := p.sink.Load(); ref != nil && !p.loaded.Load() {
				ref.sink.ShowLoading()
			}
		})
	})
}

// InFlight reports whether a classification is running.
func (p *Pipeline) InFlight() bool {
	return p.inFlight.Load()
}

// Submit offers a frame for classification without blocking.
//
// Arguments:
//   - frame: The captured frame.
//
// Returns:
//   - bool: True if the frame was accepted, false if it was dropped because a
//     classification is in flight or the pipeline is closed.
func (p *Pipeline) Submit(frame capture.Frame) bool {
	p.submitted.Add(1)
	if p.closed.Load() || !p.inFlight.CompareAndSwap(false, true) {
		p.dropped.Add(1)
		return false
	}
	p.accepted.Add(1)

	correction := p.tracker.Current()
	p.wg.Add(1)
	go p.classify(frame, correction)
	return true
}

// Run submits every frame from frames until ctx is done or frames is closed.
// It shows the loading indicator first.
func (p *Pipeline) Run(ctx context.Context, frames <-chan capture.Frame) {
	p.Start()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if p.opts.OnFrame != nil {
				p.opts.OnFrame(frame)
			}
			p.Submit(frame)
		}
	}
}

type outcome struct {
	result inference.Result
	err    error
}

// classify runs on its own goroutine while the pipeline is InFlight.
func (p *Pipeline) classify(frame capture.Frame, correction orientation.Correction) {
	defer p.wg.Done()
	defer p.inFlight.Store(false)

	if p.opts.Timer != nil {
		defer p.opts.Timer.StartOperation("classify")()
	}

	start := time.Now()
	res, err := p.call(frame, correction)
	if err != nil {
		p.failed.Add(1)
		log.Warn("classification failed", "seq", frame.Seq, "correction", correction.String(), "error", err)
		return
	}

	res.Seq = frame.Seq
	res.Correction = correction
	res.Predictions = inference.Filter(res.Predictions, p.opts.TopN, p.opts.MinConfidence)
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}

	// Posting before the deferred release keeps results in submission order.
	if !p.dispatcher.Post(func() { p.deliver(res) }) {
		log.Debug("presentation stopped, result discarded", "seq", frame.Seq)
	}
}

// call invokes the classifier. When the configured timeout passes first, the
// stall is counted and logged and the late result is discarded, but call still
// waits for the classifier to return so it never runs two calls at once.
func (p *Pipeline) call(frame capture.Frame, correction orientation.Correction) (inference.Result, error) {
	if p.opts.Timeout <= 0 {
		return p.classifier.Classify(context.Background(), frame.Image, correction)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		res, err := p.classifier.Classify(ctx, frame.Image, correction)
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
	}

	p.timedOut.Add(1)
	log.Warn("classification stalled, frames dropped until it returns",
		"seq", frame.Seq, "timeout", p.opts.Timeout)
	<-done
	return inference.Result{}, fmt.Errorf("%w: no result after %s", inference.ErrInference, p.opts.Timeout)
}

// deliver runs on the dispatcher goroutine.
func (p *Pipeline) deliver(res inference.Result) {
	ref := p.sink.Load()
	if ref == nil {
		return
	}
	p.delivered.Add(1)
	ref.sink.Display(res)
	if p.loaded.CompareAndSwap(false, true) {
		ref.sink.HideLoading(true)
	}
}

// Close detaches the sink and stops accepting frames. A classification that is
// still running is not interrupted; its result is discarded.
func (p *Pipeline) Close() {
	p.closed.Store(true)
	p.sink.Store(nil)
}

// Wait blocks until running classifications return or ctx is done.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Accepted:  p.accepted.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
		TimedOut:  p.timedOut.Load(),
		Delivered: p.delivered.Load(),
	}
}

// CollectMetrics reports the pipeline counters to the runtime profiler.
func (p *Pipeline) CollectMetrics() map[string]float64 {
	s := p.Stats()
	inFlight := 0.0
	if p.InFlight() {
		inFlight = 1
	}
	return map[string]float64{
		"pipeline_submitted": float64(s.Submitted),
		"pipeline_accepted":  float64(s.Accepted),
		"pipeline_dropped":   float64(s.Dropped),
		"pipeline_failed":    float64(s.Failed),
		"pipeline_timed_out": float64(s.TimedOut),
		"pipeline_delivered": float64(s.Delivered),
		"pipeline_in_flight": inFlight,
		"ui_queue_dropped":   float64(p.dispatcher.Dropped()),
	}
}
