package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nvr-ai/live-classify/capture"
	"github.com/nvr-ai/live-classify/inference"
	"github.com/nvr-ai/live-classify/orientation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// recordingSink records every sink call in order.
type recordingSink struct {
	mu      sync.Mutex
	events  []string
	results []inference.Result
}

func (s *recordingSink) Display(r inference.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("display:%d", r.Seq))
	s.results = append(s.results, r)
}

func (s *recordingSink) ShowLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "show")
}

func (s *recordingSink) HideLoading(permanently bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("hide:%t", permanently))
}

func (s *recordingSink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *recordingSink) Results() []inference.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inference.Result(nil), s.results...)
}

func testFrame(seq uint64) capture.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.RGBA{R: uint8(seq), A: 255})
	return capture.Frame{Seq: seq, Image: img, Timestamp: time.Now()}
}

func startDispatcher(t *testing.T, queue int) *Dispatcher {
	t.Helper()
	d := NewDispatcher(queue)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(cancel)
	return d
}

func fixedResult(preds ...inference.Prediction) inference.Result {
	return inference.Result{Predictions: preds}
}

func waitIdle(t *testing.T, p *Pipeline) {
	t.Helper()
	require.Eventually(t, func() bool { return !p.InFlight() }, waitFor, time.Millisecond)
}

// waitSettled waits until the pipeline has seen n frames and is idle again.
func waitSettled(t *testing.T, p *Pipeline, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return p.Stats().Submitted == n && !p.InFlight()
	}, waitFor, time.Millisecond)
}

func TestRapidFramesWhileInFlightAreDropped(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	cls := inference.ClassifierFunc(func(context.Context, image.Image, orientation.Correction) (inference.Result, error) {
		calls.Add(1)
		<-release
		return fixedResult(inference.Prediction{Label: "cat", Confidence: 0.9}), nil
	})

	sink := &recordingSink{}
	p := New(cls, orientation.NewTracker(orientation.Portrait), startDispatcher(t, 8), sink, Options{})

	accepted := 0
	for i := uint64(1); i <= 5; i++ {
		if p.Submit(testFrame(i)) {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)

	close(release)
	require.Eventually(t, func() bool { return len(sink.Results()) == 1 }, waitFor, time.Millisecond)
	waitIdle(t, p)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Stats{Submitted: 5, Accepted: 1, Dropped: 4, Delivered: 1}, p.Stats())
	assert.Equal(t, uint64(1), sink.Results()[0].Seq)
}

func TestFailureReturnsToIdleWithoutUpdate(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	cls := inference.ClassifierFunc(func(context.Context, image.Image, orientation.Correction) (inference.Result, error) {
		if fail.Load() {
			return inference.Result{}, fmt.Errorf("%w: boom", inference.ErrInference)
		}
		return fixedResult(inference.Prediction{Label: "dog", Confidence: 0.7}), nil
	})

	sink := &recordingSink{}
	p := New(cls, orientation.NewTracker(orientation.Portrait), startDispatcher(t, 8), sink, Options{})

	require.True(t, p.Submit(testFrame(1)))
	waitIdle(t, p)
	assert.Empty(t, sink.Events())
	assert.Equal(t, uint64(1), p.Stats().Failed)

	fail.Store(false)
	require.True(t, p.Submit(testFrame(2)))
	require.Eventually(t, func() bool { return len(sink.Results()) == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, uint64(2), sink.Results()[0].Seq)
}

func TestResultsAreFilteredAndTagged(t *testing.T) {
	cls := inference.ClassifierFunc(func(context.Context, image.Image, orientation.Correction) (inference.Result, error) {
		preds := make([]inference.Prediction, 20)
		for i := range preds {
			// Ascending on purpose; the pipeline must still deliver a descending list.
			preds[i] = inference.Prediction{Label: fmt.Sprintf("l%02d", i), Confidence: 0.05 + 0.05*float32(i)}
		}
		return inference.Result{Predictions: preds}, nil
	})

	tracker := orientation.NewTracker(orientation.Portrait)
	tracker.Update(orientation.DeviceLandscapeLeft)

	sink := &recordingSink{}
	p := New(cls, tracker, startDispatcher(t, 8), sink, Options{TopN: 11, MinConfidence: 0.1})

	require.True(t, p.Submit(testFrame(42)))
	require.Eventually(t, func() bool { return len(sink.Results()) == 1 }, waitFor, time.Millisecond)

	res := sink.Results()[0]
	assert.Equal(t, uint64(42), res.Seq)
	assert.Equal(t, orientation.LandscapeRight, res.Correction)
	assert.Positive(t, res.Duration)
	require.Len(t, res.Predictions, 11)
	assert.Equal(t, "l19", res.Predictions[0].Label)
	for i, pr := range res.Predictions {
		assert.Greater(t, pr.Confidence, float32(0.1))
		if i > 0 {
			assert.GreaterOrEqual(t, res.Predictions[i-1].Confidence, pr.Confidence)
		}
	}
}

func TestDeliveryOrderMatchesSubmission(t *testing.T) {
	cls := inference.ClassifierFunc(func(context.Context, image.Image, orientation.Correction) (inference.Result, error) {
		return fixedResult(inference.Prediction{Label: "x", Confidence: 0.5}), nil
	})

	sink := &recordingSink{}
	p := New(cls, orientation.NewTracker(orientation.Portrait), startDispatcher(t, 2), sink, Options{})

	var want []uint64
	for seq := uint64(1); seq <= 50; seq++ {
		if p.Submit(testFrame(seq)) {
			want = append(want, seq)
		}
		if seq%3 == 0 {
			waitIdle(t, p)
		}
	}
	waitIdle(t, p)
	require.Eventually(t, func() bool { return len(sink.Results()) == len(want) }, waitFor, time.Millisecond)

	var got []uint64
	for _, r := range sink.Results() {
		got = append(got, r.Seq)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delivery order mismatch (-want +got):\n%s", diff)
	}
}

func TestSameFrameTwiceGivesSameResult(t *testing.T) {
	cls := inference.ClassifierFunc(func(_ context.Context, img image.Image, c orientation.Correction) (inference.Result, error) {
		r, _, _, _ := img.At(0, 0).RGBA()
		return fixedResult(
			inference.Prediction{Label: "red", Confidence: float32(r>>8) / 255},
			inference.Prediction{Label: c.String(), Confidence: 0.5},
		), nil
	})

	sink := &recordingSink{}
	p := New(cls, orientation.NewTracker(orientation.Portrait), startDispatcher(t, 8), sink, Options{})

	frame := testFrame(200)
	require.True(t, p.Submit(frame))
	waitIdle(t, p)
	require.True(t, p.Submit(frame))
	require.Eventually(t, func() bool { return len(sink.Results()) == 2 }, waitFor, time.Millisecond)

	results := sink.Results()
	assert.Equal(t, results[0].Predictions, results[1].Predictions)
}

func TestCloseDetachesSink(t *testing.T) {
	release := make(chan struct{})
	cls := inference.ClassifierFunc(func(context.Context, image.Image, orientation.Correction) (inference.Result, error) {
		<-release
		return fixedResult(inference.Prediction{Label: "late", Confidence: 0.9}), nil
	})

	sink := &recordingSink{}
	d := startDispatcher(t, 8)
	p := New(cls, orientation.NewTracker(orientation.Portrait), d, sink, Options{})

	require.True(t, p.Submit(testFrame(1)))
	p.Close()
	assert.False(t, p.Submit(testFrame(2)))

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, p.Wait(ctx))

	// Let the posted delivery run.
	done := make(chan struct{})
	require.True(t, d.Post(func() { close(done) }))
	<-done

	assert.Empty(t, sink.Events())
	assert.Equal(t, uint64(0), p.Stats().Delivered)
}

func TestLoadingIndicatorPolicy(t *testing.T) {
	var n atomic.Int32
	cls := inference.ClassifierFunc(func(context.Context, image.Image, orientation.Correction) (inference.Result, error) {
		if n.Add(1) == 1 {
			return inference.Result{}, errors.New("first call fails")
		}
		return fixedResult(inference.Prediction{Label: "ok", Confidence: 0.8}), nil
	})

	sink := &recordingSink{}
	p := New(cls, orientation.NewTracker(orientation.Portrait), startDispatcher(t, 8), sink, Options{})

	frames := make(chan capture.Frame)
	runDone := make(chan struct{})
	go func() {
		p.Run(context.Background(), frames)
		close(runDone)
	}()

	for seq := uint64(1); seq <= 3; seq++ {
		frames <- testFrame(seq)
		waitSettled(t, p, seq)
	}
	close(frames)
	<-runDone

	require.Eventually(t, func() bool { return len(sink.Results()) == 2 }, waitFor, time.Millisecond)
	assert.Equal(t, []string{"show", "display:2", "hide:true", "display:3"}, sink.Events())
}

func TestTimeoutHoldsInFlightUntilCallReturns(t *testing.T) {
	block := make(chan struct{})
	var running, peak atomic.Int32
	cls := inference.ClassifierFunc(func(context.Context, image.Image, orientation.Correction) (inference.Result, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-block
		return fixedResult(inference.Prediction{Label: "late", Confidence: 0.9}), nil
	})

	sink := &recordingSink{}
	p := New(cls, orientation.NewTracker(orientation.Portrait), startDispatcher(t, 8), sink, Options{Timeout: 5 * time.Millisecond})

	require.True(t, p.Submit(testFrame(1)))
	require.Eventually(t, func() bool { return p.Stats().TimedOut == 1 }, waitFor, time.Millisecond)

	for seq := uint64(2); seq <= 20; seq++ {
		assert.False(t, p.Submit(testFrame(seq)))
		time.Sleep(time.Millisecond)
	}
	assert.True(t, p.InFlight())
	assert.Equal(t, int32(1), running.Load())

	close(block)
	waitIdle(t, p)

	s := p.Stats()
	assert.Equal(t, uint64(1), s.Accepted)
	assert.Equal(t, uint64(19), s.Dropped)
	assert.Equal(t, uint64(1), s.Failed)
	assert.Equal(t, uint64(1), s.TimedOut)
	assert.Equal(t, int32(1), peak.Load())
	assert.Empty(t, sink.Events())

	assert.True(t, p.Submit(testFrame(21)))
	waitIdle(t, p)
	assert.Equal(t, int32(1), peak.Load())
}

func TestRunCallsOnFrameForEveryFrame(t *testing.T) {
	release := make(chan struct{})
	cls := inference.ClassifierFunc(func(context.Context, image.Image, orientation.Correction) (inference.Result, error) {
		<-release
		return fixedResult(), nil
	})

	var seen []uint64
	p := New(cls, orientation.NewTracker(orientation.Portrait), startDispatcher(t, 8), &recordingSink{}, Options{
		OnFrame: func(f capture.Frame) { seen = append(seen, f.Seq) },
	})

	frames := make(chan capture.Frame, 4)
	for seq := uint64(1); seq <= 4; seq++ {
		frames <- testFrame(seq)
	}
	close(frames)

	p.Run(context.Background(), frames)
	close(release)
	waitIdle(t, p)

	assert.Equal(t, []uint64{1, 2, 3, 4}, seen)
	assert.Equal(t, Stats{Submitted: 4, Accepted: 1, Dropped: 3, Delivered: 1}, p.Stats())
}

type countingTimer struct {
	mu    sync.Mutex
	names []string
}

func (c *countingTimer) StartOperation(name string) func() {
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.names = append(c.names, name)
	}
}

func TestCollectMetricsAndTimer(t *testing.T) {
	cls := inference.ClassifierFunc(func(context.Context, image.Image, orientation.Correction) (inference.Result, error) {
		return fixedResult(inference.Prediction{Label: "x", Confidence: 0.5}), nil
	})
	timer := &countingTimer{}
	sink := &recordingSink{}
	p := New(cls, orientation.NewTracker(orientation.Portrait), startDispatcher(t, 8), sink, Options{Timer: timer})

	require.True(t, p.Submit(testFrame(1)))
	waitIdle(t, p)
	require.Eventually(t, func() bool { return len(sink.Results()) == 1 }, waitFor, time.Millisecond)

	m := p.CollectMetrics()
	assert.Equal(t, 1.0, m["pipeline_submitted"])
	assert.Equal(t, 1.0, m["pipeline_delivered"])
	assert.Equal(t, 0.0, m["pipeline_in_flight"])

	timer.mu.Lock()
	defer timer.mu.Unlock()
	assert.Equal(t, []string{"classify"}, timer.names)
}
