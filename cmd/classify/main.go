// Command classify streams camera frames through an image classifier and shows
// the top predictions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nvr-ai/live-classify/capture"
	"github.com/nvr-ai/live-classify/config"
	"github.com/nvr-ai/live-classify/images"
	"github.com/nvr-ai/live-classify/inference"
	"github.com/nvr-ai/live-classify/inference/providers"
	"github.com/nvr-ai/live-classify/internal/log"
	"github.com/nvr-ai/live-classify/orientation"
	"github.com/nvr-ai/live-classify/pipeline"
	"github.com/nvr-ai/live-classify/presentation"
	"github.com/nvr-ai/live-classify/profiler"
)

const (
	// shutdownGrace bounds how long exit waits for a classification still in flight.
	shutdownGrace = 2 * time.Second
	// keyPollInterval paces window event polling while no frames arrive.
	keyPollInterval = 50 * time.Millisecond
)

func init() {
	// HighGUI windows must be driven from the main OS thread.
	runtime.LockOSThread()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags, err := parseFlags(args, os.Stderr)
	if err != nil {
		return 2
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 2
	}
	log.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	classifier, err := newClassifier(cfg)
	if err != nil {
		log.Error("❌ failed to load model", "path", cfg.Model.Path, "error", err)
		return 1
	}
	log.Info("✅ classifier ready", "classes", classifier.Classes(), "provider", cfg.Model.Provider)

	tracker := orientation.NewTracker(orientation.Portrait)
	if d, err := orientation.ParseDeviceOrientation(cfg.Camera.Orientation); err != nil {
		log.Warn("⚠️ unknown startup orientation, using portrait", "orientation", cfg.Camera.Orientation)
	} else {
		tracker.Update(d)
	}
	rotations := make(chan orientation.DeviceOrientation, 4)
	go tracker.Subscribe(ctx, rotations)

	dispatcher := pipeline.NewDispatcher(cfg.Pipeline.UIQueue)

	opts := pipeline.Options{
		TopN:          cfg.Pipeline.TopN,
		MinConfidence: cfg.Pipeline.MinConfidence,
		Timeout:       cfg.Pipeline.Timeout,
	}

	var sink presentation.Sink
	if cfg.Display.Window {
		window := presentation.NewWindowSink(cfg.Display.Title, rotations, stop)
		defer window.Close()
		opts.OnFrame = func(f capture.Frame) {
			// Previews are best effort; results must not wait behind them.
			dispatcher.TryPost(func() { window.Preview(f) })
		}
		go dispatcher.Every(ctx, keyPollInterval, window.Poll)
		sink = window
	} else {
		sink = presentation.NewLogSink()
	}

	var prof *profiler.RuntimeProfiler
	if cfg.Profiler.Enabled {
		prof = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
			ReportInterval: cfg.Profiler.ReportInterval,
			SampleInterval: cfg.Profiler.SampleInterval,
		})
		opts.Timer = prof
	}

	p := pipeline.New(classifier, tracker, dispatcher, sink, opts)

	source := newSource(cfg, tracker.Device)
	frames, err := source.Start(ctx)
	if err != nil {
		// No frames will ever arrive; keep running so the process can still be stopped cleanly.
		log.Warn("⚠️ frame source unavailable, running without frames", "error", err)
		frames = nil
	}

	if prof != nil {
		prof.AddMetricsCollector(p)
		prof.AddMetricsCollector(profiler.CollectorFunc(func() map[string]float64 {
			s := source.Stats()
			return map[string]float64{
				"source_emitted":      float64(s.Emitted),
				"source_dropped":      float64(s.Dropped),
				"orientation_changes": float64(tracker.Changes()),
			}
		}))
		prof.Start(ctx)
		defer prof.Stop()
	}

	go func() {
		p.Run(ctx, frames)
		if ctx.Err() != nil {
			return
		}
		log.Info("frame source finished")
		waitCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
		defer cancel()
		_ = p.Wait(waitCtx)
		// Queued behind any pending result so it is displayed before exit.
		dispatcher.Post(stop)
	}()

	log.Info("🚀 classifying",
		"top_n", cfg.Pipeline.TopN,
		"min_confidence", cfg.Pipeline.MinConfidence,
		"correction", tracker.Current().String())
	dispatcher.Run(ctx)

	shutdown(p, shutdownGrace, func() {
		if err := classifier.Close(); err != nil {
			log.Warn("failed to close classifier", "error", err)
		}
		if err := providers.DestroyEnvironment(); err != nil {
			log.Warn("failed to destroy ONNX Runtime environment", "error", err)
		}
	})

	s := p.Stats()
	log.Info("👋 stopped",
		"submitted", s.Submitted,
		"accepted", s.Accepted,
		"dropped", s.Dropped,
		"failed", s.Failed,
		"delivered", s.Delivered)
	return 0
}

// shutdown detaches the pipeline and waits up to grace for a running
// classification. release runs only when nothing is running any more: a call
// stalled inside the model holds the session, and releasing it would block exit.
//
// Returns:
//   - bool: True if release ran.
func shutdown(p *pipeline.Pipeline, grace time.Duration, release func()) bool {
	p.Close()
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		log.Warn("classification still running at exit, skipping model release", "error", err)
		return false
	}
	release()
	return true
}

func newClassifier(cfg *config.Config) (*inference.ONNXClassifier, error) {
	var labels []string
	if cfg.Model.LabelsPath != "" {
		var err error
		if labels, err = inference.LoadLabels(cfg.Model.LabelsPath); err != nil {
			return nil, fmt.Errorf("%w: %w", inference.ErrModelLoad, err)
		}
	}
	backend, err := providers.ParseBackend(cfg.Model.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", inference.ErrModelLoad, err)
	}
	norm, err := images.NewNormalization(cfg.Model.Mean, cfg.Model.Std)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", inference.ErrModelLoad, err)
	}

	return inference.NewONNXClassifier(inference.ONNXOptions{
		ModelPath:       cfg.Model.Path,
		LibraryPath:     cfg.Model.LibraryPath,
		Backend:         backend,
		ProviderOptions: cfg.Model.ProviderOptions,
		Threads:         cfg.Model.Threads,
		InputName:       cfg.Model.InputName,
		OutputName:      cfg.Model.OutputName,
		InputSize:       cfg.Model.InputSize,
		Labels:          labels,
		Softmax:         cfg.Model.Softmax,
		Normalization:   norm,
		TopN:            cfg.Pipeline.TopN,
		MinConfidence:   cfg.Pipeline.MinConfidence,
	})
}

func newSource(cfg *config.Config, device capture.OrientationFunc) capture.Source {
	if cfg.Camera.Directory != "" {
		return capture.NewDirectorySource(capture.DirectoryOptions{
			Dir:         cfg.Camera.Directory,
			FPS:         cfg.Camera.FPS,
			Buffer:      cfg.Camera.BufferFrames,
			Orientation: device,
		})
	}
	return capture.NewCameraSource(capture.CameraOptions{
		DeviceID:    cfg.Camera.DeviceID,
		Path:        cfg.Camera.Path,
		Buffer:      cfg.Camera.BufferFrames,
		Orientation: device,
	})
}
