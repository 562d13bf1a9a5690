// Package presentation - Consumers of classification results.
package presentation

import (
	"strings"
	"sync"

	"github.com/nvr-ai/live-classify/inference"
	"github.com/nvr-ai/live-classify/internal/log"
)

// Sink renders classification results and the loading indicator.
//
// Every method is called from the single presentation goroutine. A Sink never
// calls back into the pipeline.
type Sink interface {
	// Display replaces the shown results with results.
	Display(results inference.Result)
	// ShowLoading shows the loading indicator.
	ShowLoading()
	// HideLoading hides the loading indicator. When permanently is true later
	// ShowLoading calls are ignored.
	HideLoading(permanently bool)
}

// LoadingState tracks a loading indicator that can be hidden for good.
// It is embedded by sinks; it is not safe for concurrent use.
type LoadingState struct {
	visible bool
	retired bool
}

// Show makes the indicator visible unless it was hidden permanently.
// It reports whether the state changed.
func (s *LoadingState) Show() bool {
	if s.retired || s.visible {
		return false
	}
	s.visible = true
	return true
}

// Hide hides the indicator. It reports whether the state changed.
func (s *LoadingState) Hide(permanently bool) bool {
	changed := s.visible
	s.visible = false
	if permanently {
		s.retired = true
	}
	return changed
}

// Visible reports whether the indicator is shown.
func (s *LoadingState) Visible() bool {
	return s.visible
}

// LogSink writes results to the structured log.
type LogSink struct {
	mu      sync.Mutex
	loading LoadingState
	last    inference.Result
	shown   uint64
}

// NewLogSink creates a sink that logs every displayed result.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Display logs the result as one line of label=confidence pairs.
func (s *LogSink) Display(results inference.Result) {
	s.mu.Lock()
	s.last = results
	s.shown++
	s.mu.Unlock()

	log.Info("🏷️ classification",
		"seq", results.Seq,
		"correction", results.Correction.String(),
		"duration", results.Duration,
		"predictions", FormatPredictions(results.Predictions))
}

// ShowLoading logs the loading indicator becoming visible.
func (s *LogSink) ShowLoading() {
	s.mu.Lock()
	changed := s.loading.Show()
	s.mu.Unlock()
	if changed {
		log.Info("⏳ waiting for first classification")
	}
}

// HideLoading logs the loading indicator being hidden.
func (s *LogSink) HideLoading(permanently bool) {
	s.mu.Lock()
	changed := s.loading.Hide(permanently)
	s.mu.Unlock()
	if changed {
		log.Debug("loading indicator hidden", "permanently", permanently)
	}
}

// Last returns the most recently displayed result and how many results were displayed.
func (s *LogSink) Last() (inference.Result, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.shown
}

// FormatPredictions renders predictions as "label 87.5%, other 10.2%".
func FormatPredictions(preds []inference.Prediction) string {
	var b strings.Builder
	for i, p := range preds {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(FormatPrediction(p))
	}
	return b.String()
}
