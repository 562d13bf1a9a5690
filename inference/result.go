// Package inference - Image classification behind a single call.
package inference

import (
	"fmt"
	"sort"
	"time"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/live-classify/orientation"
)

const (
	// DefaultTopN is the number of predictions kept per result.
	DefaultTopN = 11
	// DefaultMinConfidence is the exclusive lower bound on kept confidences.
	DefaultMinConfidence float32 = 0.1
)

// Prediction is one ranked label.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// Result is a ranked classification of one frame.
//
// Predictions are sorted by descending confidence. A Result is never modified
// after it is produced; consumers replace their previous result with it.
type Result struct {
	Predictions []Prediction           `json:"predictions"`
	Seq         uint64                 `json:"seq"`
	Correction  orientation.Correction `json:"correction"`
	Duration    time.Duration          `json:"duration"`
}

// Top returns the highest confidence prediction.
func (r Result) Top() (Prediction, bool) {
	if len(r.Predictions) == 0 {
		return Prediction{}, false
	}
	return r.Predictions[0], true
}

// Rank turns raw model scores into a ranked, filtered prediction list.
//
// Scores above minConfidence are kept, sorted descending, and truncated to topN.
// Ties keep index order so equal inputs always rank the same way. Scores beyond
// the end of labels are named "class_<index>".
//
// Arguments:
//   - scores: One confidence per class index.
//   - labels: Class names by index.
//   - topN: The maximum number of predictions to return.
//   - minConfidence: Scores must be strictly greater than this to be kept.
//
// Returns:
//   - []Prediction: The ranked predictions.
func Rank(scores []float32, labels []string, topN int, minConfidence float32) []Prediction {
	if topN <= 0 {
		return nil
	}

	idx := make([]int, 0, len(scores))
	for i, s := range scores {
		if s > minConfidence && !math32.IsNaN(s) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if len(idx) > topN {
		idx = idx[:topN]
	}

	out := make([]Prediction, len(idx))
	for i, j := range idx {
		out[i] = Prediction{Label: labelAt(labels, j), Confidence: scores[j]}
	}
	return out
}

// Filter applies top-N and threshold rules to predictions that are already labeled.
// The input slice is not modified.
func Filter(preds []Prediction, topN int, minConfidence float32) []Prediction {
	if topN <= 0 {
		return nil
	}
	out := make([]Prediction, 0, min(len(preds), topN))
	for _, p := range preds {
		if p.Confidence > minConfidence && !math32.IsNaN(p.Confidence) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Confidence > out[b].Confidence
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func labelAt(labels []string, i int) string {
	if i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return fmt.Sprintf("class_%d", i)
}

// Softmax converts logits into probabilities in place.
//
// The maximum logit is subtracted first so large logits do not overflow.
func Softmax(logits []float32) {
	if len(logits) == 0 {
		return
	}
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		maxLogit = math32.Max(maxLogit, v)
	}
	var sum float32
	for i, v := range logits {
		e := math32.Exp(v - maxLogit)
		logits[i] = e
		sum += e
	}
	if sum == 0 {
		return
	}
	for i := range logits {
		logits[i] /= sum
	}
}
