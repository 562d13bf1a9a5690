package inference

import (
	"fmt"
	"testing"

	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// descendingScores returns [0.9, 0.85, ..., 0.05] and matching labels.
func descendingScores(n int) ([]float32, []string) {
	scores := make([]float32, n)
	labels := make([]string, n)
	for i := range scores {
		scores[i] = 0.9 - 0.05*float32(i)
		labels[i] = fmt.Sprintf("label-%02d", i)
	}
	return scores, labels
}

func TestRankTwentyLabels(t *testing.T) {
	scores, labels := descendingScores(20)
	require.InDelta(t, 0.05, scores[19], 1e-6)

	preds := Rank(scores, labels, DefaultTopN, DefaultMinConfidence)

	require.Len(t, preds, DefaultTopN)
	for i, p := range preds {
		assert.Greater(t, p.Confidence, DefaultMinConfidence)
		assert.Equal(t, labels[i], p.Label)
		if i > 0 {
			assert.GreaterOrEqual(t, preds[i-1].Confidence, p.Confidence)
		}
	}
	assert.InDelta(t, 0.4, preds[len(preds)-1].Confidence, 1e-6)
}

func TestRankThresholdIsExclusive(t *testing.T) {
	scores := []float32{0.1, 0.5, 0.10001, 0.05}
	preds := Rank(scores, []string{"a", "b", "c", "d"}, 11, 0.1)

	want := []Prediction{{"b", 0.5}, {"c", 0.10001}}
	if diff := cmp.Diff(want, preds); diff != "" {
		t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
	}
}

func TestRankIsStableOnTies(t *testing.T) {
	scores := []float32{0.3, 0.7, 0.3, 0.7, 0.3}
	labels := []string{"a", "b", "c", "d", "e"}

	want := []Prediction{{"b", 0.7}, {"d", 0.7}, {"a", 0.3}, {"c", 0.3}}
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(want, Rank(scores, labels, 4, 0.1)); diff != "" {
			t.Fatalf("Rank() mismatch on run %d (-want +got):\n%s", i, diff)
		}
	}
}

func TestRankEdgeCases(t *testing.T) {
	assert.Nil(t, Rank([]float32{0.9}, nil, 0, 0.1))
	assert.Empty(t, Rank(nil, nil, 5, 0.1))
	assert.Empty(t, Rank([]float32{0.01, 0.02}, nil, 5, 0.1))

	preds := Rank([]float32{math32.NaN(), 0.8, 0.6}, []string{"nan", "", "x"}[:2], 5, 0.1)
	want := []Prediction{{"class_1", 0.8}, {"class_2", 0.6}}
	if diff := cmp.Diff(want, preds); diff != "" {
		t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	in := []Prediction{{"low", 0.05}, {"mid", 0.4}, {"high", 0.9}, {"edge", 0.1}, {"mid2", 0.4}}
	orig := append([]Prediction(nil), in...)

	got := Filter(in, 2, 0.1)

	want := []Prediction{{"high", 0.9}, {"mid", 0.4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, orig, in)
	assert.Nil(t, Filter(in, 0, 0.1))
}

func TestSoftmax(t *testing.T) {
	logits := []float32{1, 2, 3, 1000}
	Softmax(logits)

	var sum float32
	for _, v := range logits {
		assert.False(t, math32.IsNaN(v))
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.InDelta(t, 1.0, logits[3], 1e-5)

	even := []float32{0, 0, 0, 0}
	Softmax(even)
	assert.InDeltaSlice(t, []float32{0.25, 0.25, 0.25, 0.25}, even, 1e-6)

	Softmax(nil)
}

func TestResultTop(t *testing.T) {
	_, ok := Result{}.Top()
	assert.False(t, ok)

	p, ok := Result{Predictions: []Prediction{{"cat", 0.8}, {"dog", 0.2}}}.Top()
	require.True(t, ok)
	assert.Equal(t, "cat", p.Label)
}
