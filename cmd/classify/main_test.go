package main

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/nvr-ai/live-classify/capture"
	"github.com/nvr-ai/live-classify/inference"
	"github.com/nvr-ai/live-classify/orientation"
	"github.com/nvr-ai/live-classify/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, cls inference.Classifier) *pipeline.Pipeline {
	t.Helper()
	d := pipeline.NewDispatcher(4)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(cancel)
	return pipeline.New(cls, orientation.NewTracker(orientation.Portrait), d, nil, pipeline.Options{})
}

func TestShutdownSkipsReleaseWhileClassificationStalled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	p := newTestPipeline(t, inference.ClassifierFunc(func(context.Context, image.Image, orientation.Correction) (inference.Result, error) {
		<-block
		return inference.Result{}, nil
	}))
	require.True(t, p.Submit(capture.Frame{Seq: 1, Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}))

	released := false
	done := make(chan bool)
	go func() { done <- shutdown(p, 20*time.Millisecond, func() { released = true }) }()

	select {
	case ok := <-done:
		assert.False(t, ok)
		assert.False(t, released)
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown blocked on a stalled classification")
	}
}

func TestShutdownReleasesWhenIdle(t *testing.T) {
	p := newTestPipeline(t, inference.ClassifierFunc(func(context.Context, image.Image, orientation.Correction) (inference.Result, error) {
		return inference.Result{}, nil
	}))

	released := false
	assert.True(t, shutdown(p, time.Second, func() { released = true }))
	assert.True(t, released)
	assert.False(t, p.Submit(capture.Frame{Seq: 2}))
}
