package inference

import (
	"context"
	"image"

	"github.com/nvr-ai/live-classify/images"
	"github.com/nvr-ai/live-classify/orientation"
	"github.com/pkg/errors"
)

var (
	// ErrModelLoad is returned when the model or its runtime cannot be loaded.
	// Callers treat it as fatal.
	ErrModelLoad = errors.New("model load failed")
	// ErrInference is returned when a single classification fails.
	// Callers drop the frame and move on.
	ErrInference = errors.New("inference failed")
	// ErrClosed is returned by Classify after Close.
	ErrClosed = errors.New("classifier closed")
)

// Classifier wraps a pre-trained image classification model.
type Classifier interface {
	// Classify runs one classification pass over img after applying the correction.
	//
	// Arguments:
	//   - ctx: Checked before the model runs. A running model call is not interrupted.
	//   - img: The frame to classify.
	//   - correction: The orientation correction in effect for this frame.
	//
	// Returns:
	//   - Result: Predictions sorted descending and limited to the configured top-N.
	//   - error: An error wrapping ErrInference.
	Classify(ctx context.Context, img image.Image, correction orientation.Correction) (Result, error)
	// Close releases the model.
	Close() error
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, img image.Image, correction orientation.Correction) (Result, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, img image.Image, correction orientation.Correction) (Result, error) {
	return f(ctx, img, correction)
}

// Close does nothing.
func (f ClassifierFunc) Close() error { return nil }

// Prepare rotates img by the correction and center-crops it to a size x size square.
//
// The same pixels and correction always produce the same output.
//
// Arguments:
//   - img: The captured frame.
//   - correction: The orientation correction.
//   - size: The model input edge length.
//
// Returns:
//   - image.Image: The prepared image.
//   - error: An error if rotation or scaling fails.
func Prepare(img image.Image, correction orientation.Correction, size int) (image.Image, error) {
	if img == nil {
		return nil, errors.New("frame has no image")
	}
	rotated, err := images.Rotate(img, correction.Rotation())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to rotate frame for %s", correction)
	}
	prepared, err := images.CenterCropScale(rotated, size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to crop frame")
	}
	return prepared, nil
}
