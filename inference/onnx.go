package inference

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/nvr-ai/live-classify/images"
	"github.com/nvr-ai/live-classify/inference/providers"
	"github.com/nvr-ai/live-classify/internal/log"
	"github.com/nvr-ai/live-classify/orientation"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXOptions configures an ONNXClassifier.
type ONNXOptions struct {
	// ModelPath is the ONNX model file.
	ModelPath string
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string
	// Backend selects the execution provider.
	Backend providers.ProviderBackend
	// ProviderOptions are passed to the execution provider.
	ProviderOptions map[string]string
	// Threads is the intra-op thread count. 0 lets ONNX Runtime decide.
	Threads int
	// InputName and OutputName override the node names read from the model.
	InputName  string
	OutputName string
	// InputSize is the square edge length the model expects.
	InputSize int
	// Labels names class indices.
	Labels []string
	// Softmax converts raw logits into probabilities before ranking.
	Softmax bool
	// Normalization is applied to [0, 1] pixel values.
	Normalization images.Normalization
	// TopN and MinConfidence bound the returned predictions.
	TopN          int
	MinConfidence float32
}

// ONNXClassifier runs an image classification model with ONNX Runtime.
//
// The session tensors are shared, so calls to Classify are serialized.
type ONNXClassifier struct {
	mu      sync.Mutex
	session *providers.Session
	opts    ONNXOptions
	classes int
	closed  bool
}

// NewONNXClassifier loads the model once.
//
// Every failure wraps ErrModelLoad: the process has no purpose without the model.
//
// Arguments:
//   - opts: The classifier options.
//
// Returns:
//   - *ONNXClassifier: The loaded classifier.
//   - error: An error wrapping ErrModelLoad.
func NewONNXClassifier(opts ONNXOptions) (*ONNXClassifier, error) {
	if opts.ModelPath == "" {
		return nil, fmt.Errorf("%w: model path is empty", ErrModelLoad)
	}
	if opts.InputSize <= 0 {
		return nil, fmt.Errorf("%w: invalid input size %d", ErrModelLoad, opts.InputSize)
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	libPath, err := providers.GetSharedLibPath(opts.LibraryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if err := providers.InitEnvironment(libPath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	modelIO, err := providers.InspectModel(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if opts.InputName != "" {
		modelIO.InputName = opts.InputName
	}
	if opts.OutputName != "" {
		modelIO.OutputName = opts.OutputName
	}

	outputShape, classes, err := classifierOutputShape(modelIO.OutputShape)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if len(opts.Labels) > 0 && len(opts.Labels) != classes {
		log.Warn("⚠️ label count does not match model classes",
			"labels", len(opts.Labels), "classes", classes)
	}

	provider, err := providers.NewProvider(opts.Backend, opts.ProviderOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	size := int64(opts.InputSize)
	session, err := providers.NewSession(provider, providers.NewSessionArgs{
		ModelPath:   opts.ModelPath,
		InputName:   modelIO.InputName,
		InputShape:  ort.NewShape(1, 3, size, size),
		OutputName:  modelIO.OutputName,
		OutputShape: outputShape,
		Threads:     opts.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	log.Info("✅ model loaded",
		"path", opts.ModelPath,
		"provider", provider.Backend(),
		"input", modelIO.InputName,
		"output", modelIO.OutputName,
		"classes", classes)

	return &ONNXClassifier{
		session: session,
		opts:    opts,
		classes: classes,
	}, nil
}

// classifierOutputShape fixes the batch dimension to 1 and returns the class count.
func classifierOutputShape(shape ort.Shape) (ort.Shape, int, error) {
	if len(shape) == 0 {
		return nil, 0, errors.New("model output has no dimensions")
	}
	out := make(ort.Shape, len(shape))
	copy(out, shape)
	if out[0] <= 0 {
		out[0] = 1
	}
	if out[0] != 1 {
		return nil, 0, errors.Errorf("model output batch must be 1, got %d", out[0])
	}
	classes := int64(1)
	for _, d := range out[1:] {
		if d <= 0 {
			return nil, 0, errors.Errorf("model output shape %v has a dynamic class dimension", shape)
		}
		classes *= d
	}
	return out, int(classes), nil
}

// Classes returns the number of classes the model scores.
func (c *ONNXClassifier) Classes() int {
	return c.classes
}

// Classify runs the model over one frame.
func (c *ONNXClassifier) Classify(ctx context.Context, img image.Image, correction orientation.Correction) (Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}

	prepared, err := Prepare(img, correction, c.opts.InputSize)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Result{}, fmt.Errorf("%w: %w", ErrInference, ErrClosed)
	}
	if err := images.FillTensorCHW(prepared, c.session.Input.GetData(), c.opts.InputSize, c.opts.Normalization); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if err := c.session.Run(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInference, errors.Wrap(err, "session run"))
	}

	scores := make([]float32, c.classes)
	copy(scores, c.session.Output.GetData())
	if c.opts.Softmax {
		Softmax(scores)
	}

	return Result{
		Predictions: Rank(scores, c.opts.Labels, c.opts.TopN, c.opts.MinConfidence),
		Correction:  correction,
		Duration:    time.Since(start),
	}, nil
}

// Close releases the session. Classify returns ErrClosed afterwards.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.session.Close()
}
