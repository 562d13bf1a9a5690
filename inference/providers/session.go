package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// Session represents a model session from the onnxruntime with one bound input
// and one bound output tensor.
type Session struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
}

// Run executes the model on the data currently held in Input.
func (s *Session) Run() error {
	return s.Session.Run()
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	if s.Output != nil {
		s.Output.Destroy()
		s.Output = nil
	}
	if s.Session != nil {
		err := s.Session.Destroy()
		s.Session = nil
		if err != nil {
			return fmt.Errorf("error destroying ORT session: %w", err)
		}
	}
	return nil
}

// NewSessionArgs represents the arguments for creating a new classifier session.
type NewSessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// Input node name and shape, e.g. "input" and [1, 3, 224, 224].
	InputName  string
	InputShape ort.Shape
	// Output node name and shape, e.g. "output" and [1, 1000].
	OutputName  string
	OutputShape ort.Shape
	// Intra-op threads. 0 lets ONNX Runtime decide.
	Threads int
}

// NewSession creates a new ONNX Runtime session with preallocated input and output tensors.
//
// Order of operations:
//  1. Tensor allocation: fixed-shape buffers for input/output data.
//  2. Session options: threading and graph optimization level.
//  3. Execution provider: CoreML, CUDA or OpenVINO when configured.
//  4. Session creation: loads the model and binds the tensors.
//
// The environment must already be initialized with InitEnvironment.
//
// Arguments:
//   - provider: The execution provider for the session.
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The session holding the native session and its tensors.
//   - error: An error if the session creation fails.
func NewSession(provider ExecutionProvider, args NewSessionArgs) (*Session, error) {
	input, err := ort.NewEmptyTensor[float32](args.InputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](args.OutputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}
	cleanup := func() {
		input.Destroy()
		output.Destroy()
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("error creating ORT session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(args.Threads); err != nil {
		cleanup()
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		cleanup()
		return nil, fmt.Errorf("error setting graph optimization level: %w", err)
	}
	if provider != nil {
		if err := provider.Append(options); err != nil {
			cleanup()
			return nil, err
		}
	}

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		[]string{args.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("error creating ORT session: %w", err)
	}

	return &Session{
		Session: session,
		Input:   input,
		Output:  output,
	}, nil
}

// ModelIO describes the first input and output of a model file.
type ModelIO struct {
	InputName   string
	InputShape  ort.Shape
	OutputName  string
	OutputShape ort.Shape
}

// InspectModel reads the input and output names and shapes from a model file.
// Dynamic dimensions (-1) are reported as-is.
func InspectModel(modelPath string) (ModelIO, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return ModelIO{}, fmt.Errorf("error reading model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return ModelIO{}, fmt.Errorf("model %s has %d inputs and %d outputs", modelPath, len(inputs), len(outputs))
	}
	return ModelIO{
		InputName:   inputs[0].Name,
		InputShape:  inputs[0].Dimensions,
		OutputName:  outputs[0].Name,
		OutputShape: outputs[0].Dimensions,
	}, nil
}
