// Package providers - ONNX Runtime execution provider selection.
package providers

import (
	"fmt"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

const (
	// CPUProviderBackend uses the default CPU execution provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// ParseBackend converts a config provider name into a ProviderBackend.
// An empty name selects the CPU provider.
func ParseBackend(name string) (ProviderBackend, error) {
	switch b := ProviderBackend(strings.ToLower(strings.TrimSpace(name))); b {
	case "":
		return CPUProviderBackend, nil
	case CPUProviderBackend, CoreMLProviderBackend, CUDAProviderBackend, OpenVINOProviderBackend:
		return b, nil
	default:
		return "", fmt.Errorf("unsupported provider backend: %q", name)
	}
}

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	// Backend returns the provider backend.
	Backend() ProviderBackend
	// Append registers the provider on the session options.
	Append(options *ort.SessionOptions) error
}

// CPUProvider is the default provider. ONNX Runtime always has it, so Append is a no-op.
type CPUProvider struct{}

// Backend returns the backend of the CPU provider.
func (CPUProvider) Backend() ProviderBackend { return CPUProviderBackend }

// Append registers nothing; the CPU provider is implicit.
func (CPUProvider) Append(*ort.SessionOptions) error { return nil }

// NewProvider creates a provider for the backend.
//
// Arguments:
//   - backend: The backend to use.
//   - options: Provider specific key/value options from the config file.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the options cannot be parsed for the backend.
func NewProvider(backend ProviderBackend, options map[string]string) (ExecutionProvider, error) {
	switch backend {
	case CPUProviderBackend, "":
		return CPUProvider{}, nil
	case CoreMLProviderBackend:
		return NewCoreMLProvider(CoreMLOptionsFromMap(options)), nil
	case OpenVINOProviderBackend:
		return NewOpenVINOProvider(OpenVINOOptionsFromMap(options)), nil
	case CUDAProviderBackend:
		opts, err := CUDAOptionsFromMap(options)
		if err != nil {
			return nil, err
		}
		return NewCUDAProvider(opts), nil
	default:
		return nil, fmt.Errorf("no matching provider backend registered: %s", backend)
	}
}
