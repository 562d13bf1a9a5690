package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	DeviceID string
	// Overrides the accelerator hardware type (CPU, GPU, NPU). Empty keeps the build default.
	DeviceType string
	// FP32, FP16 or ACCURACY.
	Precision string
	// Overrides the accelerator default number of threads.
	NumOfThreads string
	// Rewrites dynamic shaped models to static shape at runtime.
	DisableDynamicShapes string
}

// OpenVINOOptionsFromMap reads OpenVINO options from config key/value pairs.
func OpenVINOOptionsFromMap(m map[string]string) OpenVINOOptions {
	return OpenVINOOptions{
		DeviceID:             m["device_id"],
		DeviceType:           m["device_type"],
		Precision:            m["precision"],
		NumOfThreads:         m["num_of_threads"],
		DisableDynamicShapes: m["disable_dynamic_shapes"],
	}
}

// ToMap returns the native option map, skipping unset values so OpenVINO keeps its defaults.
func (o OpenVINOOptions) ToMap() map[string]string {
	config := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			config[k] = v
		}
	}
	set("device_id", o.DeviceID)
	set("device_type", o.DeviceType)
	set("precision", o.Precision)
	set("num_of_threads", o.NumOfThreads)
	set("disable_dynamic_shapes", o.DisableDynamicShapes)
	return config
}

// OpenVINOProvider implements the ExecutionProvider interface.
type OpenVINOProvider struct {
	options OpenVINOOptions
}

// NewOpenVINOProvider creates a new OpenVINO provider.
func NewOpenVINOProvider(options OpenVINOOptions) *OpenVINOProvider {
	return &OpenVINOProvider{options: options}
}

// Backend returns the backend of the OpenVINO provider.
func (p *OpenVINOProvider) Backend() ProviderBackend {
	return OpenVINOProviderBackend
}

// Append enables OpenVINO on the session options.
func (p *OpenVINOProvider) Append(options *ort.SessionOptions) error {
	if err := options.AppendExecutionProviderOpenVINO(p.options.ToMap()); err != nil {
		return fmt.Errorf("error enabling OpenVINO: %w", err)
	}
	return nil
}
