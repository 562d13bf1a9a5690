package providers

import (
	"fmt"
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int
	// The size limit of the device memory arena in bytes. 0 leaves it unlimited.
	GPUMemLimit int64
	// The type of search done for cuDNN convolution algorithms.
	// 0: EXHAUSTIVE, 1: HEURISTIC, 2: DEFAULT
	CudnnConvAlgoSearch int
	// Whether to do copies in the default stream or use separate streams.
	DoCopyInDefaultStream bool
}

// CUDAOptionsFromMap reads CUDA options from config key/value pairs.
func CUDAOptionsFromMap(m map[string]string) (CUDAOptions, error) {
	opts := CUDAOptions{DoCopyInDefaultStream: true}
	var err error
	if v, ok := m["device_id"]; ok {
		if opts.DeviceID, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("invalid cuda device_id %q: %w", v, err)
		}
	}
	if v, ok := m["gpu_mem_limit"]; ok {
		if opts.GPUMemLimit, err = strconv.ParseInt(v, 10, 64); err != nil {
			return opts, fmt.Errorf("invalid cuda gpu_mem_limit %q: %w", v, err)
		}
	}
	if v, ok := m["cudnn_conv_algo_search"]; ok {
		if opts.CudnnConvAlgoSearch, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("invalid cuda cudnn_conv_algo_search %q: %w", v, err)
		}
		if _, ok := cudnnAlgoSearchNames[opts.CudnnConvAlgoSearch]; !ok {
			return opts, fmt.Errorf("invalid cuda cudnn_conv_algo_search %q: must be 0 (exhaustive), 1 (heuristic) or 2 (default)", v)
		}
	}
	if v, ok := m["do_copy_in_default_stream"]; ok {
		if opts.DoCopyInDefaultStream, err = strconv.ParseBool(v); err != nil {
			return opts, fmt.Errorf("invalid cuda do_copy_in_default_stream %q: %w", v, err)
		}
	}
	return opts, nil
}

// ToMap returns the native option map.
func (o CUDAOptions) ToMap() map[string]string {
	config := map[string]string{
		"device_id":                 strconv.Itoa(o.DeviceID),
		"cudnn_conv_algo_search":    cudnnAlgoSearchNames[o.CudnnConvAlgoSearch],
		"do_copy_in_default_stream": strconv.FormatBool(o.DoCopyInDefaultStream),
	}
	if o.GPUMemLimit > 0 {
		config["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	return config
}

var cudnnAlgoSearchNames = map[int]string{
	0: "EXHAUSTIVE",
	1: "HEURISTIC",
	2: "DEFAULT",
}

// CUDAProvider implements the ExecutionProvider interface.
type CUDAProvider struct {
	options CUDAOptions
}

// NewCUDAProvider creates a new CUDA provider.
func NewCUDAProvider(options CUDAOptions) *CUDAProvider {
	return &CUDAProvider{options: options}
}

// Backend returns the backend of the CUDA provider.
func (p *CUDAProvider) Backend() ProviderBackend {
	return CUDAProviderBackend
}

// Append enables CUDA on the session options.
func (p *CUDAProvider) Append(options *ort.SessionOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("error creating CUDA options: %w", err)
	}
	defer cuda.Destroy()

	if err := cuda.Update(p.options.ToMap()); err != nil {
		return fmt.Errorf("error converting CUDA options: %w", err)
	}
	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("error enabling CUDA: %w", err)
	}
	return nil
}
