// Package config - YAML configuration for the live classification service.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Camera   CameraConfig   `yaml:"camera"`
	Model    ModelConfig    `yaml:"model"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Display  DisplayConfig  `yaml:"display"`
	Profiler ProfilerConfig `yaml:"profiler"`
}

// CameraConfig contains frame source settings.
type CameraConfig struct {
	// DeviceID is the video capture device index. Ignored when Path or Directory is set.
	DeviceID int `yaml:"device_id"`
	// Path is an optional video file or stream URL opened instead of a device.
	Path string `yaml:"path"`
	// Directory replays numbered frame images (frame-0001.jpg, ...) instead of a camera.
	Directory string `yaml:"directory"`
	// FPS is the replay rate for Directory sources.
	FPS int `yaml:"fps"`
	// BufferFrames is the capacity of the channel between the source and the pipeline.
	BufferFrames int `yaml:"buffer_frames"`
	// Orientation is the device orientation assumed at startup.
	Orientation string `yaml:"orientation"`
}

// ModelConfig contains classifier settings.
type ModelConfig struct {
	Path        string `yaml:"path"`
	LabelsPath  string `yaml:"labels_path"`
	LibraryPath string `yaml:"library_path"`
	Provider    string `yaml:"provider"`
	// ProviderOptions are passed to the execution provider (OpenVINO, CUDA).
	ProviderOptions map[string]string `yaml:"provider_options"`
	// Threads sets the intra-op thread count. 0 lets ONNX Runtime decide.
	Threads    int       `yaml:"threads"`
	InputName  string    `yaml:"input_name"`
	OutputName string    `yaml:"output_name"`
	InputSize  int       `yaml:"input_size"`
	Softmax    bool      `yaml:"softmax"`
	Mean       []float32 `yaml:"mean"`
	Std        []float32 `yaml:"std"`
}

// PipelineConfig contains result filtering and inference scheduling settings.
type PipelineConfig struct {
	TopN          int           `yaml:"top_n"`
	MinConfidence float32       `yaml:"min_confidence"`
	Timeout       time.Duration `yaml:"timeout"`
	UIQueue       int           `yaml:"ui_queue"`
}

// DisplayConfig contains presentation settings.
type DisplayConfig struct {
	Window bool   `yaml:"window"`
	Title  string `yaml:"title"`
}

// ProfilerConfig contains runtime profiler settings.
type ProfilerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ReportInterval time.Duration `yaml:"report_interval"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

// Default returns the configuration used when a field is absent from the file.
//
// Returns:
//   - Config: The default configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Camera: CameraConfig{
			DeviceID:     0,
			FPS:          30,
			BufferFrames: 1,
			Orientation:  "portrait",
		},
		Model: ModelConfig{
			Provider:  "cpu",
			InputSize: 224,
			Softmax:   true,
		},
		Pipeline: PipelineConfig{
			TopN:          11,
			MinConfidence: 0.1,
			UIQueue:       16,
		},
		Display: DisplayConfig{
			Window: false,
			Title:  "live-classify",
		},
		Profiler: ProfilerConfig{
			Enabled:        false,
			ReportInterval: 10 * time.Second,
			SampleInterval: 500 * time.Millisecond,
		},
	}
}

// Read parses a YAML configuration file on top of Default() without validating it,
// so command line overrides can be applied first.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Decode(data)
}

// Decode decodes YAML bytes on top of Default().
func Decode(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	return &cfg, nil
}
