package config

import (
	"github.com/pkg/errors"
)

// Validate checks that the configuration can drive a running pipeline.
//
// Arguments:
//   - cfg: The configuration to validate.
//
// Returns:
//   - error: The first validation failure, or nil.
func Validate(cfg *Config) error {
	if cfg.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if cfg.Model.InputSize < 32 {
		return errors.Errorf("model.input_size must be >= 32, got %d", cfg.Model.InputSize)
	}
	if cfg.Model.Threads < 0 {
		return errors.Errorf("model.threads must be >= 0, got %d", cfg.Model.Threads)
	}
	if len(cfg.Model.Mean) != len(cfg.Model.Std) {
		return errors.Errorf("model.mean and model.std must have the same length (%d != %d)",
			len(cfg.Model.Mean), len(cfg.Model.Std))
	}
	if len(cfg.Model.Mean) != 0 && len(cfg.Model.Mean) != 3 {
		return errors.Errorf("model.mean must have 3 values, got %d", len(cfg.Model.Mean))
	}
	for i, s := range cfg.Model.Std {
		if s == 0 {
			return errors.Errorf("model.std[%d] must be non-zero", i)
		}
	}
	if cfg.Pipeline.TopN < 1 {
		return errors.Errorf("pipeline.top_n must be >= 1, got %d", cfg.Pipeline.TopN)
	}
	if cfg.Pipeline.MinConfidence < 0 || cfg.Pipeline.MinConfidence >= 1 {
		return errors.Errorf("pipeline.min_confidence must be in [0, 1), got %v", cfg.Pipeline.MinConfidence)
	}
	if cfg.Pipeline.Timeout < 0 {
		return errors.Errorf("pipeline.timeout must not be negative, got %v", cfg.Pipeline.Timeout)
	}
	if cfg.Pipeline.UIQueue < 1 {
		return errors.Errorf("pipeline.ui_queue must be >= 1, got %d", cfg.Pipeline.UIQueue)
	}
	if cfg.Camera.BufferFrames < 1 {
		return errors.Errorf("camera.buffer_frames must be >= 1, got %d", cfg.Camera.BufferFrames)
	}
	if cfg.Camera.Directory != "" && cfg.Camera.FPS < 1 {
		return errors.Errorf("camera.fps must be >= 1 for directory replay, got %d", cfg.Camera.FPS)
	}
	return nil
}
