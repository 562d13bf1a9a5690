package main

import (
	"flag"
	"io"

	"github.com/nvr-ai/live-classify/config"
	"github.com/pkg/errors"
)

// cliFlags holds the command line. Only flags that were set override the config file.
type cliFlags struct {
	configPath  string
	model       string
	labels      string
	library     string
	provider    string
	device      int
	video       string
	dir         string
	orientation string
	logLevel    string
	window      bool

	set map[string]bool
}

func parseFlags(args []string, output io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: map[string]bool{}}

	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&f.model, "model", "", "Path to the ONNX classification model")
	fs.StringVar(&f.labels, "labels", "", "Path to the newline-delimited labels file")
	fs.StringVar(&f.library, "onnxruntime", "", "Path to the onnxruntime shared library")
	fs.StringVar(&f.provider, "provider", "", "Execution provider: cpu, coreml, cuda, openvino")
	fs.IntVar(&f.device, "device", 0, "Video capture device ID")
	fs.StringVar(&f.video, "video", "", "Video file or stream URL to read instead of a device")
	fs.StringVar(&f.dir, "dir", "", "Directory of frame-<n> images to replay instead of a device")
	fs.StringVar(&f.orientation, "orientation", "", "Device orientation at startup")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&f.window, "window", false, "Show the preview window")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(f *cliFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Read(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	f.apply(&cfg)
	if err := config.Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

func (f *cliFlags) apply(cfg *config.Config) {
	if f.set["model"] {
		cfg.Model.Path = f.model
	}
	if f.set["labels"] {
		cfg.Model.LabelsPath = f.labels
	}
	if f.set["onnxruntime"] {
		cfg.Model.LibraryPath = f.library
	}
	if f.set["provider"] {
		cfg.Model.Provider = f.provider
	}
	if f.set["device"] {
		cfg.Camera.DeviceID = f.device
	}
	if f.set["video"] {
		cfg.Camera.Path = f.video
	}
	if f.set["dir"] {
		cfg.Camera.Directory = f.dir
	}
	if f.set["orientation"] {
		cfg.Camera.Orientation = f.orientation
	}
	if f.set["log-level"] {
		cfg.LogLevel = f.logLevel
	}
	if f.set["window"] {
		cfg.Display.Window = f.window
	}
}
