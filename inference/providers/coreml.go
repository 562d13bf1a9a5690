package providers

import (
	"fmt"
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

// CoreML provider flags as defined by coreml_provider_factory.h.
const (
	coreMLFlagUseCPUOnly           uint32 = 0x001
	coreMLFlagEnableOnSubgraph     uint32 = 0x002
	coreMLFlagOnlyANEDevices       uint32 = 0x004
	coreMLFlagStaticInputShapes    uint32 = 0x008
	coreMLFlagCreateMLProgramModel uint32 = 0x010
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only.
	CPUOnly bool `yaml:"cpuOnly"`
	// Enable CoreML EP to run on a subgraph in the body of a control flow operator.
	EnableOnSubgraphs bool `yaml:"enableOnSubgraphs"`
	// Only run on devices with an Apple Neural Engine.
	OnlyANE bool `yaml:"onlyANE"`
	// Only allow the CoreML EP to take nodes with inputs that have static shapes.
	RequireStaticInputShapes bool `yaml:"requireStaticInputShapes"`
	// Create an MLProgram format model. Requires Core ML 5 or later (iOS 15+ or macOS 12+).
	MLProgram bool `yaml:"mlProgram"`
}

// Flags returns the CoreML flag bitmask for the options.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.CPUOnly {
		flags |= coreMLFlagUseCPUOnly
	}
	if o.EnableOnSubgraphs {
		flags |= coreMLFlagEnableOnSubgraph
	}
	if o.OnlyANE {
		flags |= coreMLFlagOnlyANEDevices
	}
	if o.RequireStaticInputShapes {
		flags |= coreMLFlagStaticInputShapes
	}
	if o.MLProgram {
		flags |= coreMLFlagCreateMLProgramModel
	}
	return flags
}

// CoreMLOptionsFromMap reads CoreML options from config key/value pairs.
// Unknown keys and unparsable booleans are ignored.
func CoreMLOptionsFromMap(m map[string]string) CoreMLOptions {
	flag := func(key string) bool {
		v, err := strconv.ParseBool(m[key])
		return err == nil && v
	}
	return CoreMLOptions{
		CPUOnly:                  flag("cpuOnly"),
		EnableOnSubgraphs:        flag("enableOnSubgraphs"),
		OnlyANE:                  flag("onlyANE"),
		RequireStaticInputShapes: flag("requireStaticInputShapes"),
		MLProgram:                flag("mlProgram"),
	}
}

// CoreMLProvider implements the ExecutionProvider interface.
type CoreMLProvider struct {
	options CoreMLOptions
}

// NewCoreMLProvider creates a new CoreML provider.
func NewCoreMLProvider(options CoreMLOptions) *CoreMLProvider {
	return &CoreMLProvider{options: options}
}

// Backend returns the backend of the CoreML provider.
func (p *CoreMLProvider) Backend() ProviderBackend {
	return CoreMLProviderBackend
}

// Append enables CoreML on the session options.
func (p *CoreMLProvider) Append(options *ort.SessionOptions) error {
	if err := options.AppendExecutionProviderCoreML(p.options.Flags()); err != nil {
		return fmt.Errorf("error enabling CoreML: %w", err)
	}
	return nil
}
