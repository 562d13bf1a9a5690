package providers

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// LibraryPathEnv overrides the platform default ONNX Runtime library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// GetSharedLibPath returns the path to the shared library for the current platform.
//
// Arguments:
//   - override: A configured path. Used as-is when non-empty.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error if no library is known for this platform.
func GetSharedLibPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv(LibraryPathEnv); env != "" {
		return env, nil
	}
	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/libonnxruntime.1.21.0.dylib", nil
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", fmt.Errorf("no onnxruntime library known for %s/%s", runtime.GOOS, runtime.GOARCH)
}

var (
	envMu   sync.Mutex
	envPath string
)

// InitEnvironment loads the native library and prepares ONNX Runtime.
// It is safe to call more than once; later calls with the same path are no-ops.
//
// Arguments:
//   - libPath: The shared library path from GetSharedLibPath.
//
// Returns:
//   - error: An error if the library is missing or the environment fails to start.
func InitEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		if envPath != libPath {
			return fmt.Errorf("onnxruntime already initialized from %s", envPath)
		}
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return fmt.Errorf("ONNX Runtime library not found at %s: %w", libPath, err)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing ORT environment: %w", err)
	}
	envPath = libPath
	return nil
}

// DestroyEnvironment releases the ONNX Runtime environment.
func DestroyEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	envPath = ""
	return ort.DestroyEnvironment()
}
