package presentation

import (
	"fmt"

	"github.com/nvr-ai/live-classify/inference"
	"github.com/nvr-ai/live-classify/orientation"
)

// FormatPrediction renders one prediction as "label 87.5%".
func FormatPrediction(p inference.Prediction) string {
	return fmt.Sprintf("%s %.1f%%", p.Label, p.Confidence*100)
}

// OverlayLines returns the text drawn over the preview, top to bottom.
func OverlayLines(result inference.Result, loading bool) []string {
	if loading {
		return []string{"loading..."}
	}
	lines := make([]string, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		lines = append(lines, FormatPrediction(p))
	}
	return lines
}

// KeyOrientation maps preview window keys to simulated device rotation events.
//
//	1 portrait, 2 portrait upside down, 3 landscape left, 4 landscape right, 5 face up
func KeyOrientation(key int) (orientation.DeviceOrientation, bool) {
	switch key {
	case '1':
		return orientation.DevicePortrait, true
	case '2':
		return orientation.DevicePortraitUpsideDown, true
	case '3':
		return orientation.DeviceLandscapeLeft, true
	case '4':
		return orientation.DeviceLandscapeRight, true
	case '5':
		return orientation.DeviceFaceUp, true
	default:
		return orientation.DeviceUnknown, false
	}
}

// IsQuitKey reports whether key asks to close the preview (q or Esc).
func IsQuitKey(key int) bool {
	return key == 'q' || key == 'Q' || key == 27
}
