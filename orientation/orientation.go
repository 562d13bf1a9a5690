// Package orientation - Device rotation tracking and frame orientation correction.
package orientation

import (
	"fmt"
	"strings"
)

// DeviceOrientation is the physical orientation reported by the device.
type DeviceOrientation int

const (
	// DeviceUnknown is reported before the first accelerometer reading.
	DeviceUnknown DeviceOrientation = iota
	// DevicePortrait is upright with the home edge at the bottom.
	DevicePortrait
	// DevicePortraitUpsideDown is upright with the home edge at the top.
	DevicePortraitUpsideDown
	// DeviceLandscapeLeft is rotated with the home edge on the right.
	DeviceLandscapeLeft
	// DeviceLandscapeRight is rotated with the home edge on the left.
	DeviceLandscapeRight
	// DeviceFaceUp is flat with the screen facing up.
	DeviceFaceUp
	// DeviceFaceDown is flat with the screen facing down.
	DeviceFaceDown
)

var deviceNames = map[DeviceOrientation]string{
	DeviceUnknown:            "unknown",
	DevicePortrait:           "portrait",
	DevicePortraitUpsideDown: "portrait-upside-down",
	DeviceLandscapeLeft:      "landscape-left",
	DeviceLandscapeRight:     "landscape-right",
	DeviceFaceUp:             "face-up",
	DeviceFaceDown:           "face-down",
}

func (d DeviceOrientation) String() string {
	if name, ok := deviceNames[d]; ok {
		return name
	}
	return fmt.Sprintf("device(%d)", int(d))
}

// ParseDeviceOrientation parses a device orientation name such as "landscape-left".
// Underscores and spaces are accepted in place of dashes.
//
// Arguments:
//   - s: The orientation name.
//
// Returns:
//   - DeviceOrientation: The parsed orientation.
//   - error: An error if the name is not recognized.
func ParseDeviceOrientation(s string) (DeviceOrientation, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	for d, name := range deviceNames {
		if name == norm {
			return d, nil
		}
	}
	return DeviceUnknown, fmt.Errorf("unknown device orientation %q", s)
}

// Correction is the video orientation frames are corrected to before classification.
type Correction int32

const (
	// Portrait keeps the image upright for a portrait device.
	Portrait Correction = iota + 1
	// PortraitUpsideDown rotates for an upside-down portrait device.
	PortraitUpsideDown
	// LandscapeRight is the native sensor orientation.
	LandscapeRight
	// LandscapeLeft is the native sensor orientation rotated by 180 degrees.
	LandscapeLeft
)

func (c Correction) String() string {
	switch c {
	case Portrait:
		return "portrait"
	case PortraitUpsideDown:
		return "portrait-upside-down"
	case LandscapeRight:
		return "landscape-right"
	case LandscapeLeft:
		return "landscape-left"
	default:
		return fmt.Sprintf("correction(%d)", int32(c))
	}
}

// Valid reports whether c is one of the four video orientations.
func (c Correction) Valid() bool {
	return c >= Portrait && c <= LandscapeLeft
}

// Rotation is a clockwise pixel rotation applied to a sensor frame.
type Rotation int

const (
	// RotateNone leaves the frame untouched.
	RotateNone Rotation = 0
	// Rotate90CW rotates by 90 degrees clockwise.
	Rotate90CW Rotation = 90
	// Rotate180 rotates by 180 degrees.
	Rotate180 Rotation = 180
	// Rotate90CCW rotates by 90 degrees counter-clockwise.
	Rotate90CCW Rotation = 270
)

// Rotation returns the pixel rotation that brings a native landscape-right sensor
// frame into this orientation. Invalid corrections are treated as Portrait.
func (c Correction) Rotation() Rotation {
	switch c {
	case LandscapeRight:
		return RotateNone
	case LandscapeLeft:
		return Rotate180
	case PortraitUpsideDown:
		return Rotate90CCW
	default:
		return Rotate90CW
	}
}

// CorrectionFor maps a device orientation to the video orientation it implies.
// Device landscape axes are mirrored relative to video landscape axes.
//
// Arguments:
//   - d: The device orientation.
//
// Returns:
//   - Correction: The matching correction.
//   - bool: False for orientations with no defined correction (unknown, face up/down).
func CorrectionFor(d DeviceOrientation) (Correction, bool) {
	switch d {
	case DevicePortrait:
		return Portrait, true
	case DevicePortraitUpsideDown:
		return PortraitUpsideDown, true
	case DeviceLandscapeLeft:
		return LandscapeRight, true
	case DeviceLandscapeRight:
		return LandscapeLeft, true
	default:
		return 0, false
	}
}
