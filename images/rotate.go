package images

import (
	"fmt"
	"image"

	"github.com/nvr-ai/live-classify/orientation"
	"gocv.io/x/gocv"
)

// rotateFlags maps a clockwise rotation onto the OpenCV rotate codes.
var rotateFlags = map[orientation.Rotation]gocv.RotateFlag{
	orientation.Rotate90CW:  gocv.Rotate90Clockwise,
	orientation.Rotate180:   gocv.Rotate180Clockwise,
	orientation.Rotate90CCW: gocv.Rotate90CounterClockwise,
}

// Rotate applies an orientation rotation to img using OpenCV.
//
// Arguments:
//   - img: The source image.
//   - rot: The clockwise rotation to apply.
//
// Returns:
//   - image.Image: The rotated image, or img itself for RotateNone.
//   - error: An error if the conversion to or from a Mat fails.
func Rotate(img image.Image, rot orientation.Rotation) (image.Image, error) {
	flag, ok := rotateFlags[rot]
	if !ok {
		return img, nil
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image to mat: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	gocv.Rotate(src, &dst, flag)
	if dst.Empty() {
		return nil, fmt.Errorf("rotation by %d produced an empty mat", int(rot))
	}

	// ImageToMatRGB stores BGR, so ToImage restores RGB ordering.
	out, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert rotated mat to image: %w", err)
	}
	return out, nil
}

// MatToImage converts a captured BGR frame into an image.Image.
func MatToImage(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("mat is empty")
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert mat to image: %w", err)
	}
	return img, nil
}
