// Package images - Frame preparation for classification.
package images

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// subImager is implemented by the standard library image types.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// CenterSquare returns the largest square centered in bounds.
//
// Arguments:
//   - bounds: The bounds of the source image.
//
// Returns:
//   - image.Rectangle: The centered square, in the same coordinate space as bounds.
func CenterSquare(bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	side := min(w, h)
	x0 := bounds.Min.X + (w-side)/2
	y0 := bounds.Min.Y + (h-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

// CenterCrop crops img to its centered square.
//
// Images that cannot be sliced in place are copied into a new RGBA image.
func CenterCrop(img image.Image) image.Image {
	r := CenterSquare(img.Bounds())
	if r == img.Bounds() {
		return img
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// CenterCropScale center-crops img and scales the crop to size x size.
//
// The same input pixels always produce the same output pixels, which keeps
// classification reproducible for a given frame and orientation.
//
// Arguments:
//   - img: The source image.
//   - size: The edge length of the square output.
//
// Returns:
//   - image.Image: The cropped and scaled image.
//   - error: An error if the image is empty or size is not positive.
func CenterCropScale(img image.Image, size int) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid target size: %d", size)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("image is empty: %v", img.Bounds())
	}
	cropped := CenterCrop(img)
	if cropped.Bounds().Dx() == size && cropped.Bounds().Dy() == size {
		return cropped, nil
	}
	return resize.Resize(uint(size), uint(size), cropped, resize.Bilinear), nil
}
