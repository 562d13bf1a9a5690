package images

import (
	"fmt"
	"image"
)

// Normalization holds per-channel mean and standard deviation applied after
// pixels are scaled to [0, 1]. A zero value leaves pixels in [0, 1].
type Normalization struct {
	Mean [3]float32
	Std  [3]float32
}

// NewNormalization builds a Normalization from config slices.
// Empty slices yield the identity normalization.
func NewNormalization(mean, std []float32) (Normalization, error) {
	n := Normalization{Std: [3]float32{1, 1, 1}}
	if len(mean) == 0 && len(std) == 0 {
		return n, nil
	}
	if len(mean) != 3 || len(std) != 3 {
		return n, fmt.Errorf("normalization needs 3 mean and 3 std values, got %d and %d", len(mean), len(std))
	}
	for i := 0; i < 3; i++ {
		if std[i] == 0 {
			return n, fmt.Errorf("std[%d] must be non-zero", i)
		}
		n.Mean[i] = mean[i]
		n.Std[i] = std[i]
	}
	return n, nil
}

// FillTensorCHW writes img into dst as planar RGB ([3, H, W]) float32 values.
//
// Arguments:
//   - img: The image to write. Its bounds must be exactly size x size.
//   - dst: The destination tensor data.
//   - size: The edge length expected by the model.
//   - norm: The per-channel normalization.
//
// Returns:
//   - error: An error if the destination is too small or the image has the wrong size.
func FillTensorCHW(img image.Image, dst []float32, size int, norm Normalization) error {
	channelSize := size * size
	if len(dst) < channelSize*3 {
		return fmt.Errorf("destination tensor only holds %d floats, needs %d", len(dst), channelSize*3)
	}
	b := img.Bounds()
	if b.Dx() != size || b.Dy() != size {
		return fmt.Errorf("image is %dx%d, tensor expects %dx%d", b.Dx(), b.Dy(), size, size)
	}
	if norm.Std == [3]float32{} {
		norm.Std = [3]float32{1, 1, 1}
	}

	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			red[i] = (float32(r>>8)/255.0 - norm.Mean[0]) / norm.Std[0]
			green[i] = (float32(g>>8)/255.0 - norm.Mean[1]) / norm.Std[1]
			blue[i] = (float32(bl>>8)/255.0 - norm.Mean[2]) / norm.Std[2]
			i++
		}
	}
	return nil
}
