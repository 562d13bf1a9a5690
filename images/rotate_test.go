package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/nvr-ai/live-classify/orientation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marker returns a 4x2 image with a single red pixel in the top-left corner.
func marker() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{A: 255})
		}
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 == 255 && g>>8 == 0 && b>>8 == 0
}

func TestRotate(t *testing.T) {
	tests := []struct {
		rot    orientation.Rotation
		size   image.Point
		redPix image.Point
	}{
		{orientation.Rotate90CW, image.Pt(2, 4), image.Pt(1, 0)},
		{orientation.Rotate180, image.Pt(4, 2), image.Pt(3, 1)},
		{orientation.Rotate90CCW, image.Pt(2, 4), image.Pt(0, 3)},
	}
	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			out, err := Rotate(marker(), tt.rot)
			require.NoError(t, err)
			assert.Equal(t, tt.size, out.Bounds().Size())
			assert.True(t, isRed(out.At(out.Bounds().Min.X+tt.redPix.X, out.Bounds().Min.Y+tt.redPix.Y)))
		})
	}
}

func TestRotateNoneReturnsInput(t *testing.T) {
	src := marker()
	out, err := Rotate(src, orientation.RotateNone)
	require.NoError(t, err)
	assert.Same(t, src, out)
}
