package luma

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromImageGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.SetGray(2, 1, color.Gray{Y: 200})

	f := FromImage(img)
	require.Equal(t, 3, f.Width())
	require.Equal(t, 2, f.Height())
	assert.Equal(t, float32(200), f.Pixel(2, 1))
	assert.Equal(t, float32(0), f.Pixel(0, 0))
}

func TestFromImageRGBUsesNTSCWeights(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 100, G: 50, B: 200, A: 255})

	f := FromImage(img)
	assert.InDelta(t, 0.299*100+0.587*50+0.114*200, f.Pixel(0, 0), 1e-3)
}

func TestTransposeSwapsAxes(t *testing.T) {
	f := NewFrame(4, 2, 0)
	f.Set(3, 1, 7)

	tr := f.Transpose()
	assert.Equal(t, 2, tr.Width())
	assert.Equal(t, 4, tr.Height())
	assert.Equal(t, float32(7), tr.Pixel(1, 3))
}

func TestRotateClockwise(t *testing.T) {
	f := NewFrame(4, 2, 0)
	f.Set(0, 0, 1)
	f.Set(3, 1, 2)

	r := f.Rotate()
	require.Equal(t, 2, r.Width())
	require.Equal(t, 4, r.Height())
	assert.Equal(t, float32(1), r.Pixel(1, 0))
	assert.Equal(t, float32(2), r.Pixel(0, 3))
}

func TestFillRectClipsToFrame(t *testing.T) {
	f := NewFrame(5, 5, 1)
	f.FillRect(-3, 3, 10, 10, 9)

	assert.Equal(t, float32(9), f.Pixel(0, 4))
	assert.Equal(t, float32(9), f.Pixel(4, 3))
	assert.Equal(t, float32(1), f.Pixel(4, 2))
}

func TestInvert(t *testing.T) {
	f := FromPixels([]uint8{0, 255, 100}, 3, 1)
	f.Invert(255)
	assert.Equal(t, []float32{255, 0, 155}, f.Data())
}

func TestGrayClamps(t *testing.T) {
	f := NewFrame(2, 1, 0)
	f.Set(0, 0, -5)
	f.Set(1, 0, 300)
	g := f.Gray()
	assert.Equal(t, uint8(0), g.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), g.GrayAt(1, 0).Y)
}
