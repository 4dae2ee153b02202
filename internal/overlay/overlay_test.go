package overlay

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

var white = color.RGBA{255, 255, 255, 255}

func TestRectOutline(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	Rect(img, 2, 3, 7, 8, white)

	assert.Equal(t, white, img.RGBAAt(2, 3))
	assert.Equal(t, white, img.RGBAAt(7, 8))
	assert.Equal(t, white, img.RGBAAt(5, 3))
	assert.Equal(t, white, img.RGBAAt(2, 6))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(5, 5))
}

func TestFillClips(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	Fill(img, image.Rect(-2, -2, 2, 2), white)
	assert.Equal(t, white, img.RGBAAt(1, 1))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(2, 2))
}

func TestTextDrawsPixels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 60, 20))
	Text(img, "map", 2, 15, white)

	lit := 0
	for _, v := range img.Pix {
		if v != 0 {
			lit++
		}
	}
	assert.Positive(t, lit)
	assert.Equal(t, 21, TextWidth("map"))
}
