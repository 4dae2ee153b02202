// Package luma provides the luminance accessor consumed by boundary detection
// and a pure Go frame type that implements it.
package luma

import (
	"image"
	"image/color"
)

// Image is a read-only greyscale view of a camera frame.
// Pixel(i, j) returns the luminance of column i, row j.
type Image interface {
	Width() int
	Height() int
	Pixel(i, j int) float32
}

// Frame is a pure Go 2D float32 luminance matrix.
type Frame struct {
	data []float32
	rows int
	cols int
}

// NewFrame creates a frame of the given size filled with background.
func NewFrame(width, height int, background float32) *Frame {
	f := &Frame{
		data: make([]float32, width*height),
		rows: height,
		cols: width,
	}
	if background != 0 {
		for k := range f.data {
			f.data[k] = background
		}
	}
	return f
}

// FromPixels wraps 8-bit luminance samples stored row-major.
func FromPixels(pixels []uint8, width, height int) *Frame {
	f := NewFrame(width, height, 0)
	for k := 0; k < width*height && k < len(pixels); k++ {
		f.data[k] = float32(pixels[k])
	}
	return f
}

// FromImage converts any image to NTSC luma in the [0, 255] range.
func FromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	f := NewFrame(w, h, 0)

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			row := g.Pix[y*g.Stride : y*g.Stride+w]
			for x, v := range row {
				f.data[y*w+x] = float32(v)
			}
		}
		return f
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			f.data[y*w+x] = NTSCGrey(r>>8, g>>8, b>>8)
		}
	}
	return f
}

// NTSCGrey is the BT.470 luma of an 8-bit RGB triple.
func NTSCGrey(r, g, b uint32) float32 {
	return 0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)
}

func (f *Frame) Width() int  { return f.cols }
func (f *Frame) Height() int { return f.rows }

func (f *Frame) Pixel(i, j int) float32 { return f.data[j*f.cols+i] }

func (f *Frame) Set(i, j int, v float32) { f.data[j*f.cols+i] = v }

// Data returns the row-major backing slice.
func (f *Frame) Data() []float32 { return f.data }

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	c := NewFrame(f.cols, f.rows, 0)
	copy(c.data, f.data)
	return c
}

// Apply replaces every pixel v with fn(v).
func (f *Frame) Apply(fn func(float32) float32) {
	for k, v := range f.data {
		f.data[k] = fn(v)
	}
}

// Invert mirrors every pixel about maxValue.
func (f *Frame) Invert(maxValue float32) {
	f.Apply(func(v float32) float32 { return maxValue - v })
}

// Transpose swaps rows and columns, so pixel (i, j) moves to (j, i).
// A transposed field with a transposed ROI yields identical boundaries.
func (f *Frame) Transpose() *Frame {
	t := NewFrame(f.rows, f.cols, 0)
	for j := 0; j < f.rows; j++ {
		for i := 0; i < f.cols; i++ {
			t.data[i*t.cols+j] = f.data[j*f.cols+i]
		}
	}
	return t
}

// Rotate returns the frame turned clockwise by 90°: pixel (x, y) moves to (h-1-y, x).
func (f *Frame) Rotate() *Frame {
	r := NewFrame(f.rows, f.cols, 0)
	for j := 0; j < f.rows; j++ {
		for i := 0; i < f.cols; i++ {
			r.data[i*r.cols+(f.rows-1-j)] = f.data[j*f.cols+i]
		}
	}
	return r
}

// FillRect paints the inclusive rectangle [x0,x1]x[y0,y1] with v, clipped to the frame.
func (f *Frame) FillRect(x0, y0, x1, y1 int, v float32) {
	x0, x1 = max(x0, 0), min(x1, f.cols-1)
	y0, y1 = max(y0, 0), min(y1, f.rows-1)
	for j := y0; j <= y1; j++ {
		for i := x0; i <= x1; i++ {
			f.data[j*f.cols+i] = v
		}
	}
}

// Gray renders the frame as an 8-bit image, clamping to [0, 255].
func (f *Frame) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.cols, f.rows))
	for j := 0; j < f.rows; j++ {
		for i := 0; i < f.cols; i++ {
			v := f.data[j*f.cols+i]
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			img.SetGray(i, j, color.Gray{Y: uint8(v)})
		}
	}
	return img
}
