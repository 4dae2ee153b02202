// Package overlay draws annotations onto RGBA images.
package overlay

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Face is the font used for all labels.
var Face font.Face = basicfont.Face7x13

// LineHeight is the pixel height of one line of text.
const LineHeight = 13

// Fill paints a rectangle.
func Fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// Text draws a string with its baseline at (x, y).
func Text(img *image.RGBA, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: Face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// TextWidth is the rendered pixel width of s.
func TextWidth(s string) int {
	return font.MeasureString(Face, s).Round()
}

// Line draws a line between two points using Bresenham's algorithm.
func Line(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := intAbs(x1 - x0)
	dy := -intAbs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// Rect outlines the inclusive rectangle with corners (x0, y0) and (x1, y1).
func Rect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	Line(img, x0, y0, x1, y0, c)
	Line(img, x1, y0, x1, y1, c)
	Line(img, x1, y1, x0, y1, c)
	Line(img, x0, y1, x0, y0, c)
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
