package record

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"dmaple/internal/overlay"
	"dmaple/pkg/mapseries"
)

var (
	roiColor      = color.RGBA{255, 200, 0, 255}
	boundaryColor = color.RGBA{0, 255, 80, 255}
	spineColor    = color.RGBA{255, 60, 60, 255}
	rulerColor    = color.RGBA{80, 160, 255, 255}
)

// DrawField annotates a frame of the mapping field with the ROIs, the last
// boundaries found in each and the ruler.
func DrawField(field image.Image, series []*mapseries.Series, ruler *Ruler) *image.RGBA {
	img := image.NewRGBA(field.Bounds())
	draw.Draw(img, img.Bounds(), field, field.Bounds().Min, draw.Src)

	for _, s := range series {
		roi := s.ROI()
		overlay.Rect(img, roi.Left, roi.Top, roi.Right, roi.Bottom, roiColor)
		overlay.Text(img, roi.UID[:min(8, len(roi.UID))], roi.Left+2, roi.Top+overlay.LineHeight, roiColor)

		if s.NT() == 0 || s.Detector().Samples() == 0 {
			continue
		}
		d := s.Detector()
		g := d.Geometry()
		for i, long := range g.Long {
			plot(img, g.Horizontal, long, d.Upper()[i], boundaryColor)
			plot(img, g.Horizontal, long, d.Lower()[i], boundaryColor)
			plot(img, g.Horizontal, long, d.Spine(i), spineColor)
		}
	}

	if ruler != nil {
		x0, y0 := int(ruler.X0+0.5), int(ruler.Y0+0.5)
		x1, y1 := int(ruler.X1+0.5), int(ruler.Y1+0.5)
		overlay.Line(img, x0, y0, x1, y1, rulerColor)
		overlay.Text(img, fmt.Sprintf("%g %s", ruler.Length, ruler.Unit), x1+4, y1+4, rulerColor)
	}
	return img
}

func plot(img *image.RGBA, horizontal bool, long, trans int, c color.RGBA) {
	x, y := trans, long
	if horizontal {
		x, y = long, trans
	}
	if (image.Point{x, y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}
