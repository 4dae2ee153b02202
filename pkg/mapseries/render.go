package mapseries

import (
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"
)

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// Render draws part of a map into an RGBA image.
//
// crop selects space (x) and time (y) samples and is clamped to the recorded
// area; an empty crop selects everything. Every stepX-th sample and
// stepY-th frame is drawn. backing is used for the pixels when it is large
// enough; a nil backing is allocated. Render returns nil when the channel
// does not exist, nothing is recorded or the backing is too small.
func (s *Series) Render(idx int, crop image.Rectangle, stepX, stepY int, backing []uint8) *image.RGBA {
	chans := s.channels()
	if idx < 0 || idx >= len(chans) {
		return nil
	}
	ch := chans[idx].ch

	area := image.Rect(0, 0, s.ns, s.NT())
	if !crop.Empty() {
		area = area.Intersect(crop)
	}
	if area.Empty() {
		return nil
	}
	stepX, stepY = max(stepX, 1), max(stepY, 1)
	w, h := ceilDiv(area.Dx(), stepX), ceilDiv(area.Dy(), stepY)

	need := 4 * w * h
	if len(backing) < need {
		if backing != nil {
			return nil
		}
		backing = make([]uint8, need)
	}
	img := &image.RGBA{Pix: backing[:need], Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for row := 0; row < h; row++ {
		row := row
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("rendering row %d: %v", row, r)
				}
			}()
			j := area.Min.Y + row*stepY
			p := img.Pix[row*img.Stride:]
			for col := 0; col < w; col++ {
				argb := ch.Color(area.Min.X+col*stepX, j)
				p[4*col] = uint8(argb >> 16)
				p[4*col+1] = uint8(argb >> 8)
				p[4*col+2] = uint8(argb)
				p[4*col+3] = uint8(argb >> 24)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil
	}
	return img
}
