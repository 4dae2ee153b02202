package mapseries

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"

	"dmaple/internal/overlay"
)

// PreviewWidth is the widest map drawn by Preview, in pixels.
const PreviewWidth = 800

const previewCaption = overlay.LineHeight + 8

// Preview draws a channel down-sampled to at most PreviewWidth pixels wide
// with a caption naming the channel and its calibration, and encodes it as PNG.
func (s *Series) Preview(w io.Writer, idx int) error {
	img, err := s.previewImage(idx)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SavePreview writes a PNG preview of a channel to path.
func (s *Series) SavePreview(path string, idx int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview file: %w", err)
	}
	defer f.Close()
	return s.Preview(f, idx)
}

func (s *Series) previewImage(idx int) (*image.RGBA, error) {
	names := s.ChannelNames()
	if idx < 0 || idx >= len(names) {
		return nil, fmt.Errorf("no map %d for ROI %s", idx, s.roi.UID)
	}
	step := max(1, ceilDiv(s.ns, PreviewWidth))
	m := s.Render(idx, image.Rectangle{}, step, step, nil)
	if m == nil {
		return nil, fmt.Errorf("no %s samples recorded for ROI %s", names[idx], s.roi.UID)
	}

	caption := fmt.Sprintf("%s %dx%d  x: %s  t: %s", names[idx], s.ns, s.NT(), s.spatial, s.temporal)
	width := max(m.Bounds().Dx(), overlay.TextWidth(caption)+10)
	img := image.NewRGBA(image.Rect(0, 0, width, m.Bounds().Dy()+previewCaption))
	overlay.Fill(img, img.Bounds(), color.RGBA{0, 0, 0, 255})
	draw.Draw(img, m.Bounds(), m, image.Point{}, draw.Src)
	overlay.Text(img, caption, 5, m.Bounds().Dy()+overlay.LineHeight+2, color.RGBA{220, 220, 220, 255})
	return img, nil
}
