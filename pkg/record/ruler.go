package record

import (
	"fmt"
	"math"
	"slices"
)

// Units a ruler may be calibrated in.
var Units = []string{"mm", "cm", "inch"}

// Ruler calibrates field pixels against a physical length. The end points are
// in frame pixel coordinates.
type Ruler struct {
	X0     float64 `yaml:"x0"`
	Y0     float64 `yaml:"y0"`
	X1     float64 `yaml:"x1"`
	Y1     float64 `yaml:"y1"`
	Length float64 `yaml:"length"`
	Unit   string  `yaml:"unit"`
}

// PixelLength is the length of the ruler in pixels.
func (r Ruler) PixelLength() float64 {
	return math.Hypot(r.X1-r.X0, r.Y1-r.Y0)
}

// PixelsPerUnit is the field resolution given by the ruler.
func (r Ruler) PixelsPerUnit() (float64, string) {
	if r.Length <= 0 {
		return 0, r.Unit
	}
	return r.PixelLength() / r.Length, r.Unit
}

func (r Ruler) Validate() error {
	if r.Length <= 0 {
		return fmt.Errorf("ruler length must be positive, got %g", r.Length)
	}
	if r.PixelLength() == 0 {
		return fmt.Errorf("ruler end points coincide")
	}
	if !slices.Contains(Units, r.Unit) {
		return fmt.Errorf("unknown ruler unit %q (want one of %v)", r.Unit, Units)
	}
	return nil
}
