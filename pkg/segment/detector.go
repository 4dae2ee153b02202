// Package segment locates the transverse boundaries of an elongated gut along
// a longitudinal scan line of each camera frame.
package segment

import (
	"math"

	"dmaple/pkg/luma"
)

// Geometry is the scan layout derived from an ROI.
type Geometry struct {
	// Horizontal is true when the gut lies along the x axis, so transverse
	// scans run along y.
	Horizontal bool
	// Long holds the longitudinal pixel index of each sample, starting at the
	// seeding edge.
	Long []int
	// TransStart and TransEnd bound the transverse range of the ROI (inclusive).
	TransStart int
	TransEnd   int
	// Step is the pixel distance between longitudinal samples.
	Step int
}

// NewGeometry lays out the longitudinal and transverse axes of an ROI.
func NewGeometry(roi ROI, skip int) Geometry {
	step := max(skip, 0) + 1
	g := Geometry{Horizontal: roi.SeedingEdge.Vertical(), Step: step}

	var from, to int
	switch roi.SeedingEdge {
	case EdgeLeft:
		from, to = roi.Left, roi.Right
	case EdgeRight:
		from, to = roi.Right, roi.Left
	case EdgeTop:
		from, to = roi.Top, roi.Bottom
	default:
		from, to = roi.Bottom, roi.Top
	}
	if from <= to {
		for k := from; k <= to; k += step {
			g.Long = append(g.Long, k)
		}
	} else {
		for k := from; k >= to; k -= step {
			g.Long = append(g.Long, k)
		}
	}

	if g.Horizontal {
		g.TransStart, g.TransEnd = roi.Top, roi.Bottom
	} else {
		g.TransStart, g.TransEnd = roi.Left, roi.Right
	}
	return g
}

// Samples is the number of longitudinal samples.
func (g Geometry) Samples() int { return len(g.Long) }

// TransWidth is the number of transverse pixels in the ROI.
func (g Geometry) TransWidth() int { return g.TransEnd - g.TransStart + 1 }

// Pixel reads the image at a longitudinal and transverse pixel index.
func (g Geometry) Pixel(img luma.Image, long, trans int) float32 {
	if g.Horizontal {
		return img.Pixel(long, trans)
	}
	return img.Pixel(trans, long)
}

// Detector segments the gut of one ROI frame by frame.
//
// The first frame is seeded with Seed; every later frame is followed with
// Track starting from the previous frame's spine. Boundary state is owned by
// the detector and overwritten on every call.
type Detector struct {
	geom      Geometry
	threshold float32
	above     bool
	minWidth  int
	maxGap    int
	window    int

	upper    []int
	lower    []int
	spine    []int
	smoothed []int
}

// NewDetector creates a detector for the ROI. The ROI should already be
// cropped to the frame.
func NewDetector(roi ROI, p Params) *Detector {
	g := NewGeometry(roi, p.SpineSkipPixels)
	n := g.Samples()
	return &Detector{
		geom:      g,
		threshold: roi.Threshold,
		above:     p.GutIsAboveThreshold,
		minWidth:  p.MinWidth,
		maxGap:    p.MaxGap,
		window:    p.SmoothWindow(),
		upper:     make([]int, n),
		lower:     make([]int, n),
		spine:     make([]int, n),
		smoothed:  make([]int, n),
	}
}

func (d *Detector) Geometry() Geometry { return d.geom }

func (d *Detector) Samples() int { return d.geom.Samples() }

// Upper returns the upper boundary of every sample. The slice is live.
func (d *Detector) Upper() []int { return d.upper }

// Lower returns the lower boundary of every sample. The slice is live.
func (d *Detector) Lower() []int { return d.lower }

func (d *Detector) isGut(p float32) bool {
	return (p > d.threshold) != !d.above
}

// Seed finds the widest gut across the transverse range at the seeding edge,
// seeds the spine at its centre and tracks the rest of the frame. It reports
// false when no gut at least MinWidth wide is found.
func (d *Detector) Seed(img luma.Image) bool {
	if d.Samples() == 0 {
		return false
	}
	lo, hi, ok := d.widestRun(img)
	if !ok {
		return false
	}
	d.spine[0] = lo + (hi-lo)/2
	d.Track(img)
	return true
}

func (d *Detector) widestRun(img luma.Image) (int, int, bool) {
	long := d.geom.Long[0]
	t0 := d.geom.TransStart
	n := d.geom.TransWidth()

	bestLo, bestHi, found := 0, 0, false
	accept := func(end, w, g int) {
		if w-g < d.minWidth {
			return
		}
		lo, hi := t0+end-w, t0+end-g-1
		if !found || hi-lo > bestHi-bestLo {
			bestLo, bestHi, found = lo, hi, true
		}
	}

	w, g := 0, 0
	for k := 0; k < n; k++ {
		v := d.isGut(d.geom.Pixel(img, long, t0+k))
		if v || (w > 0 && g < d.maxGap) {
			w++
			if v {
				g = 0
			} else {
				g++
			}
			continue
		}
		accept(k, w, g)
		w, g = 0, 0
	}
	accept(n, w, g)
	return bestLo, bestHi, found
}

// Track updates the boundaries and spine of every longitudinal sample from
// the current frame, following the spine from the seeding edge.
func (d *Detector) Track(img luma.Image) {
	limit := img.Width()
	if d.geom.Horizontal {
		limit = img.Height()
	}
	trans := d.spine[0]
	for i, long := range d.geom.Long {
		d.upper[i] = d.findEdge(img, long, trans, 1, limit)
		d.lower[i] = d.findEdge(img, long, trans, -1, limit)
		trans = d.lower[i] + (d.upper[i]-d.lower[i])/2
		d.spine[i] = trans
	}
	d.smooth()
}

// findEdge walks from start in direction dir and returns the last gut pixel
// before more than MaxGap consecutive background pixels. The start position
// is returned when no gut is found.
func (d *Detector) findEdge(img luma.Image, long, start, dir, limit int) int {
	last, g := start, 0
	for t := start; t >= 0 && t < limit && g <= d.maxGap; t += dir {
		if d.isGut(d.geom.Pixel(img, long, t)) {
			last, g = t, 0
		} else {
			g++
		}
	}
	return last
}

// smooth applies a trailing moving average to the spine. The result is only
// used for measurement and never feeds back into tracking.
func (d *Detector) smooth() {
	sum := 0
	for i, s := range d.spine {
		sum += s
		if i >= d.window {
			sum -= d.spine[i-d.window]
		}
		n := min(i+1, d.window)
		v := int(math.Round(float64(sum) / float64(n)))
		d.smoothed[i] = max(d.lower[i], min(v, d.upper[i]))
	}
}

// Diameter is the inclusive pixel width of the gut at sample i.
func (d *Detector) Diameter(i int) int { return 1 + d.upper[i] - d.lower[i] }

// UpperRadius is the distance from the spine to the upper boundary, inclusive.
func (d *Detector) UpperRadius(i int) int { return 1 + d.upper[i] - d.smoothed[i] }

// LowerRadius is the distance from the lower boundary to the spine.
func (d *Detector) LowerRadius(i int) int { return d.smoothed[i] - d.lower[i] }

// Spine is the smoothed transverse index of the spine at sample i.
func (d *Detector) Spine(i int) int { return d.smoothed[i] }
