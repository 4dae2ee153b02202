package segment

import "fmt"

// Params controls segmentation for every ROI of a field.
type Params struct {
	// GutIsAboveThreshold is true for a light gut against a dark background.
	GutIsAboveThreshold bool `yaml:"gut_is_above_threshold"`
	// MinWidth is the minimum pixel width of the gut at its seeding edge.
	MinWidth int `yaml:"min_width"`
	// MaxGap is the largest run of background pixels tolerated inside the gut.
	MaxGap int `yaml:"max_gap"`
	// SpineSkipPixels reduces the spatial resolution of the maps.
	SpineSkipPixels int `yaml:"spine_skip_pixels"`
	// SpineSmoothPixels is the pixel width over which the spine is smoothed.
	SpineSmoothPixels int `yaml:"spine_smooth_pixels"`
}

// DefaultParams returns the parameters used when none are configured.
func DefaultParams() Params {
	return Params{
		GutIsAboveThreshold: true,
		MinWidth:            10,
		MaxGap:              2,
		SpineSkipPixels:     0,
		SpineSmoothPixels:   1,
	}
}

// Step is the pixel distance between consecutive longitudinal samples.
func (p Params) Step() int { return p.SpineSkipPixels + 1 }

// SmoothWindow is the number of longitudinal samples averaged into the smoothed spine.
func (p Params) SmoothWindow() int {
	step := p.Step()
	n := (p.SpineSmoothPixels + step - 1) / step
	return max(n, 1)
}

func (p Params) Validate() error {
	if p.MinWidth < 1 {
		return fmt.Errorf("min width must be positive, got %d", p.MinWidth)
	}
	if p.MaxGap < 0 {
		return fmt.Errorf("max gap must not be negative, got %d", p.MaxGap)
	}
	if p.SpineSkipPixels < 0 {
		return fmt.Errorf("spine skip pixels must not be negative, got %d", p.SpineSkipPixels)
	}
	if p.SpineSmoothPixels < 0 {
		return fmt.Errorf("spine smooth pixels must not be negative, got %d", p.SpineSmoothPixels)
	}
	return nil
}
