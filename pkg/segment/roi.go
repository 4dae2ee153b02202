package segment

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Edge is the side of an ROI from which the gut is seeded and scanned.
type Edge int

const (
	EdgeLeft Edge = iota
	EdgeTop
	EdgeRight
	EdgeBottom
)

func (e Edge) String() string {
	switch e {
	case EdgeLeft:
		return "left"
	case EdgeTop:
		return "top"
	case EdgeRight:
		return "right"
	case EdgeBottom:
		return "bottom"
	default:
		return "unknown"
	}
}

// ParseEdge parses the lower-case edge name.
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return EdgeLeft, nil
	case "top":
		return EdgeTop, nil
	case "right":
		return EdgeRight, nil
	case "bottom":
		return EdgeBottom, nil
	}
	return EdgeLeft, fmt.Errorf("unknown seeding edge %q", s)
}

func (e Edge) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *Edge) UnmarshalText(b []byte) error {
	v, err := ParseEdge(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Vertical reports whether the edge is a vertical side of the ROI, in which
// case the gut lies horizontally across the field.
func (e Edge) Vertical() bool { return e == EdgeLeft || e == EdgeRight }

// Rotate returns the edge after the frame is turned clockwise by quarterTurns.
func (e Edge) Rotate(quarterTurns int) Edge {
	return Edge(((int(e)+quarterTurns)%4 + 4) % 4)
}

// Transpose returns the edge after the frame is mirrored about its diagonal.
func (e Edge) Transpose() Edge {
	switch e {
	case EdgeLeft:
		return EdgeTop
	case EdgeTop:
		return EdgeLeft
	case EdgeRight:
		return EdgeBottom
	default:
		return EdgeRight
	}
}

// MapKind identifies a family of maps derived from an ROI.
type MapKind int

const (
	MapDiameter MapKind = iota
	// MapRadius produces two maps, the left and right radius.
	MapRadius
	MapSpine
	MapLight
)

func (k MapKind) String() string {
	switch k {
	case MapDiameter:
		return "diameter"
	case MapRadius:
		return "radius"
	case MapSpine:
		return "spine"
	case MapLight:
		return "light"
	default:
		return "unknown"
	}
}

// Maps is the number of maps produced by the kind.
func (k MapKind) Maps() int {
	if k == MapRadius {
		return 2
	}
	return 1
}

// BytesPerSample is the storage cost of one space-time sample of the kind.
func (k MapKind) BytesPerSample() int {
	switch k {
	case MapDiameter, MapRadius:
		return 2
	default:
		return 1
	}
}

func (k MapKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *MapKind) UnmarshalText(b []byte) error {
	for _, c := range []MapKind{MapDiameter, MapRadius, MapSpine, MapLight} {
		if strings.EqualFold(string(b), c.String()) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown map kind %q", string(b))
}

// ROI is a rectangular region of the camera field anchoring one map series.
// Bounds are inclusive pixel indices.
type ROI struct {
	UID         string    `yaml:"uid"`
	Left        int       `yaml:"left"`
	Top         int       `yaml:"top"`
	Right       int       `yaml:"right"`
	Bottom      int       `yaml:"bottom"`
	SeedingEdge Edge      `yaml:"seeding_edge"`
	Threshold   float32   `yaml:"threshold"`
	Maps        []MapKind `yaml:"maps"`
}

// NewROI creates an ROI with a fresh unique id. Without maps it produces a diameter map.
func NewROI(left, top, right, bottom int, edge Edge, threshold float32, maps ...MapKind) ROI {
	if len(maps) == 0 {
		maps = []MapKind{MapDiameter}
	}
	return ROI{
		UID:         uuid.NewString(),
		Left:        left,
		Top:         top,
		Right:       right,
		Bottom:      bottom,
		SeedingEdge: edge,
		Threshold:   threshold,
		Maps:        maps,
	}
}

func (r ROI) String() string {
	return fmt.Sprintf("{UID=%s, (%d,%d)-(%d,%d), Edge=%s, Threshold=%g, Maps=%v}",
		r.UID, r.Left, r.Top, r.Right, r.Bottom, r.SeedingEdge, r.Threshold, r.Maps)
}

// NMaps is the total number of maps the ROI produces.
func (r ROI) NMaps() int {
	n := 0
	for _, k := range r.Maps {
		n += k.Maps()
	}
	return n
}

// Has reports whether the ROI produces maps of kind k.
func (r ROI) Has(k MapKind) bool {
	for _, m := range r.Maps {
		if m == k {
			return true
		}
	}
	return false
}

// CropToFrame orders the bounds and clamps them into a width x height frame.
func (r ROI) CropToFrame(width, height int) ROI {
	if r.Left > r.Right {
		r.Left, r.Right = r.Right, r.Left
	}
	if r.Top > r.Bottom {
		r.Top, r.Bottom = r.Bottom, r.Top
	}
	r.Left = clamp(r.Left, 0, width-1)
	r.Right = clamp(r.Right, 0, width-1)
	r.Top = clamp(r.Top, 0, height-1)
	r.Bottom = clamp(r.Bottom, 0, height-1)
	return r
}

// Rotate returns the ROI in a frame of the given size turned clockwise by 90°.
func (r ROI) Rotate(frameHeight int) ROI {
	left, top, right, bottom := frameHeight-1-r.Bottom, r.Left, frameHeight-1-r.Top, r.Right
	r.Left, r.Top, r.Right, r.Bottom = left, top, right, bottom
	r.SeedingEdge = r.SeedingEdge.Rotate(1)
	return r
}

// Transpose returns the ROI mirrored about the frame diagonal.
func (r ROI) Transpose() ROI {
	r.Left, r.Top = r.Top, r.Left
	r.Right, r.Bottom = r.Bottom, r.Right
	r.SeedingEdge = r.SeedingEdge.Transpose()
	return r
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}
