// Package mapseries turns a stream of camera frames into the spatio-temporal
// maps of one ROI.
package mapseries

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"dmaple/internal/logging"
	"dmaple/pkg/luma"
	"dmaple/pkg/mapbuf"
	"dmaple/pkg/segment"
)

// Channel names, in export and render order. They also identify each
// directory of an exported TIFF.
const (
	Diameter    = "diameter"
	RadiusLeft  = "radius_left"
	RadiusRight = "radius_right"
	Spine       = "spine"
	Light       = "light"
)

// Resolution is a number of map pixels per physical unit.
type Resolution struct {
	Value float64 `yaml:"value"`
	Unit  string  `yaml:"unit"`
}

func (r Resolution) String() string { return fmt.Sprintf("%g/%s", r.Value, r.Unit) }

// Series records the maps of one ROI.
//
// Update must be called from a single goroutine. Render may run concurrently
// with Update and then sees the series as of the last complete frame or, at
// worst, a partially written final row.
type Series struct {
	roi      segment.ROI
	params   segment.Params
	detector *segment.Detector
	ns       int
	nt       atomic.Int64

	spatial  Resolution
	temporal Resolution

	diameter    *mapbuf.DistanceChannel
	radiusLeft  *mapbuf.DistanceChannel
	radiusRight *mapbuf.DistanceChannel
	spine       *mapbuf.ByteChannel
	light       *mapbuf.ByteChannel

	segmented bool
	overflow  atomic.Bool
}

type namedChannel struct {
	name string
	ch   mapbuf.Channel
}

// New creates a series for the ROI cropped to a frameWidth x frameHeight
// field. No samples can be recorded until buffers are provided.
func New(roi segment.ROI, params segment.Params, frameWidth, frameHeight int) *Series {
	roi = roi.CropToFrame(frameWidth, frameHeight)
	d := segment.NewDetector(roi, params)
	return &Series{
		roi:      roi,
		params:   params,
		detector: d,
		ns:       d.Samples(),
		spatial:  Resolution{Value: 1},
		temporal: Resolution{Value: 1, Unit: "s"},
	}
}

func (s *Series) ROI() segment.ROI { return s.roi }

func (s *Series) Params() segment.Params { return s.params }

func (s *Series) Detector() *segment.Detector { return s.detector }

// NS is the number of spatial samples of every map.
func (s *Series) NS() int { return s.ns }

// NT is the number of frames recorded.
func (s *Series) NT() int { return int(s.nt.Load()) }

// Overflowed reports whether a buffer filled up. Once set, further frames are ignored.
func (s *Series) Overflowed() bool { return s.overflow.Load() }

// NMaps is the number of buffers the series needs.
func (s *Series) NMaps() int { return s.roi.NMaps() }

// BufferSize is the number of bytes needed to hold frames frames of the
// widest sample type of the series.
func (s *Series) BufferSize(frames int) int {
	bps := 1
	for _, k := range s.roi.Maps {
		bps = max(bps, k.BytesPerSample())
	}
	return s.ns * frames * bps
}

// ProvideBuffers creates a channel over each region, in the order of the ROI
// maps. It reports false when there are too few regions.
func (s *Series) ProvideBuffers(regions [][]byte) bool {
	if len(regions) < s.NMaps() {
		return false
	}
	i := 0
	for _, k := range s.roi.Maps {
		switch k {
		case segment.MapDiameter:
			s.diameter = mapbuf.NewDistanceChannel(regions[i], s.ns)
		case segment.MapRadius:
			s.radiusLeft = mapbuf.NewDistanceChannel(regions[i], s.ns)
			s.radiusRight = mapbuf.NewDistanceChannel(regions[i+1], s.ns)
		case segment.MapSpine:
			s.spine = mapbuf.NewByteChannel(regions[i], s.ns)
		case segment.MapLight:
			s.light = mapbuf.NewByteChannel(regions[i], s.ns)
		}
		i += k.Maps()
	}
	// The light map alone does not need the gut to be found.
	s.segmented = !(s.NMaps() == 1 && s.light != nil)
	return true
}

func (s *Series) channels() []namedChannel {
	var out []namedChannel
	add := func(name string, ch mapbuf.Channel, ok bool) {
		if ok {
			out = append(out, namedChannel{name, ch})
		}
	}
	add(Diameter, s.diameter, s.diameter != nil)
	add(RadiusLeft, s.radiusLeft, s.radiusLeft != nil)
	add(RadiusRight, s.radiusRight, s.radiusRight != nil)
	add(Spine, s.spine, s.spine != nil)
	add(Light, s.light, s.light != nil)
	return out
}

// ChannelNames lists the channels of the series in render order.
func (s *Series) ChannelNames() []string {
	var names []string
	for _, c := range s.channels() {
		names = append(names, c.name)
	}
	return names
}

// Update adds one frame to the maps. The first frame seeds the detector; a
// frame on which no gut is found is skipped. A frame is only recorded when
// every channel has room for it.
func (s *Series) Update(img luma.Image) {
	if s.overflow.Load() {
		return
	}
	chans := s.channels()
	if len(chans) == 0 {
		return
	}

	if s.segmented {
		if s.NT() == 0 {
			if !s.detector.Seed(img) {
				return
			}
		} else {
			s.detector.Track(img)
		}
	}

	for _, c := range chans {
		if c.ch.Remaining() < s.ns {
			s.overflow.Store(true)
			logging.Warningf("ROI %s: %s map full after %d frames", s.roi.UID, c.name, s.NT())
			return
		}
	}

	g := s.detector.Geometry()
	for i, long := range g.Long {
		if s.diameter != nil {
			s.diameter.Append(s.detector.Diameter(i))
		}
		if s.radiusLeft != nil {
			s.radiusLeft.Append(s.detector.LowerRadius(i))
			s.radiusRight.Append(s.detector.UpperRadius(i))
		}
		if s.spine != nil {
			s.spine.Append(toByte(g.Pixel(img, long, s.detector.Spine(i))))
		}
		if s.light != nil {
			var sum float64
			for t := g.TransStart; t <= g.TransEnd; t++ {
				sum += float64(g.Pixel(img, long, t))
			}
			s.light.Append(toByte(float32(sum / float64(g.TransWidth()))))
		}
	}
	s.nt.Add(1)
}

func toByte(v float32) uint8 {
	return uint8(max(0, min(v, 255)))
}

// SetSpatialPixelsPerUnit sets the spatial resolution from a field
// calibration, allowing for skipped pixels.
func (s *Series) SetSpatialPixelsPerUnit(pixelsPerUnit float64, unit string) {
	s.spatial = Resolution{Value: pixelsPerUnit / float64(s.detector.Geometry().Step), Unit: unit}
}

// SetFrameRate sets the temporal resolution in frames per second.
func (s *Series) SetFrameRate(fps float64) {
	s.temporal = Resolution{Value: fps, Unit: "s"}
}

// SetFrameInterval sets the temporal resolution from the seconds between frames.
func (s *Series) SetFrameInterval(seconds float64) {
	if seconds <= 0 {
		return
	}
	s.SetFrameRate(1 / seconds)
}

// SetDuration sets the temporal resolution from the wall-clock length of the recording.
func (s *Series) SetDuration(d time.Duration) {
	if d <= 0 || s.NT() == 0 {
		return
	}
	s.SetFrameRate(float64(s.NT()) / d.Seconds())
}

func (s *Series) Spatial() Resolution { return s.spatial }

func (s *Series) Temporal() Resolution { return s.temporal }

// Duration is the recording length implied by the temporal resolution.
func (s *Series) Duration() time.Duration {
	if s.temporal.Value <= 0 || math.IsInf(s.temporal.Value, 0) {
		return 0
	}
	return time.Duration(float64(s.NT()) / s.temporal.Value * float64(time.Second))
}
