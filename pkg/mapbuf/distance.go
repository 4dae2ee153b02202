package mapbuf

import (
	"encoding/binary"
	"io"
	"math"

	"dmaple/pkg/tiff"
)

// MaxDistance is the largest distance a DistanceChannel can hold.
const MaxDistance = math.MaxUint16

// DistanceChannel holds non-negative pixel distances in 16-bit cells.
//
// A distance d is stored as the signed value d + math.MinInt16, so the whole
// unsigned range fits. Exported directories hold the plain unsigned distance.
type DistanceChannel struct {
	region
	maxRaw int16
}

func NewDistanceChannel(buf []byte, nx int) *DistanceChannel {
	return &DistanceChannel{region: newRegion(buf, nx, 1, 16), maxRaw: math.MinInt16}
}

func encodeDistance(d int) int16 {
	d = max(0, min(d, MaxDistance))
	return int16(d + math.MinInt16)
}

func (c *DistanceChannel) put(k int, d int) {
	raw := encodeDistance(d)
	binary.NativeEndian.PutUint16(c.buf[k:], uint16(raw))
	if raw > c.maxRaw {
		c.maxRaw = raw
	}
}

func (c *DistanceChannel) raw(k int) int16 {
	return int16(binary.NativeEndian.Uint16(c.buf[k:]))
}

// Append adds a distance, clamped to [0, MaxDistance]. It reports false when
// the region is full.
func (c *DistanceChannel) Append(d int) bool {
	k, ok := c.next()
	if ok {
		c.put(k, d)
	}
	return ok
}

func (c *DistanceChannel) Get(i, j int) int {
	return int(c.raw(c.offset(i, j))) - math.MinInt16
}

func (c *DistanceChannel) Set(i, j, d int) { c.put(c.offset(i, j), d) }

// Max is the largest distance written so far.
func (c *DistanceChannel) Max() int { return int(c.maxRaw) - math.MinInt16 }

// Color scales distances from zero to the running maximum onto [0, 255].
func (c *DistanceChannel) Color(i, j int) uint32 {
	span := int(c.maxRaw) - math.MinInt16
	if span <= 0 {
		return grey(0)
	}
	d := int(c.raw(c.offset(i, j))) - math.MinInt16
	return grey(uint32(255 * d / span))
}

func (c *DistanceChannel) Directory(id string, heightLimit int) *tiff.Directory {
	dir := c.directory(id, heightLimit)
	pix := make([]byte, len(dir.Pixels))
	for k := 0; k < len(pix); k += 2 {
		binary.NativeEndian.PutUint16(pix[k:], binary.NativeEndian.Uint16(dir.Pixels[k:])^0x8000)
	}
	dir.Pixels = pix
	return dir
}

// LoadDirectory restores unsigned distances and rescans them for the running maximum.
func (c *DistanceChannel) LoadDirectory(dir *tiff.Directory, src io.ReaderAt) (int, int, error) {
	ns, nt, err := c.load(dir, src)
	if err != nil {
		return 0, 0, err
	}
	c.maxRaw = math.MinInt16
	for k := 0; k+1 < c.pos; k += 2 {
		raw := int16(binary.NativeEndian.Uint16(c.buf[k:]) ^ 0x8000)
		binary.NativeEndian.PutUint16(c.buf[k:], uint16(raw))
		if raw > c.maxRaw {
			c.maxRaw = raw
		}
	}
	return ns, nt, nil
}
