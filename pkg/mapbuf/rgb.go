package mapbuf

import (
	"io"

	"dmaple/pkg/tiff"
)

// RGBChannel holds interleaved 8-bit red, green and blue samples.
// Alpha is not stored and always reads back as opaque.
type RGBChannel struct {
	region
}

func NewRGBChannel(buf []byte, nx int) *RGBChannel {
	return &RGBChannel{region: newRegion(buf, nx, 3, 8)}
}

func (c *RGBChannel) put(k int, argb uint32) {
	c.buf[k] = uint8(argb >> 16)
	c.buf[k+1] = uint8(argb >> 8)
	c.buf[k+2] = uint8(argb)
}

// Append adds a packed ARGB colour, reporting false when the region is full.
func (c *RGBChannel) Append(argb uint32) bool {
	k, ok := c.next()
	if ok {
		c.put(k, argb)
	}
	return ok
}

func (c *RGBChannel) Get(i, j int) uint32 {
	k := c.offset(i, j)
	return 0xff<<24 | uint32(c.buf[k])<<16 | uint32(c.buf[k+1])<<8 | uint32(c.buf[k+2])
}

func (c *RGBChannel) Set(i, j int, argb uint32) { c.put(c.offset(i, j), argb) }

func (c *RGBChannel) Color(i, j int) uint32 { return c.Get(i, j) }

// Directory copies the written rows into a separate interleaved raster.
func (c *RGBChannel) Directory(id string, heightLimit int) *tiff.Directory {
	dir := c.directory(id, heightLimit)
	dir.Pixels = append([]byte(nil), dir.Pixels...)
	return dir
}

func (c *RGBChannel) LoadDirectory(dir *tiff.Directory, src io.ReaderAt) (int, int, error) {
	return c.load(dir, src)
}
