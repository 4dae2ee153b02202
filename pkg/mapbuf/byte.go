package mapbuf

import (
	"io"

	"dmaple/pkg/tiff"
)

// ByteChannel holds one unsigned byte per sample, shown as grey.
type ByteChannel struct {
	region
}

func NewByteChannel(buf []byte, nx int) *ByteChannel {
	return &ByteChannel{region: newRegion(buf, nx, 1, 8)}
}

// Append adds a sample, reporting false when the region is full.
func (c *ByteChannel) Append(v uint8) bool {
	k, ok := c.next()
	if ok {
		c.buf[k] = v
	}
	return ok
}

func (c *ByteChannel) Get(i, j int) uint8 { return c.buf[c.offset(i, j)] }

func (c *ByteChannel) Set(i, j int, v uint8) { c.buf[c.offset(i, j)] = v }

func (c *ByteChannel) Color(i, j int) uint32 { return grey(uint32(c.Get(i, j))) }

func (c *ByteChannel) Directory(id string, heightLimit int) *tiff.Directory {
	return c.directory(id, heightLimit)
}

func (c *ByteChannel) LoadDirectory(dir *tiff.Directory, src io.ReaderAt) (int, int, error) {
	return c.load(dir, src)
}
