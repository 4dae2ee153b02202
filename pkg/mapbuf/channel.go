// Package mapbuf stores spatio-temporal map samples in fixed byte regions.
//
// A channel views its region as rows of nx samples, one row per frame,
// appended in time order. Every channel can export itself as a TIFF directory
// and be reloaded from one.
package mapbuf

import (
	"fmt"
	"io"

	"dmaple/pkg/tiff"
)

// Channel is the behaviour shared by every map channel.
type Channel interface {
	// Width is the number of spatial samples per row.
	Width() int
	// Rows is the number of complete rows written.
	Rows() int
	// Cap is the number of rows the region can hold.
	Cap() int
	// Remaining is the number of samples that can still be appended.
	Remaining() int
	// Color is the packed ARGB colour used to display sample (i, j).
	Color(i, j int) uint32
	// Directory exports at most heightLimit rows; a negative limit exports all.
	Directory(id string, heightLimit int) *tiff.Directory
	// LoadDirectory replaces the channel contents with a TIFF directory read
	// from src and returns the restored width and row count.
	LoadDirectory(dir *tiff.Directory, src io.ReaderAt) (ns, nt int, err error)
}

type region struct {
	buf  []byte
	nx   int
	bps  int
	pos  int
	spp  int
	bits int
}

func newRegion(buf []byte, nx, spp, bits int) region {
	return region{buf: buf, nx: nx, bps: spp * bits / 8, spp: spp, bits: bits}
}

func (r *region) Width() int { return r.nx }

func (r *region) Rows() int {
	if r.nx == 0 {
		return 0
	}
	return r.pos / (r.nx * r.bps)
}

func (r *region) Cap() int {
	if r.nx == 0 {
		return 0
	}
	return len(r.buf) / (r.nx * r.bps)
}

func (r *region) Remaining() int { return (len(r.buf) - r.pos) / r.bps }

// Position is the write cursor in bytes.
func (r *region) Position() int { return r.pos }

// Reset rewinds the write cursor.
func (r *region) Reset() { r.pos = 0 }

func (r *region) next() (int, bool) {
	if r.pos+r.bps > len(r.buf) {
		return 0, false
	}
	k := r.pos
	r.pos += r.bps
	return k, true
}

// offset is the byte offset of sample (i, j). It panics outside the written area.
func (r *region) offset(i, j int) int {
	k := (j*r.nx + i) * r.bps
	if i < 0 || i >= r.nx || j < 0 || k+r.bps > r.pos {
		panic(fmt.Sprintf("mapbuf: sample (%d, %d) outside %dx%d map", i, j, r.nx, r.Rows()))
	}
	return k
}

func (r *region) height(limit int) int {
	h := r.Rows()
	if limit >= 0 {
		h = min(h, limit)
	}
	return h
}

func (r *region) directory(id string, limit int) *tiff.Directory {
	h := r.height(limit)
	return &tiff.Directory{
		Width:           r.nx,
		Height:          h,
		SamplesPerPixel: r.spp,
		BitsPerSample:   r.bits,
		UniqueID:        id,
		Pixels:          r.buf[:r.nx*h*r.bps],
	}
}

func (r *region) load(dir *tiff.Directory, src io.ReaderAt) (int, int, error) {
	if dir.SamplesPerPixel != r.spp || dir.BitsPerSample != r.bits {
		return 0, 0, fmt.Errorf("directory %q has %d x %d-bit samples, channel needs %d x %d-bit",
			dir.UniqueID, dir.SamplesPerPixel, dir.BitsPerSample, r.spp, r.bits)
	}
	n, err := dir.ReadPixels(src, r.buf)
	if err != nil {
		return 0, 0, fmt.Errorf("loading directory %q: %w", dir.UniqueID, err)
	}
	r.nx = dir.Width
	r.pos = n
	return dir.Width, dir.Height, nil
}

func grey(v uint32) uint32 {
	return 0xff<<24 | v<<16 | v<<8 | v
}
