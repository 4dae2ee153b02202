package tiff

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

type field struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func align(n int) int { return n + n&1 }

func shorts(vs ...uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		NativeOrder.PutUint16(b[2*i:], v)
	}
	return b
}

func long(v uint32) []byte {
	b := make([]byte, 4)
	NativeOrder.PutUint32(b, v)
	return b
}

func rational(r Rational) []byte {
	b := make([]byte, 8)
	NativeOrder.PutUint32(b, r.Num)
	NativeOrder.PutUint32(b[4:], r.Den)
	return b
}

func ascii(s string) []byte { return append([]byte(s), 0) }

func repeat(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// fields lists the entries of a directory in ascending tag order.
func (d *Directory) fields(pixelOffset uint32) []field {
	spp := d.SamplesPerPixel
	fs := []field{
		{tagImageWidth, typeLong, 1, long(uint32(d.Width))},
		{tagImageLength, typeLong, 1, long(uint32(d.Height))},
		{tagBitsPerSample, typeShort, uint32(spp), shorts(repeat(uint16(d.BitsPerSample), spp)...)},
		{tagCompression, typeShort, 1, shorts(1)},
		{tagPhotometric, typeShort, 1, shorts(d.photometric())},
	}
	if d.Description != "" {
		b := ascii(d.Description)
		fs = append(fs, field{tagImageDescription, typeASCII, uint32(len(b)), b})
	}
	fs = append(fs,
		field{tagStripOffsets, typeLong, 1, long(pixelOffset)},
		field{tagSamplesPerPixel, typeShort, 1, shorts(uint16(spp))},
		field{tagRowsPerStrip, typeLong, 1, long(uint32(max(d.Height, 1)))},
		field{tagStripByteCounts, typeLong, 1, long(uint32(d.ImageBytes()))},
	)
	hasRes := !d.XResolution.IsZero() || !d.YResolution.IsZero()
	if hasRes {
		fs = append(fs,
			field{tagXResolution, typeRational, 1, rational(d.XResolution)},
			field{tagYResolution, typeRational, 1, rational(d.YResolution)},
		)
	}
	fs = append(fs, field{tagPlanarConfig, typeShort, 1, shorts(1)})
	if hasRes {
		fs = append(fs, field{tagResolutionUnit, typeShort, 1, shorts(1)})
	}
	fs = append(fs, field{tagSampleFormat, typeShort, uint32(spp), shorts(repeat(1, spp)...)})
	if d.UniqueID != "" {
		b := ascii(d.UniqueID)
		fs = append(fs, field{tagImageUniqueID, typeASCII, uint32(len(b)), b})
	}
	return fs
}

// extraSize is the number of bytes needed outside the IFD for values that
// do not fit in an entry.
func extraSize(fs []field) int {
	n := 0
	for _, f := range fs {
		if len(f.data) > 4 {
			n += align(len(f.data))
		}
	}
	return n
}

// Encode writes the directories as a single TIFF file. Every directory is
// laid out as IFD, out-of-line values and then its pixel strip.
func Encode(w io.Writer, dirs []*Directory) error {
	if len(dirs) == 0 {
		return fmt.Errorf("no directories to write")
	}
	for i, d := range dirs {
		if err := d.validate(); err != nil {
			return fmt.Errorf("directory %d: %w", i, err)
		}
		if len(d.Pixels) < d.ImageBytes() {
			return fmt.Errorf("directory %d: %d pixel bytes, need %d", i, len(d.Pixels), d.ImageBytes())
		}
	}

	bw := bufio.NewWriter(w)
	header := make([]byte, 8)
	if NativeOrder.Uint16([]byte{1, 0}) == 1 {
		copy(header, "II")
	} else {
		copy(header, "MM")
	}
	NativeOrder.PutUint16(header[2:], 42)
	NativeOrder.PutUint32(header[4:], 8)
	if _, err := bw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	offset := 8
	for i, d := range dirs {
		n := len(d.fields(0))
		ifdSize := 2 + 12*n + 4
		extraOffset := offset + ifdSize
		pixelOffset := extraOffset + extraSize(d.fields(0))
		next := pixelOffset + align(d.ImageBytes())
		if i == len(dirs)-1 {
			next = 0
		}

		fs := d.fields(uint32(pixelOffset))
		ifd := make([]byte, ifdSize)
		NativeOrder.PutUint16(ifd, uint16(n))
		var extra []byte
		for k, f := range fs {
			e := ifd[2+12*k:]
			NativeOrder.PutUint16(e, f.tag)
			NativeOrder.PutUint16(e[2:], f.typ)
			NativeOrder.PutUint32(e[4:], f.count)
			if len(f.data) <= 4 {
				copy(e[8:12], f.data)
				continue
			}
			NativeOrder.PutUint32(e[8:], uint32(extraOffset+len(extra)))
			extra = append(extra, f.data...)
			if len(f.data)&1 == 1 {
				extra = append(extra, 0)
			}
		}
		NativeOrder.PutUint32(ifd[ifdSize-4:], uint32(next))

		if _, err := bw.Write(ifd); err != nil {
			return fmt.Errorf("writing directory %d: %w", i, err)
		}
		if _, err := bw.Write(extra); err != nil {
			return fmt.Errorf("writing directory %d values: %w", i, err)
		}
		pix := d.Pixels[:d.ImageBytes()]
		if _, err := bw.Write(pix); err != nil {
			return fmt.Errorf("writing directory %d pixels: %w", i, err)
		}
		if len(pix)&1 == 1 {
			if err := bw.WriteByte(0); err != nil {
				return fmt.Errorf("writing directory %d pixels: %w", i, err)
			}
		}
		offset = pixelOffset + align(len(pix))
	}
	return bw.Flush()
}

// WriteFile encodes the directories to a new file at path.
func WriteFile(path string, dirs []*Directory) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating TIFF file: %w", err)
	}
	if err := Encode(f, dirs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
