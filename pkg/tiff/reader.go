package tiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

const maxDirectories = 1024

var typeSizes = map[uint16]int{
	1: 1, // BYTE
	2: 1, // ASCII
	3: 2, // SHORT
	4: 4, // LONG
	5: 8, // RATIONAL
}

// Decode reads the headers of every directory in a TIFF file. Pixel data is
// not loaded; see Directory.ReadPixels.
func Decode(r io.ReaderAt) ([]*Directory, error) {
	header := make([]byte, 8)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("reading TIFF header: %w", err)
	}
	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid TIFF byte order %q", header[:2])
	}
	if order.Uint16(header[2:]) != 42 {
		return nil, fmt.Errorf("invalid TIFF magic number %d", order.Uint16(header[2:]))
	}

	var dirs []*Directory
	seen := map[uint32]bool{}
	for off := order.Uint32(header[4:]); off != 0; {
		if seen[off] || len(dirs) >= maxDirectories {
			return nil, fmt.Errorf("TIFF directory chain loops at offset %d", off)
		}
		seen[off] = true
		d, next, err := readDirectory(r, order, off)
		if err != nil {
			return nil, fmt.Errorf("directory %d: %w", len(dirs), err)
		}
		dirs = append(dirs, d)
		off = next
	}
	return dirs, nil
}

func readDirectory(r io.ReaderAt, order binary.ByteOrder, off uint32) (*Directory, uint32, error) {
	nb := make([]byte, 2)
	if _, err := r.ReadAt(nb, int64(off)); err != nil {
		return nil, 0, fmt.Errorf("reading entry count: %w", err)
	}
	n := int(order.Uint16(nb))
	entries := make([]byte, 12*n+4)
	if _, err := r.ReadAt(entries, int64(off)+2); err != nil {
		return nil, 0, fmt.Errorf("reading entries: %w", err)
	}

	d := &Directory{
		ByteOrder:       order,
		SamplesPerPixel: 1,
		BitsPerSample:   1,
		Compression:     1,
		PlanarConfig:    1,
	}
	for k := 0; k < n; k++ {
		e := entries[12*k:]
		tag := order.Uint16(e)
		typ := order.Uint16(e[2:])
		count := order.Uint32(e[4:])
		size, ok := typeSizes[typ]
		if !ok {
			continue
		}
		total := int64(size) * int64(count)
		var data []byte
		if total <= 4 {
			data = e[8 : 8+total]
		} else {
			if total > 1<<24 {
				return nil, 0, fmt.Errorf("tag %d value too large: %d bytes", tag, total)
			}
			data = make([]byte, total)
			if _, err := r.ReadAt(data, int64(order.Uint32(e[8:]))); err != nil {
				return nil, 0, fmt.Errorf("reading tag %d: %w", tag, err)
			}
		}
		d.set(tag, typ, data, order)
	}
	return d, order.Uint32(entries[12*n:]), nil
}

func uints(typ uint16, data []byte, order binary.ByteOrder) []uint32 {
	switch typ {
	case 1:
		out := make([]uint32, len(data))
		for i, b := range data {
			out[i] = uint32(b)
		}
		return out
	case typeShort:
		out := make([]uint32, len(data)/2)
		for i := range out {
			out[i] = uint32(order.Uint16(data[2*i:]))
		}
		return out
	case typeLong:
		out := make([]uint32, len(data)/4)
		for i := range out {
			out[i] = order.Uint32(data[4*i:])
		}
		return out
	}
	return nil
}

func first(vs []uint32) int {
	if len(vs) == 0 {
		return 0
	}
	return int(vs[0])
}

func (d *Directory) set(tag, typ uint16, data []byte, order binary.ByteOrder) {
	switch tag {
	case tagImageWidth:
		d.Width = first(uints(typ, data, order))
	case tagImageLength:
		d.Height = first(uints(typ, data, order))
	case tagBitsPerSample:
		d.BitsPerSample = first(uints(typ, data, order))
	case tagCompression:
		d.Compression = first(uints(typ, data, order))
	case tagSamplesPerPixel:
		d.SamplesPerPixel = first(uints(typ, data, order))
	case tagPlanarConfig:
		d.PlanarConfig = first(uints(typ, data, order))
	case tagStripOffsets:
		d.StripOffsets = uints(typ, data, order)
	case tagStripByteCounts:
		d.StripByteCounts = uints(typ, data, order)
	case tagImageDescription:
		if typ == typeASCII {
			d.Description = strings.TrimRight(string(data), "\x00")
		}
	case tagImageUniqueID:
		if typ == typeASCII {
			d.UniqueID = strings.TrimRight(string(data), "\x00")
		}
	case tagXResolution, tagYResolution:
		if typ != typeRational || len(data) < 8 {
			return
		}
		r := Rational{Num: order.Uint32(data), Den: order.Uint32(data[4:])}
		if tag == tagXResolution {
			d.XResolution = r
		} else {
			d.YResolution = r
		}
	}
}

// ReadPixels copies the strips of the directory from src into dst, converting
// 16-bit samples to native byte order. It returns the number of bytes copied.
func (d *Directory) ReadPixels(src io.ReaderAt, dst []byte) (int, error) {
	if d.Compression != 1 {
		return 0, fmt.Errorf("unsupported compression %d", d.Compression)
	}
	if d.PlanarConfig != 1 {
		return 0, fmt.Errorf("unsupported planar configuration %d", d.PlanarConfig)
	}
	if len(d.StripOffsets) != len(d.StripByteCounts) {
		return 0, fmt.Errorf("%d strip offsets but %d strip byte counts", len(d.StripOffsets), len(d.StripByteCounts))
	}
	need := d.ImageBytes()
	if need > len(dst) {
		return 0, fmt.Errorf("image of %d bytes does not fit in %d bytes", need, len(dst))
	}

	n := 0
	for i, off := range d.StripOffsets {
		c := min(int(d.StripByteCounts[i]), need-n)
		if c <= 0 {
			break
		}
		if _, err := src.ReadAt(dst[n:n+c], int64(off)); err != nil {
			return n, fmt.Errorf("reading strip %d: %w", i, err)
		}
		n += c
	}
	if n < need {
		return n, fmt.Errorf("strips hold %d bytes, image needs %d", n, need)
	}

	if d.BitsPerSample == 16 && d.ByteOrder != NativeOrder {
		for k := 0; k+1 < n; k += 2 {
			dst[k], dst[k+1] = dst[k+1], dst[k]
		}
	}
	return n, nil
}

// ReadFile decodes the directory headers of the TIFF file at path.
func ReadFile(path string) ([]*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening TIFF file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
