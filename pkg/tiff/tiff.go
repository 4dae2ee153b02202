// Package tiff reads and writes uncompressed, multi-directory baseline TIFF
// files holding one strip per directory.
//
// Pixel data is written in the native byte order of the host and every
// directory may carry a unique identifier (tag 42016) so a reader can pick a
// directory by name.
package tiff

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagXResolution      = 282
	tagYResolution      = 283
	tagPlanarConfig     = 284
	tagResolutionUnit   = 296
	tagSampleFormat     = 339
	tagImageUniqueID    = 42016
)

const (
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

const (
	PhotometricBlackIsZero = 1
	PhotometricRGB         = 2
)

// NativeOrder is the byte order pixel data is written in.
var NativeOrder binary.ByteOrder = nativeOrder()

func nativeOrder() binary.ByteOrder {
	b := [2]byte{}
	binary.NativeEndian.PutUint16(b[:], 1)
	if b[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Rational is an unsigned TIFF fraction.
type Rational struct {
	Num uint32
	Den uint32
}

// RationalDenominator is the fixed denominator used when converting floats.
const RationalDenominator = 100000

// FloatToRational converts a non-negative value to a fraction over RationalDenominator.
func FloatToRational(v float64) Rational {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	n := math.Round(v * RationalDenominator)
	if n > math.MaxUint32 {
		n = math.MaxUint32
	}
	return Rational{Num: uint32(n), Den: RationalDenominator}
}

// Float returns the value of the fraction, or zero for a zero denominator.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) IsZero() bool { return r.Den == 0 }

// Directory is a single image of a TIFF file.
type Directory struct {
	Width           int
	Height          int
	SamplesPerPixel int
	BitsPerSample   int
	UniqueID        string
	Description     string
	XResolution     Rational
	YResolution     Rational

	// Pixels holds chunky samples in native byte order. Only used when writing.
	Pixels []byte

	// Set when reading.
	ByteOrder       binary.ByteOrder
	Compression     int
	PlanarConfig    int
	StripOffsets    []uint32
	StripByteCounts []uint32
}

// BytesPerPixel is the size of one chunky pixel.
func (d *Directory) BytesPerPixel() int {
	return d.SamplesPerPixel * d.BitsPerSample / 8
}

// ImageBytes is the size of the uncompressed image.
func (d *Directory) ImageBytes() int {
	return d.Width * d.Height * d.BytesPerPixel()
}

func (d *Directory) validate() error {
	if d.Width < 0 || d.Height < 0 {
		return fmt.Errorf("invalid size %dx%d", d.Width, d.Height)
	}
	if d.SamplesPerPixel != 1 && d.SamplesPerPixel != 3 {
		return fmt.Errorf("unsupported samples per pixel: %d", d.SamplesPerPixel)
	}
	if d.BitsPerSample != 8 && d.BitsPerSample != 16 {
		return fmt.Errorf("unsupported bits per sample: %d", d.BitsPerSample)
	}
	return nil
}

func (d *Directory) photometric() uint16 {
	if d.SamplesPerPixel == 3 {
		return PhotometricRGB
	}
	return PhotometricBlackIsZero
}

// Find returns the directory with the given unique id, or nil.
func Find(dirs []*Directory, id string) *Directory {
	for _, d := range dirs {
		if d.UniqueID == id {
			return d
		}
	}
	return nil
}
