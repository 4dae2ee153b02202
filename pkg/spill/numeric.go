package spill

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Number is any fixed-width numeric sample type.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// byteOrder of every numeric file.
var byteOrder = binary.LittleEndian

// NumericFile is an append-only binary file of fixed-width numbers.
type NumericFile[T Number] struct {
	path  string
	width int64
}

// NewNumericFile opens the file at path, creating it empty if needed.
func NewNumericFile[T Number](path string) (*NumericFile[T], error) {
	var zero T
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating numeric file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("creating numeric file: %w", err)
	}
	return &NumericFile[T]{path: path, width: int64(binary.Size(zero))}, nil
}

func (f *NumericFile[T]) Path() string { return f.path }

// Len is the number of samples in the file.
func (f *NumericFile[T]) Len() (int64, error) {
	fi, err := os.Stat(f.path)
	if err != nil {
		return 0, fmt.Errorf("stat numeric file: %w", err)
	}
	return fi.Size() / f.width, nil
}

// Append writes samples to the end of the file.
func (f *NumericFile[T]) Append(values []T) error {
	if len(values) == 0 {
		return nil
	}
	fh, err := os.OpenFile(f.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening numeric file: %w", err)
	}
	w := bufio.NewWriter(fh)
	if err := binary.Write(w, byteOrder, values); err != nil {
		fh.Close()
		return fmt.Errorf("writing %d samples: %w", len(values), err)
	}
	if err := w.Flush(); err != nil {
		fh.Close()
		return fmt.Errorf("writing %d samples: %w", len(values), err)
	}
	return fh.Close()
}

// Read returns up to n samples starting at sample offset. Fewer samples are
// returned when the file ends first.
func (f *NumericFile[T]) Read(offset int64, n int) ([]T, error) {
	total, err := f.Len()
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset >= total || n <= 0 {
		return nil, nil
	}
	n = int(min(int64(n), total-offset))

	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("opening numeric file: %w", err)
	}
	defer fh.Close()
	out := make([]T, n)
	r := io.NewSectionReader(fh, offset*f.width, int64(n)*f.width)
	if err := binary.Read(bufio.NewReader(r), byteOrder, out); err != nil {
		return nil, fmt.Errorf("reading %d samples at %d: %w", n, offset, err)
	}
	return out, nil
}

// Clear empties the file by deleting and recreating it.
func (f *NumericFile[T]) Clear() error {
	if err := f.Delete(); err != nil {
		return err
	}
	fh, err := os.Create(f.path)
	if err != nil {
		return fmt.Errorf("recreating numeric file: %w", err)
	}
	return fh.Close()
}

// Delete removes the file. A missing file is not an error.
func (f *NumericFile[T]) Delete() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting numeric file: %w", err)
	}
	return nil
}
