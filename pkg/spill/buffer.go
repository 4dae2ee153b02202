// Package spill provides an in-memory sample buffer that moves its oldest
// samples to a file as it fills, so recordings can outgrow memory.
package spill

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"dmaple/internal/logging"
)

const (
	// DefaultThreshold is the fraction of capacity at which samples are spilled.
	DefaultThreshold = 0.95
	// DefaultFraction is the fraction of capacity spilled each time.
	DefaultFraction = 0.4
)

// Buffer holds the newest samples in memory and the rest in a file. Samples
// read back in insertion order, file first. A Buffer is not safe for
// concurrent use.
type Buffer[T Number] struct {
	capacity int
	wt       int
	wf       int
	mem      ring[T]
	file     *NumericFile[T]
	nf       int64
}

// New creates a buffer with the default spill threshold and fraction.
func New[T Number](dir string, capacity int) (*Buffer[T], error) {
	return NewWithSpill[T](dir, capacity, DefaultThreshold, DefaultFraction)
}

// NewWithSpill creates a buffer of capacity samples whose backing file lives
// in dir. Once threshold*capacity samples are held in memory, the oldest
// fraction*capacity are appended to the file.
func NewWithSpill[T Number](dir string, capacity int, threshold, fraction float64) (*Buffer[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spill directory: %w", err)
	}
	f, err := NewNumericFile[T](filepath.Join(dir, "spill_"+uuid.NewString()+".dat"))
	if err != nil {
		return nil, err
	}
	wt := max(1, min(int(threshold*float64(capacity)), capacity))
	wf := max(1, min(int(fraction*float64(capacity)), wt))
	return &Buffer[T]{
		capacity: capacity,
		wt:       wt,
		wf:       wf,
		mem:      newRing[T](capacity),
		file:     f,
	}, nil
}

// Path is the backing file.
func (b *Buffer[T]) Path() string { return b.file.Path() }

// Len is the total number of samples held.
func (b *Buffer[T]) Len() int64 { return b.nf + int64(b.mem.n) }

// MemoryLen is the number of samples held in memory.
func (b *Buffer[T]) MemoryLen() int { return b.mem.n }

// FileLen is the number of samples spilled to the file.
func (b *Buffer[T]) FileLen() int64 { return b.nf }

// Add appends a sample, first spilling the oldest samples when memory has
// reached the threshold.
func (b *Buffer[T]) Add(v T) error {
	if b.mem.n >= b.wt {
		if err := b.spill(b.wf); err != nil {
			return err
		}
		logging.Debugf("spilled %d samples to %s: memory %d, file %d (%s)",
			b.wf, b.file.Path(), b.mem.n, b.nf, logging.Bytes(b.nf*b.file.width))
	}
	b.mem.push(v)
	return nil
}

func (b *Buffer[T]) spill(n int) error {
	if err := b.file.Append(b.mem.slice(0, n)); err != nil {
		return fmt.Errorf("spilling samples: %w", err)
	}
	b.mem.drop(n)
	b.nf += int64(n)
	return nil
}

// Read returns length samples from offset, in insertion order. offset is
// clamped to the nearest held sample. A length below 1, or one running past
// the end, reads to the end.
func (b *Buffer[T]) Read(offset int64, length int) ([]T, error) {
	total := b.Len()
	if total == 0 {
		return nil, nil
	}
	off := max(0, min(offset, total-1))
	n := int64(length)
	if length < 1 || off+n > total {
		n = total - off
	}

	out := make([]T, 0, n)
	if off < b.nf {
		fromFile := min(n, b.nf-off)
		vs, err := b.file.Read(off, int(fromFile))
		if err != nil {
			return nil, err
		}
		if int64(len(vs)) != fromFile {
			return nil, fmt.Errorf("spill file holds %d of %d samples", len(vs), fromFile)
		}
		out = append(out, vs...)
	}
	start := int(max(0, off-b.nf))
	rest := int(n) - len(out)
	out = append(out, b.mem.slice(start, rest)...)
	return out, nil
}

// Flush moves every sample in memory to the file.
func (b *Buffer[T]) Flush() error {
	if b.mem.n == 0 {
		return nil
	}
	return b.spill(b.mem.n)
}

// Clear discards every sample and starts a fresh backing file.
func (b *Buffer[T]) Clear() error {
	b.mem.reset()
	b.nf = 0
	return b.file.Clear()
}

// Release discards every sample and deletes the backing file.
func (b *Buffer[T]) Release() error {
	b.mem.reset()
	b.nf = 0
	return b.file.Delete()
}

// ring is a fixed-capacity deque.
type ring[T any] struct {
	buf  []T
	head int
	n    int
}

func newRing[T any](capacity int) ring[T] { return ring[T]{buf: make([]T, capacity)} }

func (r *ring[T]) push(v T) {
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
}

func (r *ring[T]) drop(k int) {
	k = min(k, r.n)
	r.head = (r.head + k) % len(r.buf)
	r.n -= k
}

// slice copies k elements starting at the i-th oldest.
func (r *ring[T]) slice(i, k int) []T {
	k = max(0, min(k, r.n-i))
	out := make([]T, k)
	for j := range out {
		out[j] = r.buf[(r.head+i+j)%len(r.buf)]
	}
	return out
}

func (r *ring[T]) reset() { r.head, r.n = 0, 0 }
