package spill

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, to int) []int16 {
	var out []int16
	for v := from; v < to; v++ {
		out = append(out, int16(v))
	}
	return out
}

func TestSpillAtThreshold(t *testing.T) {
	b, err := New[int16](t.TempDir(), 100)
	require.NoError(t, err)
	t.Cleanup(func() { b.Release() })

	// 95 samples fill memory up to the threshold without spilling.
	for _, v := range seq(0, 95) {
		require.NoError(t, b.Add(v))
	}
	assert.Equal(t, int64(0), b.FileLen())
	assert.Equal(t, 95, b.MemoryLen())

	// The next sample spills the 40 oldest.
	require.NoError(t, b.Add(95))
	assert.Equal(t, int64(40), b.FileLen())
	assert.Equal(t, 56, b.MemoryLen())
	assert.Equal(t, int64(96), b.Len())

	fi, err := os.Stat(b.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(80), fi.Size())

	got, err := b.Read(30, 20)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(seq(30, 50), got))
}

func TestReadAcrossManySpills(t *testing.T) {
	b, err := NewWithSpill[int16](t.TempDir(), 10, 0.8, 0.5)
	require.NoError(t, err)
	t.Cleanup(func() { b.Release() })

	for _, v := range seq(0, 1000) {
		require.NoError(t, b.Add(v))
	}
	require.Equal(t, int64(1000), b.Len())
	assert.LessOrEqual(t, b.MemoryLen(), 8)

	all, err := b.Read(0, 0)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(seq(0, 1000), all))

	boundary := b.FileLen()
	got, err := b.Read(boundary-3, 6)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(seq(int(boundary)-3, int(boundary)+3), got))

	got, err = b.Read(boundary+1, 2)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(seq(int(boundary)+1, int(boundary)+3), got))
}

func TestReadClamps(t *testing.T) {
	b, err := NewWithSpill[float64](t.TempDir(), 4, 0.75, 0.5)
	require.NoError(t, err)
	t.Cleanup(func() { b.Release() })

	empty, err := b.Read(0, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, v := range []float64{0.5, 1.5, 2.5, 3.5, 4.5} {
		require.NoError(t, b.Add(v))
	}

	got, err := b.Read(-10, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, got)

	got, err = b.Read(3, 100)
	require.NoError(t, err)
	assert.Equal(t, []float64{3.5, 4.5}, got)

	got, err = b.Read(99, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{4.5}, got)
}

func TestFlushClearRelease(t *testing.T) {
	b, err := New[uint32](t.TempDir(), 8)
	require.NoError(t, err)

	for v := uint32(0); v < 5; v++ {
		require.NoError(t, b.Add(v))
	}
	require.NoError(t, b.Flush())
	assert.Equal(t, 0, b.MemoryLen())
	assert.Equal(t, int64(5), b.FileLen())
	got, err := b.Read(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, got)

	require.NoError(t, b.Clear())
	assert.Equal(t, int64(0), b.Len())
	fi, err := os.Stat(b.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(0), fi.Size())

	require.NoError(t, b.Add(9))
	got, err = b.Read(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{9}, got)

	require.NoError(t, b.Release())
	_, err = os.Stat(b.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestBuffersUseDistinctFiles(t *testing.T) {
	dir := t.TempDir()
	a, err := New[int8](dir, 4)
	require.NoError(t, err)
	b, err := New[int8](dir, 4)
	require.NoError(t, err)
	assert.NotEqual(t, a.Path(), b.Path())
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	_, err := New[int16](t.TempDir(), 0)
	assert.Error(t, err)
}

func TestNumericFile(t *testing.T) {
	f, err := NewNumericFile[float32](t.TempDir() + "/values.dat")
	require.NoError(t, err)

	require.NoError(t, f.Append([]float32{1, 2, 3}))
	require.NoError(t, f.Append([]float32{4}))
	n, err := f.Len()
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	vs, err := f.Read(2, 10)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, vs)

	vs, err = f.Read(4, 1)
	require.NoError(t, err)
	assert.Empty(t, vs)
}
