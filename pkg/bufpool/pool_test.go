//go:build unix

package bufpool

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileSizes(t *testing.T, p *Pool) []int64 {
	t.Helper()
	var out []int64
	for _, path := range p.Paths() {
		fi, err := os.Stat(path)
		require.NoError(t, err)
		out = append(out, fi.Size())
	}
	return out
}

func TestPoolLifecycle(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, 2, 100)
	require.NoError(t, p.Init())

	assert.Equal(t, []int64{100, 100}, fileSizes(t, p))
	assert.Equal(t, 2, p.Free())

	a, ok := p.Allocate()
	require.True(t, ok)
	assert.Len(t, a, 100)
	b, ok := p.Allocate()
	require.True(t, ok)
	assert.Equal(t, 0, p.Free())

	_, ok = p.Allocate()
	assert.False(t, ok)

	a[0], b[99] = 7, 9
	require.NoError(t, p.ReleaseAll())
	assert.Equal(t, 2, p.Free())

	// Writes reach the backing files.
	data, err := os.ReadFile(p.Paths()[0])
	require.NoError(t, err)
	assert.Equal(t, byte(7), data[0])
}

func TestPoolInitExtendsSmallerFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, New(dir, 2, 100).Init())

	p := New(dir, 2, 250)
	require.NoError(t, p.Init())
	assert.Equal(t, []int64{250, 250}, fileSizes(t, p))

	r, ok := p.Allocate()
	require.True(t, ok)
	assert.Len(t, r, 250)
	require.NoError(t, p.ReleaseAll())

	// A smaller pool over the same files leaves them alone.
	require.NoError(t, New(dir, 2, 50).Init())
	assert.Equal(t, []int64{250, 250}, fileSizes(t, p))
}

func TestAllocateN(t *testing.T) {
	p := New(t.TempDir(), 3, 64)
	require.NoError(t, p.Init())

	_, ok := p.AllocateN(4)
	assert.False(t, ok)
	assert.Equal(t, 3, p.Free())

	rs, ok := p.AllocateN(2)
	require.True(t, ok)
	assert.Len(t, rs, 2)
	assert.Equal(t, 1, p.Free())
	require.NoError(t, p.ReleaseAll())
}

func TestAllocateWithoutInit(t *testing.T) {
	p := New(t.TempDir(), 1, 64)
	_, ok := p.Allocate()
	assert.False(t, ok)
	assert.Equal(t, 1, p.Free())
}
