package main

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmaple/pkg/config"
	"dmaple/pkg/luma"
)

func TestInitWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dmaple.yaml")
	require.NoError(t, run([]string{"-config", path, "-init"}))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestRunErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dmaple.yaml")
	require.NoError(t, run([]string{"-config", path, "-init"}))

	assert.ErrorContains(t, run([]string{"-config", path}), "no frame source")
	assert.ErrorContains(t, run([]string{"-config", path, t.TempDir()}), "no ROIs")
	assert.ErrorContains(t, run([]string{"-config", path, "-fps", "-1", "x"}), "invalid configuration")
	assert.Error(t, run([]string{"-no-such-flag"}))
}

func TestImageDirOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.PNG", "notes.txt", "c.bmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	d, err := openImageDir(dir, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.PNG"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "c.bmp"),
	}, d.paths)
	assert.Equal(t, 250*time.Millisecond, d.interval)

	_, err = openImageDir(t.TempDir(), 4)
	assert.Error(t, err)
}

func TestImageDirFrames(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"f0.png", "f1.png"} {
		img := image.NewGray(image.Rect(0, 0, 6, 4))
		img.Pix[0] = uint8(100 * (i + 1))
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}

	src, err := openSource(dir, 10)
	require.NoError(t, err)
	defer src.Close()

	for i := 0; i < 2; i++ {
		f, ts, err := src.Next()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(i)*100*time.Millisecond, ts)
		assert.Equal(t, 6, f.Width())
		assert.Equal(t, 4, f.Height())
		assert.InDelta(t, float32(100*(i+1)), f.Pixel(0, 0), 1)
	}
	_, _, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRotate(t *testing.T) {
	f := luma.NewFrame(3, 2, 0)
	f.Set(0, 0, 9)

	r := rotate(f, 1)
	assert.Equal(t, 2, r.Width())
	assert.Equal(t, float32(9), r.Pixel(1, 0))

	assert.Same(t, f, rotate(f, 4))
	back := rotate(f, -1)
	assert.Equal(t, float32(9), back.Pixel(0, 2))
}
