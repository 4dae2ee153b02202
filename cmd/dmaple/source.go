package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"dmaple/pkg/luma"
)

// frameSource yields camera frames in order. Next returns io.EOF after the
// last frame. Timestamps share an arbitrary origin.
type frameSource interface {
	Next() (*luma.Frame, time.Duration, error)
	Close() error
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}

// openSource opens a directory of still images or a video file.
func openSource(path string, fps float64) (frameSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame source: %w", err)
	}
	if fi.IsDir() {
		return openImageDir(path, fps)
	}
	return openVideo(path)
}

// imageDir plays the images of a directory in name order at a fixed rate.
type imageDir struct {
	paths    []string
	next     int
	interval time.Duration
}

func openImageDir(dir string, fps float64) (*imageDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing frames: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	slices.Sort(paths)
	return &imageDir{paths: paths, interval: time.Duration(float64(time.Second) / fps)}, nil
}

func (d *imageDir) Next() (*luma.Frame, time.Duration, error) {
	if d.next >= len(d.paths) {
		return nil, 0, io.EOF
	}
	i := d.next
	d.next++
	f, err := loadImage(d.paths[i])
	if err != nil {
		return nil, 0, err
	}
	return f, time.Duration(i) * d.interval, nil
}

func (d *imageDir) Close() error { return nil }

// rotate turns a frame clockwise by quarter turns.
func rotate(f *luma.Frame, quarterTurns int) *luma.Frame {
	for k := 0; k < ((quarterTurns%4)+4)%4; k++ {
		f = f.Rotate()
	}
	return f
}
