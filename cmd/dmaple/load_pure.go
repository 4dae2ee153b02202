//go:build purego || js

package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"dmaple/pkg/luma"
)

func loadImage(path string) (*luma.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	return luma.FromImage(img), nil
}

func openVideo(path string) (frameSource, error) {
	return nil, fmt.Errorf("%s: video needs the OpenCV build; pass a directory of images instead", path)
}
