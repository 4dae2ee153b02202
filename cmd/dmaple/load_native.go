//go:build !purego && !js

package main

import (
	"fmt"
	"io"
	"time"

	"gocv.io/x/gocv"

	"dmaple/pkg/luma"
)

func loadImage(path string) (*luma.Frame, error) {
	src := gocv.IMRead(path, gocv.IMReadGrayScale)
	if src.Empty() {
		return nil, fmt.Errorf("could not load image: %s", path)
	}
	defer src.Close()
	return luma.FromPixels(src.ToBytes(), src.Cols(), src.Rows()), nil
}

// video reads frames from a file with OpenCV.
type video struct {
	vc    *gocv.VideoCapture
	frame gocv.Mat
	gray  gocv.Mat
}

func openVideo(path string) (frameSource, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening video: %w", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("could not open video: %s", path)
	}
	return &video{vc: vc, frame: gocv.NewMat(), gray: gocv.NewMat()}, nil
}

func (v *video) Next() (*luma.Frame, time.Duration, error) {
	if !v.vc.Read(&v.frame) || v.frame.Empty() {
		return nil, 0, io.EOF
	}
	ts := time.Duration(v.vc.Get(gocv.VideoCapturePosMsec) * float64(time.Millisecond))
	src := v.frame
	if v.frame.Channels() > 1 {
		gocv.CvtColor(v.frame, &v.gray, gocv.ColorBGRToGray)
		src = v.gray
	}
	return luma.FromPixels(src.ToBytes(), src.Cols(), src.Rows()), ts, nil
}

func (v *video) Close() error {
	v.frame.Close()
	v.gray.Close()
	return v.vc.Close()
}
