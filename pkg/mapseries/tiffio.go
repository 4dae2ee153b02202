package mapseries

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"dmaple/internal/logging"
	"dmaple/pkg/tiff"
)

// imageJDescription describes the calibration so ImageJ shows physical units.
func imageJDescription(spatial, temporal Resolution) string {
	c1 := 1.0
	if spatial.Value > 0 {
		c1 = 1 / spatial.Value
	}
	return "ImageJ=1.53k\n" +
		"unit=" + spatial.Unit + "\n" +
		"yunit=" + temporal.Unit + "\n" +
		"zunit=-\n" +
		"vunit=" + spatial.Unit + "\n" +
		"cf=0\n" +
		"c0=0\n" +
		"c1=" + strconv.FormatFloat(c1, 'g', -1, 64) + "\n"
}

func descriptionValue(desc, key string) (string, bool) {
	for _, line := range strings.Split(desc, "\n") {
		if v, ok := strings.CutPrefix(line, key+"="); ok {
			return v, true
		}
	}
	return "", false
}

// resolutions reads the calibration of a directory. Missing or malformed
// values fall back to a resolution of 1 with no unit.
func resolutions(dir *tiff.Directory) (Resolution, Resolution) {
	spatial := Resolution{Value: 1}
	temporal := Resolution{Value: 1}
	if v := dir.XResolution.Float(); v > 0 {
		spatial.Value = v
		if u, ok := descriptionValue(dir.Description, "unit"); ok {
			spatial.Unit = u
		}
	}
	if v := dir.YResolution.Float(); v > 0 {
		temporal.Value = v
		if u, ok := descriptionValue(dir.Description, "yunit"); ok {
			temporal.Unit = u
		}
	}
	return spatial, temporal
}

// Directories exports every channel with the series calibration.
func (s *Series) Directories() []*tiff.Directory {
	nt := s.NT()
	var dirs []*tiff.Directory
	for _, c := range s.channels() {
		d := c.ch.Directory(c.name, nt)
		d.XResolution = tiff.FloatToRational(s.spatial.Value)
		d.YResolution = tiff.FloatToRational(s.temporal.Value)
		d.Description = imageJDescription(s.spatial, s.temporal)
		dirs = append(dirs, d)
	}
	return dirs
}

// WriteTIFF writes every channel as one directory of a TIFF.
func (s *Series) WriteTIFF(w io.Writer) error {
	dirs := s.Directories()
	if len(dirs) == 0 {
		return fmt.Errorf("ROI %s has no maps", s.roi.UID)
	}
	return tiff.Encode(w, dirs)
}

// SaveTIFF writes the maps to a TIFF file at path.
func (s *Series) SaveTIFF(path string) error {
	dirs := s.Directories()
	if len(dirs) == 0 {
		return fmt.Errorf("ROI %s has no maps", s.roi.UID)
	}
	if err := tiff.WriteFile(path, dirs); err != nil {
		return fmt.Errorf("saving maps of ROI %s: %w", s.roi.UID, err)
	}
	return nil
}

// LoadTIFF fills the series from a TIFF written by SaveTIFF using the given
// regions as buffers. Channels missing from the file stay empty.
func (s *Series) LoadTIFF(path string, regions [][]byte) error {
	if !s.ProvideBuffers(regions) {
		return fmt.Errorf("ROI %s needs %d buffers, got %d", s.roi.UID, s.NMaps(), len(regions))
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening maps: %w", err)
	}
	defer f.Close()

	dirs, err := tiff.Decode(f)
	if err != nil {
		return fmt.Errorf("reading maps %s: %w", path, err)
	}
	for _, c := range s.channels() {
		dir := tiff.Find(dirs, c.name)
		if dir == nil {
			logging.Warningf("%s: no %s map", path, c.name)
			continue
		}
		ns, nt, err := c.ch.LoadDirectory(dir, f)
		if err != nil {
			return fmt.Errorf("reading maps %s: %w", path, err)
		}
		s.ns = ns
		s.nt.Store(int64(nt))
		s.spatial, s.temporal = resolutions(dir)
	}
	logging.Debugf("loaded %dx%d maps %v from %s", s.ns, s.NT(), s.ChannelNames(), path)
	return nil
}
