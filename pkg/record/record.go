// Package record writes a finished recording to a folder and reads it back:
// its metadata, frame timing, an annotated image of the field and one map
// TIFF per ROI.
package record

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"dmaple/internal/logging"
	"dmaple/pkg/mapseries"
	"dmaple/pkg/segment"
)

const (
	MetadataFile = "metadata.yaml"
	TimingFile   = "timing.txt"
	FieldFile    = "field.jpg"

	// MetadataVersion is written to every record.
	MetadataVersion = 1
)

// Metadata is enough to recreate the series of a recording.
type Metadata struct {
	Version     int            `yaml:"version"`
	Start       time.Time      `yaml:"start"`
	End         time.Time      `yaml:"end"`
	FrameWidth  int            `yaml:"frame_width"`
	FrameHeight int            `yaml:"frame_height"`
	ROIs        []segment.ROI  `yaml:"rois"`
	Params      segment.Params `yaml:"params"`
	Ruler       *Ruler         `yaml:"ruler,omitempty"`
}

// Record is a recording and the folder it lives in.
type Record struct {
	Dir      string
	Metadata Metadata
	Timer    *FrameTimer
	// Field is a frame of the mapping field, or nil.
	Field  image.Image
	Series []*mapseries.Series
}

// New describes a finished recording of series. timer, ruler and field may be nil.
func New(dir string, series []*mapseries.Series, timer *FrameTimer, ruler *Ruler, field image.Image, frameWidth, frameHeight int) *Record {
	md := Metadata{
		Version:     MetadataVersion,
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
		Ruler:       ruler,
		Params:      segment.DefaultParams(),
	}
	if timer != nil {
		md.Start, md.End = timer.Period()
	} else {
		md.Start = time.Now()
		md.End = md.Start
	}
	for _, s := range series {
		md.ROIs = append(md.ROIs, s.ROI())
	}
	if len(series) > 0 {
		md.Params = series[0].Params()
	}
	return &Record{Dir: dir, Metadata: md, Timer: timer, Field: field, Series: series}
}

// Duration is the wall-clock length of the recording.
func (r *Record) Duration() time.Duration { return r.Metadata.End.Sub(r.Metadata.Start) }

// Calibrate sets the resolutions of every series from the ruler and the
// frame timing.
func (r *Record) Calibrate() error {
	var fps float64
	if r.Timer != nil {
		st, err := r.Timer.Stats()
		if err != nil {
			return err
		}
		fps = st.FrameRate()
	}
	for _, s := range r.Series {
		if r.Metadata.Ruler != nil {
			s.SetSpatialPixelsPerUnit(r.Metadata.Ruler.PixelsPerUnit())
		}
		if fps > 0 {
			s.SetFrameRate(fps)
		} else {
			s.SetDuration(r.Duration())
		}
	}
	return nil
}

func (r *Record) mapPath(uid string) string {
	return filepath.Join(r.Dir, uid+".tiff")
}

// Write calibrates the series and saves the record into its folder.
func (r *Record) Write() error {
	if len(r.Series) == 0 {
		return fmt.Errorf("record %s has no maps", r.Dir)
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("creating record folder: %w", err)
	}
	if err := r.Calibrate(); err != nil {
		return fmt.Errorf("calibrating maps: %w", err)
	}

	md, err := yaml.Marshal(&r.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.Dir, MetadataFile), md, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	if r.Timer != nil {
		var buf bytes.Buffer
		if err := r.Timer.Write(&buf); err != nil {
			return fmt.Errorf("encoding frame timing: %w", err)
		}
		if err := os.WriteFile(filepath.Join(r.Dir, TimingFile), buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing frame timing: %w", err)
		}
	}

	if r.Field != nil {
		if err := r.writeField(); err != nil {
			return err
		}
	}

	for _, s := range r.Series {
		if s.NMaps() == 0 {
			continue
		}
		if err := s.SaveTIFF(r.mapPath(s.ROI().UID)); err != nil {
			return err
		}
	}
	logging.Infof("wrote record %s: %d ROIs, %s", r.Dir, len(r.Series), r.Duration().Round(time.Millisecond))
	return nil
}

func (r *Record) writeField() error {
	f, err := os.Create(filepath.Join(r.Dir, FieldFile))
	if err != nil {
		return fmt.Errorf("create field image: %w", err)
	}
	defer f.Close()
	img := DrawField(r.Field, r.Series, r.Metadata.Ruler)
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("encoding field image: %w", err)
	}
	return f.Close()
}

// Read recreates a record from its folder. The series have no buffers until
// LoadMaps is called. spillDir and capacity configure the frame timer.
func Read(dir, spillDir string, capacity int) (*Record, error) {
	raw, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	r := &Record{Dir: dir}
	if err := yaml.Unmarshal(raw, &r.Metadata); err != nil {
		return nil, fmt.Errorf("parsing metadata %s: %w", dir, err)
	}
	if r.Metadata.Version > MetadataVersion {
		return nil, fmt.Errorf("record %s has metadata version %d, newer than %d", dir, r.Metadata.Version, MetadataVersion)
	}

	if f, err := os.Open(filepath.Join(dir, TimingFile)); err == nil {
		r.Timer, err = ReadFrameTimer(f, spillDir, capacity)
		f.Close()
		if err != nil {
			logging.Warningf("%s: ignoring frame timing: %v", dir, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("opening frame timing: %w", err)
	}

	if f, err := os.Open(filepath.Join(dir, FieldFile)); err == nil {
		r.Field, err = jpeg.Decode(f)
		f.Close()
		if err != nil {
			logging.Warningf("%s: ignoring field image: %v", dir, err)
		}
	}

	for _, roi := range r.Metadata.ROIs {
		r.Series = append(r.Series, mapseries.New(roi, r.Metadata.Params, r.Metadata.FrameWidth, r.Metadata.FrameHeight))
	}
	return r, nil
}

// Allocator hands out buffer regions.
type Allocator interface {
	AllocateN(n int) ([][]byte, bool)
}

// ErrNoBuffers is returned when the allocator runs out of regions.
var ErrNoBuffers = errors.New("no free buffers")

// LoadMaps fills each series from its map TIFF. Series without a TIFF stay
// empty. Loading stops with ErrNoBuffers once the allocator is exhausted; the
// series loaded so far remain usable.
func (r *Record) LoadMaps(a Allocator) error {
	for _, s := range r.Series {
		path := r.mapPath(s.ROI().UID)
		if _, err := os.Stat(path); err != nil {
			logging.Warningf("no maps for ROI %s: %v", s.ROI().UID, err)
			continue
		}
		regions, ok := a.AllocateN(s.NMaps())
		if !ok {
			return fmt.Errorf("loading ROI %s: %w", s.ROI().UID, ErrNoBuffers)
		}
		if err := s.LoadTIFF(path, regions); err != nil {
			return err
		}
	}
	return nil
}

// List reads every record folder directly under root, newest first. Folders
// that are not records are skipped.
func List(root, spillDir string, capacity int) ([]*Record, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	var out []*Record
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := Read(filepath.Join(root, e.Name()), spillDir, capacity)
		if err != nil {
			logging.Debugf("skipping %s: %v", e.Name(), err)
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Record) int {
		return b.Metadata.Start.Compare(a.Metadata.Start)
	})
	return out, nil
}
