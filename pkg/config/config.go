// Package config loads the recording configuration from YAML and provides
// default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"dmaple/internal/logging"
	"dmaple/pkg/record"
	"dmaple/pkg/segment"
)

// Config is the configuration of a recording session.
type Config struct {
	// Params control segmentation of every ROI.
	Params segment.Params `yaml:"params"`

	// ROIs are the mapping regions of the field.
	ROIs []segment.ROI `yaml:"rois,omitempty"`

	// Ruler calibrates the field, or is omitted for pixel units.
	Ruler *record.Ruler `yaml:"ruler,omitempty"`

	// Source describes the incoming frames.
	Source struct {
		// Rotate turns every frame clockwise by this many quarter turns.
		Rotate int `yaml:"rotate"`
		// FrameRate is used when the source has no timestamps.
		FrameRate float64 `yaml:"frame_rate"`
		// MaxFrames stops the recording early when positive.
		MaxFrames int `yaml:"max_frames"`
	} `yaml:"source"`

	// Buffers is the pool of memory-mapped map buffers.
	Buffers struct {
		Dir   string `yaml:"dir"`
		Count int    `yaml:"count"`
		// Size of each buffer, such as "64 MiB".
		Size string `yaml:"size"`
	} `yaml:"buffers"`

	// Spill configures buffers of per-frame values that overflow to disk.
	Spill struct {
		Dir      string `yaml:"dir"`
		Capacity int    `yaml:"capacity"`
	} `yaml:"spill"`

	// Output is where record folders are written.
	Output struct {
		Root string `yaml:"root"`
		// Preview writes a PNG of every map beside its TIFF.
		Preview bool `yaml:"preview"`
	} `yaml:"output"`

	Log struct {
		Level              string `yaml:"level"`
		logging.FileConfig `yaml:",inline"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{Params: segment.DefaultParams()}

	cfg.Source.FrameRate = 30

	cfg.Buffers.Dir = filepath.Join(os.TempDir(), "dmaple", "buffers")
	cfg.Buffers.Count = 10
	cfg.Buffers.Size = "64 MiB"

	cfg.Spill.Dir = filepath.Join(os.TempDir(), "dmaple", "spill")
	cfg.Spill.Capacity = 10000

	cfg.Output.Root = "Maps"

	cfg.Log.Level = logging.InfoLevel.String()
	cfg.Log.MaxSize = 10
	cfg.Log.MaxAge = 30
	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.Debugf("no config at %s, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.fill()
	return cfg, nil
}

// fill gives every ROI an id and at least one map.
func (c *Config) fill() {
	for i := range c.ROIs {
		if c.ROIs[i].UID == "" {
			c.ROIs[i].UID = uuid.NewString()
		}
		if len(c.ROIs[i].Maps) == 0 {
			c.ROIs[i].Maps = []segment.MapKind{segment.MapDiameter}
		}
	}
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// BufferSize is the size in bytes of each map buffer.
func (c *Config) BufferSize() (int64, error) {
	n, err := humanize.ParseBytes(c.Buffers.Size)
	if err != nil {
		return 0, fmt.Errorf("buffer size %q: %w", c.Buffers.Size, err)
	}
	return int64(n), nil
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (logging.Level, error) {
	return logging.ParseLevel(c.Log.Level)
}

// Validate reports the first problem with the configuration.
func (c *Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	seen := make(map[string]bool)
	for _, r := range c.ROIs {
		if r.Right < r.Left || r.Bottom < r.Top {
			return fmt.Errorf("ROI %s has no area", r)
		}
		if seen[r.UID] {
			return fmt.Errorf("duplicate ROI id %s", r.UID)
		}
		seen[r.UID] = true
	}
	if c.Ruler != nil {
		if err := c.Ruler.Validate(); err != nil {
			return fmt.Errorf("ruler: %w", err)
		}
	}
	if c.Source.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %g", c.Source.FrameRate)
	}
	if c.Buffers.Count < 1 {
		return fmt.Errorf("buffer count must be positive, got %d", c.Buffers.Count)
	}
	if n, err := c.BufferSize(); err != nil {
		return err
	} else if n <= 0 {
		return fmt.Errorf("buffer size must be positive")
	}
	if c.Spill.Capacity < 1 {
		return fmt.Errorf("spill capacity must be positive, got %d", c.Spill.Capacity)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}
