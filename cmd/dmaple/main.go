package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dmaple/internal/logging"
	"dmaple/pkg/bufpool"
	"dmaple/pkg/config"
	"dmaple/pkg/mapseries"
	"dmaple/pkg/record"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	initConfig bool
	list       bool
	inspect    string
	name       string
	source     string
}

func run(args []string) error {
	fs := flag.NewFlagSet("dmaple", flag.ContinueOnError)
	var opt options
	fs.StringVar(&opt.configPath, "config", "dmaple.yaml", "configuration file")
	fs.BoolVar(&opt.initConfig, "init", false, "write the default configuration and exit")
	fs.BoolVar(&opt.list, "list", false, "list the records in the output folder")
	fs.StringVar(&opt.inspect, "inspect", "", "load a record folder and write previews of its maps")
	fs.StringVar(&opt.name, "name", "", "record folder name (default: start time)")
	out := fs.String("o", "", "output folder for records")
	fps := fs.Float64("fps", 0, "frame rate of an image directory")
	maxFrames := fs.Int("max-frames", 0, "stop after this many frames")
	rot := fs.Int("rotate", 0, "clockwise quarter turns applied to every frame")
	preview := fs.Bool("preview", false, "write a PNG preview of every map")
	level := fs.String("log-level", "", "DEBUG, INFO, WARNING or ERROR")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: dmaple [flags] <video-file | image-dir>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opt.initConfig {
		if err := config.SaveConfig(config.DefaultConfig(), opt.configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", opt.configPath)
		return nil
	}

	cfg, err := config.LoadConfig(opt.configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.Output.Root = *out
		case "fps":
			cfg.Source.FrameRate = *fps
		case "max-frames":
			cfg.Source.MaxFrames = *maxFrames
		case "rotate":
			cfg.Source.Rotate = *rot
		case "preview":
			cfg.Output.Preview = *preview
		case "log-level":
			cfg.Log.Level = *level
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	lvl, _ := cfg.LogLevel()
	logging.SetLevel(lvl)
	logFile := cfg.Log.FileConfig.Open()
	defer logFile.Close()

	switch {
	case opt.list:
		return listRecords(cfg)
	case opt.inspect != "":
		return inspect(cfg, opt.inspect)
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("no frame source given")
	}
	opt.source = fs.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return recordSource(ctx, cfg, opt)
}

func newPool(cfg *config.Config) (*bufpool.Pool, error) {
	size, err := cfg.BufferSize()
	if err != nil {
		return nil, err
	}
	pool := bufpool.New(cfg.Buffers.Dir, cfg.Buffers.Count, size)
	if err := pool.Init(); err != nil {
		return nil, fmt.Errorf("preparing buffers: %w", err)
	}
	logging.Debugf("%d buffers of %s in %s", pool.Len(), logging.Bytes(size), pool.Dir())
	return pool, nil
}

// recordSource maps every frame of the source until it ends, the context is
// cancelled or every series is full, then writes the record folder.
func recordSource(ctx context.Context, cfg *config.Config, opt options) error {
	if len(cfg.ROIs) == 0 {
		return fmt.Errorf("no ROIs in %s", opt.configPath)
	}
	src, err := openSource(opt.source, cfg.Source.FrameRate)
	if err != nil {
		return err
	}
	defer src.Close()

	first, ts, err := src.Next()
	if err != nil {
		return fmt.Errorf("reading first frame: %w", err)
	}
	first = rotate(first, cfg.Source.Rotate)
	w, h := first.Width(), first.Height()
	fmt.Printf("Source: %s (%d x %d)\n", opt.source, w, h)

	pool, err := newPool(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.ReleaseAll(); err != nil {
			logging.Errorf("releasing buffers: %v", err)
		}
	}()

	var series []*mapseries.Series
	for _, roi := range cfg.ROIs {
		s := mapseries.New(roi, cfg.Params, w, h)
		regions, ok := pool.AllocateN(s.NMaps())
		if !ok {
			logging.Warningf("ROI %s: no free buffers, not mapped", roi.UID)
			continue
		}
		s.ProvideBuffers(regions)
		logging.Infof("ROI %s: %v, room for %d frames", s.ROI(), s.ChannelNames(), int(pool.Size())/max(1, s.BufferSize(1)))
		series = append(series, s)
	}
	if len(series) == 0 {
		return fmt.Errorf("no ROI could be mapped")
	}

	timer, err := record.NewFrameTimer(cfg.Spill.Dir, cfg.Spill.Capacity)
	if err != nil {
		return err
	}
	defer timer.Release()
	if err := timer.Start(time.Now()); err != nil {
		return err
	}

	started := time.Now()
	last := first
	frame := first
	for n := 1; ; n++ {
		for _, s := range series {
			s.Update(frame)
		}
		if _, err := timer.Mark(ts); err != nil {
			return fmt.Errorf("timing frame %d: %w", n, err)
		}
		last = frame
		if cfg.Source.MaxFrames > 0 && n >= cfg.Source.MaxFrames {
			break
		}
		if allOverflowed(series) {
			logging.Warningf("every map is full after %d frames", n)
			break
		}
		if ctx.Err() != nil {
			logging.Infof("interrupted after %d frames", n)
			break
		}
		frame, ts, err = src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading frame %d: %w", n+1, err)
		}
		frame = rotate(frame, cfg.Source.Rotate)
		if frame.Width() != w || frame.Height() != h {
			return fmt.Errorf("frame %d is %d x %d, want %d x %d", n+1, frame.Width(), frame.Height(), w, h)
		}
	}
	timer.Stop(time.Now())
	elapsed := time.Since(started)

	name := opt.name
	if name == "" {
		name = started.Format("2006-01-02_15-04-05")
	}
	rec := record.New(filepath.Join(cfg.Output.Root, name), series, timer, cfg.Ruler, last.Gray(), w, h)
	if err := rec.Write(); err != nil {
		return err
	}
	if cfg.Output.Preview {
		if err := writePreviews(rec); err != nil {
			return err
		}
	}
	printSummary(rec, elapsed)
	return nil
}

func allOverflowed(series []*mapseries.Series) bool {
	for _, s := range series {
		if !s.Overflowed() {
			return false
		}
	}
	return true
}

func writePreviews(rec *record.Record) error {
	for _, s := range rec.Series {
		for i, name := range s.ChannelNames() {
			path := filepath.Join(rec.Dir, fmt.Sprintf("%s_%s.png", s.ROI().UID, name))
			if err := s.SavePreview(path, i); err != nil {
				return err
			}
		}
	}
	return nil
}

func printSummary(rec *record.Record, elapsed time.Duration) {
	fmt.Println()
	fmt.Printf("=== Recording (%.1fs) ===\n", elapsed.Seconds())
	fmt.Printf("  Folder:      %s\n", rec.Dir)
	if rec.Timer != nil {
		if st, err := rec.Timer.Stats(); err == nil {
			fmt.Printf("  Frames:      %d\n", st.Frames)
			fmt.Printf("  Interval:    %.2f +/- %.2f ms (%.1f fps)\n", st.Mean, st.StdDev, st.FrameRate())
		}
	}
	for _, s := range rec.Series {
		full := ""
		if s.Overflowed() {
			full = "  [FULL]"
		}
		fmt.Printf("  %-8.8s %4d x %-6d %v%s\n", s.ROI().UID, s.NS(), s.NT(), s.ChannelNames(), full)
	}
	fmt.Println("==============================")
}

func listRecords(cfg *config.Config) error {
	recs, err := record.List(cfg.Output.Root, cfg.Spill.Dir, cfg.Spill.Capacity)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if r.Timer != nil {
			r.Timer.Release()
		}
		fmt.Printf("%-30s %s  %10s  %d ROIs\n", filepath.Base(r.Dir),
			r.Metadata.Start.Local().Format(time.DateTime), r.Duration().Round(time.Second), len(r.Metadata.ROIs))
	}
	return nil
}

// inspect loads the maps of a record and writes previews next to them.
func inspect(cfg *config.Config, dir string) error {
	rec, err := record.Read(dir, cfg.Spill.Dir, cfg.Spill.Capacity)
	if err != nil {
		return err
	}
	if rec.Timer != nil {
		defer rec.Timer.Release()
	}
	pool, err := newPool(cfg)
	if err != nil {
		return err
	}
	defer pool.ReleaseAll()

	if err := rec.LoadMaps(pool); err != nil {
		if !errors.Is(err, record.ErrNoBuffers) {
			return err
		}
		logging.Warningf("%v: some maps were not loaded", err)
	}
	if err := writePreviews(rec); err != nil {
		return err
	}
	printSummary(rec, rec.Duration())
	return nil
}
