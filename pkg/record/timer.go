package record

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"dmaple/pkg/spill"
)

// FrameTimer records the period of a recording and the interval between its
// frames. Intervals are kept in milliseconds, zero for the first frame, and
// spill to disk on long recordings.
type FrameTimer struct {
	start     time.Time
	end       time.Time
	last      time.Duration
	intervals *spill.Buffer[float64]
}

// IntervalStats summarises the frame intervals of a recording.
type IntervalStats struct {
	Frames int
	// Mean and StdDev are in milliseconds.
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// FrameRate is the mean number of frames per second, or 0 if unknown.
func (s IntervalStats) FrameRate() float64 {
	if s.Mean <= 0 {
		return 0
	}
	return 1000 / s.Mean
}

// NewFrameTimer creates a timer whose interval buffer holds capacity
// samples in memory and spills into dir.
func NewFrameTimer(dir string, capacity int) (*FrameTimer, error) {
	b, err := spill.New[float64](dir, capacity)
	if err != nil {
		return nil, fmt.Errorf("creating frame timer: %w", err)
	}
	now := time.Now()
	return &FrameTimer{start: now, end: now, intervals: b}, nil
}

// Start marks the start of a recording and forgets any earlier frames.
func (t *FrameTimer) Start(at time.Time) error {
	t.start, t.end = at, at
	t.last = 0
	return t.intervals.Clear()
}

// Mark records a frame by its timestamp. Timestamps share an arbitrary
// origin; a frame earlier than the last one is not recorded and Mark
// reports false.
func (t *FrameTimer) Mark(ts time.Duration) (bool, error) {
	interval := 0.0
	if t.intervals.Len() > 0 {
		if ts < t.last {
			return false, nil
		}
		interval = float64(ts-t.last) / float64(time.Millisecond)
	}
	if err := t.intervals.Add(interval); err != nil {
		return false, err
	}
	t.last = ts
	return true, nil
}

// Stop marks the end of a recording.
func (t *FrameTimer) Stop(at time.Time) { t.end = at }

func (t *FrameTimer) Frames() int64 { return t.intervals.Len() }

func (t *FrameTimer) Period() (time.Time, time.Time) { return t.start, t.end }

func (t *FrameTimer) Duration() time.Duration { return t.end.Sub(t.start) }

// Intervals returns every frame interval in milliseconds.
func (t *FrameTimer) Intervals() ([]float64, error) {
	return t.intervals.Read(0, 0)
}

// Stats summarises the intervals, ignoring the first frame.
func (t *FrameTimer) Stats() (IntervalStats, error) {
	all, err := t.Intervals()
	if err != nil {
		return IntervalStats{}, err
	}
	s := IntervalStats{Frames: len(all)}
	if len(all) < 2 {
		return s, nil
	}
	x := all[1:]
	s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	if len(x) == 1 {
		s.StdDev = 0
	}
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	for _, v := range x {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	return s, nil
}

// Release deletes the interval spill file.
func (t *FrameTimer) Release() error { return t.intervals.Release() }

// Write stores the recording start and end times followed by one interval
// per line.
func (t *FrameTimer) Write(w io.Writer) error {
	all, err := t.Intervals()
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, t.start.Format(time.RFC3339Nano))
	fmt.Fprintln(bw, t.end.Format(time.RFC3339Nano))
	for _, v := range all {
		fmt.Fprintln(bw, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return bw.Flush()
}

// ReadFrameTimer reads a timer written by Write. Lines that are not numbers
// are skipped.
func ReadFrameTimer(r io.Reader, dir string, capacity int) (*FrameTimer, error) {
	t, err := NewFrameTimer(dir, capacity)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(r)
	var period []time.Time
	for len(period) < 2 && sc.Scan() {
		at, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(sc.Text()))
		if err != nil {
			t.Release()
			return nil, fmt.Errorf("parsing recording period: %w", err)
		}
		period = append(period, at)
	}
	if len(period) < 2 {
		t.Release()
		return nil, fmt.Errorf("recording period missing")
	}
	t.start, t.end = period[0], period[1]
	for sc.Scan() {
		v, err := strconv.ParseFloat(strings.TrimSpace(sc.Text()), 64)
		if err != nil {
			continue
		}
		if err := t.intervals.Add(v); err != nil {
			t.Release()
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		t.Release()
		return nil, fmt.Errorf("reading frame intervals: %w", err)
	}
	return t, nil
}
