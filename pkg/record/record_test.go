package record

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmaple/pkg/luma"
	"dmaple/pkg/mapseries"
	"dmaple/pkg/segment"
)

const fieldSize = 100

func gutFrame(diameter int) *luma.Frame {
	f := luma.NewFrame(fieldSize, fieldSize, 0)
	p := 50 - diameter/2
	f.FillRect(0, p, fieldSize-1, p+diameter-1, 255)
	return f
}

type memAllocator struct{ free, size int }

func (a *memAllocator) AllocateN(n int) ([][]byte, bool) {
	if n > a.free {
		return nil, false
	}
	a.free -= n
	out := make([][]byte, n)
	for i := range out {
		out[i] = make([]byte, a.size)
	}
	return out, true
}

func recorded(t *testing.T, maps ...segment.MapKind) *mapseries.Series {
	t.Helper()
	roi := segment.NewROI(10, 10, fieldSize-11, fieldSize-11, segment.EdgeLeft, 100, maps...)
	s := mapseries.New(roi, segment.DefaultParams(), fieldSize, fieldSize)
	bufs := make([][]byte, s.NMaps())
	for i := range bufs {
		bufs[i] = make([]byte, s.BufferSize(20))
	}
	require.True(t, s.ProvideBuffers(bufs))
	for _, d := range []int{30, 34, 38, 34, 30} {
		s.Update(gutFrame(d))
	}
	require.Equal(t, 5, s.NT())
	return s
}

func timed(t *testing.T, frames int, interval time.Duration) *FrameTimer {
	t.Helper()
	ft, err := NewFrameTimer(t.TempDir(), 16)
	require.NoError(t, err)
	t.Cleanup(func() { ft.Release() })
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, ft.Start(start))
	for i := 0; i < frames; i++ {
		ok, err := ft.Mark(time.Second + time.Duration(i)*interval)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ft.Stop(start.Add(time.Duration(frames) * interval))
	return ft
}

func TestRulerPixelsPerUnit(t *testing.T) {
	r := Ruler{X0: 10, Y0: 10, X1: 40, Y1: 50, Length: 5, Unit: "mm"}
	ppu, unit := r.PixelsPerUnit()
	assert.InDelta(t, 10, ppu, 1e-9)
	assert.Equal(t, "mm", unit)
	assert.NoError(t, r.Validate())

	assert.Error(t, Ruler{X1: 1, Length: 1, Unit: "furlong"}.Validate())
	assert.Error(t, Ruler{X1: 1, Length: 0, Unit: "mm"}.Validate())
	assert.Error(t, Ruler{Length: 1, Unit: "mm"}.Validate())

	ppu, _ = Ruler{X1: 3}.PixelsPerUnit()
	assert.Zero(t, ppu)
}

func TestFrameTimerStats(t *testing.T) {
	ft := timed(t, 41, 25*time.Millisecond)
	assert.Equal(t, int64(41), ft.Frames())

	st, err := ft.Stats()
	require.NoError(t, err)
	assert.Equal(t, 41, st.Frames)
	assert.InDelta(t, 25, st.Mean, 1e-9)
	assert.InDelta(t, 0, st.StdDev, 1e-9)
	assert.InDelta(t, 40, st.FrameRate(), 1e-9)
	assert.Equal(t, 1025*time.Millisecond, ft.Duration())

	intervals, err := ft.Intervals()
	require.NoError(t, err)
	assert.Zero(t, intervals[0])
}

func TestFrameTimerRejectsEarlierFrames(t *testing.T) {
	ft, err := NewFrameTimer(t.TempDir(), 8)
	require.NoError(t, err)
	defer ft.Release()

	for _, c := range []struct {
		ts time.Duration
		ok bool
	}{{100 * time.Millisecond, true}, {150 * time.Millisecond, true}, {120 * time.Millisecond, false}, {170 * time.Millisecond, true}} {
		ok, err := ft.Mark(c.ts)
		require.NoError(t, err)
		assert.Equal(t, c.ok, ok, "frame at %v", c.ts)
	}
	intervals, err := ft.Intervals()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{0, 50, 20}, intervals))

	st, err := ft.Stats()
	require.NoError(t, err)
	assert.InDelta(t, 35, st.Mean, 1e-9)
	assert.Equal(t, 20.0, st.Min)
	assert.Equal(t, 50.0, st.Max)
}

func TestFrameTimerFewFrames(t *testing.T) {
	ft := timed(t, 1, time.Millisecond)
	st, err := ft.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.FrameRate())

	ft = timed(t, 2, 10*time.Millisecond)
	st, err = ft.Stats()
	require.NoError(t, err)
	assert.Equal(t, 10.0, st.Mean)
	assert.Zero(t, st.StdDev)
}

func TestFrameTimerWriteRead(t *testing.T) {
	ft := timed(t, 50, 20*time.Millisecond)
	var buf bytes.Buffer
	require.NoError(t, ft.Write(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 52)
	assert.Equal(t, "2025-03-01T12:00:00Z", lines[0])

	back, err := ReadFrameTimer(&buf, t.TempDir(), 16)
	require.NoError(t, err)
	defer back.Release()

	want, err := ft.Intervals()
	require.NoError(t, err)
	got, err := back.Intervals()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, got))
	assert.Equal(t, ft.Duration(), back.Duration())

	_, err = ReadFrameTimer(strings.NewReader("yesterday\n"), t.TempDir(), 4)
	assert.Error(t, err)
	_, err = ReadFrameTimer(strings.NewReader("2025-03-01T12:00:00Z\n"), t.TempDir(), 4)
	assert.Error(t, err)
}

func TestRecordRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rec")
	a := recorded(t, segment.MapDiameter, segment.MapSpine)
	b := recorded(t, segment.MapLight)
	ruler := &Ruler{X0: 0, Y0: 90, X1: 50, Y1: 90, Length: 2, Unit: "mm"}
	ft := timed(t, 5, 40*time.Millisecond)

	rec := New(dir, []*mapseries.Series{a, b}, ft, ruler, gutFrame(30).Gray(), fieldSize, fieldSize)
	require.NoError(t, rec.Write())

	assert.InDelta(t, 25, a.Temporal().Value, 1e-9)
	assert.InDelta(t, 25, a.Spatial().Value, 1e-9)
	assert.Equal(t, "mm", a.Spatial().Unit)
	for _, name := range []string{MetadataFile, TimingFile, FieldFile, a.ROI().UID + ".tiff", b.ROI().UID + ".tiff"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	back, err := Read(dir, t.TempDir(), 16)
	require.NoError(t, err)
	require.NotNil(t, back.Timer)
	defer back.Timer.Release()
	assert.NotNil(t, back.Field)
	assert.Equal(t, rec.Metadata.ROIs, back.Metadata.ROIs)
	assert.Equal(t, rec.Metadata.Params, back.Metadata.Params)
	assert.Equal(t, *ruler, *back.Metadata.Ruler)
	assert.True(t, rec.Metadata.Start.Equal(back.Metadata.Start))
	assert.Equal(t, rec.Duration(), back.Duration())
	require.Len(t, back.Series, 2)
	assert.Zero(t, back.Series[0].NT())

	require.NoError(t, back.LoadMaps(&memAllocator{free: 3, size: a.BufferSize(20)}))
	for i, s := range []*mapseries.Series{a, b} {
		got := back.Series[i]
		assert.Equal(t, s.NT(), got.NT())
		assert.Equal(t, s.NS(), got.NS())
		assert.Equal(t, s.ChannelNames(), got.ChannelNames())
		want, have := s.Directories(), got.Directories()
		require.Len(t, have, len(want))
		for k := range want {
			assert.Equal(t, want[k].ImageBytes(), have[k].ImageBytes())
			assert.True(t, bytes.Equal(want[k].Pixels, have[k].Pixels), "channel %s", want[k].UniqueID)
		}
		assert.InDelta(t, s.Temporal().Value, got.Temporal().Value, 1e-4)
	}
}

func TestLoadMapsRunsOutOfBuffers(t *testing.T) {
	dir := t.TempDir()
	a := recorded(t, segment.MapRadius)
	b := recorded(t, segment.MapDiameter)
	require.NoError(t, New(dir, []*mapseries.Series{a, b}, nil, nil, nil, fieldSize, fieldSize).Write())

	back, err := Read(dir, t.TempDir(), 4)
	require.NoError(t, err)
	assert.Nil(t, back.Timer)
	assert.Nil(t, back.Field)

	err = back.LoadMaps(&memAllocator{free: 2, size: a.BufferSize(20)})
	assert.True(t, errors.Is(err, ErrNoBuffers))
	assert.Equal(t, 5, back.Series[0].NT())
	assert.Zero(t, back.Series[1].NT())
}

func TestLoadMapsSkipsMissingTIFF(t *testing.T) {
	dir := t.TempDir()
	a := recorded(t, segment.MapDiameter)
	require.NoError(t, New(dir, []*mapseries.Series{a}, nil, nil, nil, fieldSize, fieldSize).Write())
	require.NoError(t, os.Remove(filepath.Join(dir, a.ROI().UID+".tiff")))

	back, err := Read(dir, t.TempDir(), 4)
	require.NoError(t, err)
	alloc := &memAllocator{free: 1, size: a.BufferSize(20)}
	require.NoError(t, back.LoadMaps(alloc))
	assert.Equal(t, 1, alloc.free)
}

func TestWriteWithoutSeries(t *testing.T) {
	assert.Error(t, New(t.TempDir(), nil, nil, nil, nil, 10, 10).Write())
}

func TestList(t *testing.T) {
	root := t.TempDir()
	older := New(filepath.Join(root, "a"), []*mapseries.Series{recorded(t, segment.MapDiameter)}, nil, nil, nil, fieldSize, fieldSize)
	older.Metadata.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older.Metadata.End = older.Metadata.Start.Add(time.Minute)
	newer := New(filepath.Join(root, "b"), []*mapseries.Series{recorded(t, segment.MapDiameter)}, nil, nil, nil, fieldSize, fieldSize)
	newer.Metadata.Start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer.Metadata.End = newer.Metadata.Start.Add(time.Minute)
	require.NoError(t, older.Write())
	require.NoError(t, newer.Write())
	require.NoError(t, os.Mkdir(filepath.Join(root, "junk"), 0o755))

	recs, err := List(root, t.TempDir(), 4)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, newer.Dir, recs[0].Dir)
	assert.Equal(t, older.Dir, recs[1].Dir)
}

func TestDrawField(t *testing.T) {
	s := recorded(t, segment.MapDiameter)
	ruler := &Ruler{X0: 5, Y0: 95, X1: 60, Y1: 95, Length: 1, Unit: "cm"}
	img := DrawField(gutFrame(30).Gray(), []*mapseries.Series{s}, ruler)

	assert.Equal(t, roiColor, img.RGBAAt(10, 80))
	assert.Equal(t, rulerColor, img.RGBAAt(30, 95))
	d := s.Detector()
	x := d.Geometry().Long[20]
	assert.Equal(t, boundaryColor, img.RGBAAt(x, d.Upper()[20]))
	assert.Equal(t, boundaryColor, img.RGBAAt(x, d.Lower()[20]))
}
