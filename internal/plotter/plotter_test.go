package plotter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulse.report/internal/capture"
	"github.com/banshee-data/pulse.report/internal/ppg"
)

func testWindow(index, bpm int) ppg.WindowReport {
	samples := make([]ppg.Sample, 31)
	smoothed := make([]float64, 31)
	for i := range samples {
		v := float64(150 + (i%10)*4)
		samples[i] = ppg.Sample{Timestamp: int64(100 * i), Intensity: v}
		smoothed[i] = v
	}
	return ppg.WindowReport{
		Index:    index,
		Samples:  samples,
		Smoothed: smoothed,
		Peaks:    []int{9, 19, 29},
		Result:   ppg.Result{Timestamp: int64(3000 * (index + 1)), HeartRate: bpm, RawRate: bpm},
	}
}

func TestNewWindowPlotter(t *testing.T) {
	wp := NewWindowPlotter(0)
	assert.Equal(t, DefaultMaxWindows, wp.maxWindows)
	assert.False(t, wp.IsEnabled())
	assert.Equal(t, 3, NewWindowPlotter(3).maxWindows)
}

func TestObserveOnlyWhileEnabled(t *testing.T) {
	wp := NewWindowPlotter(2)
	wp.ObserveWindow(testWindow(0, 60))
	assert.Zero(t, wp.WindowCount(), "not started")

	require.NoError(t, wp.Start(filepath.Join(t.TempDir(), "run")))
	assert.True(t, wp.IsEnabled())
	for i := 0; i < 4; i++ {
		wp.ObserveWindow(testWindow(i, 60+i))
	}
	assert.Equal(t, 2, wp.WindowCount(), "capped at maxWindows")
	assert.Len(t, wp.trend, 4, "trend keeps every rate")

	wp.Stop()
	wp.ObserveWindow(testWindow(9, 70))
	assert.Equal(t, 2, wp.WindowCount())
}

func TestObserveCopiesSeries(t *testing.T) {
	wp := NewWindowPlotter(0)
	require.NoError(t, wp.Start(t.TempDir()))

	w := testWindow(0, 60)
	wp.ObserveWindow(w)
	w.Samples[0].Intensity = -1
	w.Peaks[0] = 99

	assert.Equal(t, 150.0, wp.windows[0].Samples[0].Intensity)
	assert.Equal(t, 9, wp.windows[0].Peaks[0])
}

func TestGeneratePlots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	wp := NewWindowPlotter(0)

	_, err := wp.GeneratePlots()
	assert.Error(t, err, "not started")

	require.NoError(t, wp.Start(dir))
	wp.ObserveWindow(testWindow(0, 0))
	wp.ObserveWindow(testWindow(1, 62))
	wp.Stop()

	n, err := wp.GeneratePlots()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, name := range []string{"window_000.png", "window_001.png", "heart_rate.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
}

func TestGeneratePlotsWithoutRates(t *testing.T) {
	dir := t.TempDir()
	wp := NewWindowPlotter(0)
	require.NoError(t, wp.Start(dir))
	wp.ObserveWindow(testWindow(0, 0))

	n, err := wp.GeneratePlots()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = os.Stat(filepath.Join(dir, "heart_rate.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestPlotterObservesAnalyzer(t *testing.T) {
	dir := t.TempDir()
	wp := NewWindowPlotter(0)
	require.NoError(t, wp.Start(dir))

	a := ppg.NewAnalyzer(ppg.DefaultConfig(), ppg.WithWindowObserver(wp))
	for _, f := range capture.PulseFrames(0, 100, 100*time.Millisecond, 60) {
		require.NoError(t, a.ProcessFrame(f))
	}
	require.Equal(t, 3, wp.WindowCount())

	n, err := wp.GeneratePlots()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
