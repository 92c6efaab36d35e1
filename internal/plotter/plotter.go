// Package plotter renders analysed PPG windows and the heart-rate trend of
// a run as PNG files.
package plotter

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// DefaultMaxWindows bounds how many windows a run keeps for plotting.
const DefaultMaxWindows = 200

var (
	rawColor      = color.RGBA{R: 180, G: 180, B: 180, A: 255}
	smoothedColor = color.RGBA{R: 200, G: 30, B: 45, A: 255}
	peakColor     = color.RGBA{R: 20, G: 60, B: 200, A: 255}
	rawRateColor  = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

// trendPoint is one dispatched rate for the heart_rate.png trend.
type trendPoint struct {
	Timestamp int64
	HeartRate int
	RawRate   int
}

// WindowPlotter records analysed windows for visualisation. It implements
// ppg.WindowObserver; attach it with ppg.WithWindowObserver and call
// GeneratePlots after the run.
type WindowPlotter struct {
	mu         sync.Mutex
	enabled    bool
	outputDir  string
	maxWindows int

	windows []ppg.WindowReport
	trend   []trendPoint
}

// NewWindowPlotter creates a plotter keeping at most maxWindows windows
// (DefaultMaxWindows when maxWindows <= 0).
func NewWindowPlotter(maxWindows int) *WindowPlotter {
	if maxWindows <= 0 {
		maxWindows = DefaultMaxWindows
	}
	return &WindowPlotter{maxWindows: maxWindows}
}

// Start creates outputDir and begins recording a new run.
func (wp *WindowPlotter) Start(outputDir string) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	wp.outputDir = outputDir
	wp.enabled = true
	wp.windows = nil
	wp.trend = nil
	return nil
}

// Stop disables recording. Call GeneratePlots() to produce output files.
func (wp *WindowPlotter) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.enabled = false
}

func (wp *WindowPlotter) IsEnabled() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.enabled
}

// WindowCount returns the number of windows kept for plotting.
func (wp *WindowPlotter) WindowCount() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return len(wp.windows)
}

// ObserveWindow implements ppg.WindowObserver. Windows beyond maxWindows
// are not kept, but their rates still extend the trend.
func (wp *WindowPlotter) ObserveWindow(w ppg.WindowReport) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if !wp.enabled {
		return
	}

	if w.Result.HeartRate > 0 {
		wp.trend = append(wp.trend, trendPoint{
			Timestamp: w.Result.Timestamp,
			HeartRate: w.Result.HeartRate,
			RawRate:   w.Result.RawRate,
		})
	}
	if len(wp.windows) >= wp.maxWindows {
		return
	}
	w.Samples = slices.Clone(w.Samples)
	w.Smoothed = slices.Clone(w.Smoothed)
	w.Peaks = slices.Clone(w.Peaks)
	wp.windows = append(wp.windows, w)
}

// GeneratePlots writes window_NNN.png for every kept window and
// heart_rate.png when at least one rate was dispatched. It returns the
// number of files written.
func (wp *WindowPlotter) GeneratePlots() (int, error) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.outputDir == "" {
		return 0, fmt.Errorf("plotter not started")
	}

	count := 0
	for _, w := range wp.windows {
		if err := wp.generateWindowPlot(w); err != nil {
			return count, fmt.Errorf("window %d: %w", w.Index, err)
		}
		count++
	}
	if len(wp.trend) > 0 {
		if err := wp.generateTrendPlot(); err != nil {
			return count, fmt.Errorf("heart rate trend: %w", err)
		}
		count++
	}
	return count, nil
}

// generateWindowPlot draws raw and smoothed intensity with the detected
// peaks marked.
func (wp *WindowPlotter) generateWindowPlot(w ppg.WindowReport) error {
	if len(w.Samples) == 0 {
		return nil
	}
	t0 := w.Samples[0].Timestamp

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Window %d - %d bpm (raw %d)", w.Index, w.Result.HeartRate, w.Result.RawRate)
	p.X.Label.Text = "Time (ms)"
	p.Y.Label.Text = "Red intensity"

	rawPts := make(plotter.XYs, len(w.Samples))
	for i, s := range w.Samples {
		rawPts[i] = plotter.XY{X: float64(s.Timestamp - t0), Y: s.Intensity}
	}
	rawLine, err := plotter.NewLine(rawPts)
	if err != nil {
		return err
	}
	rawLine.Color = rawColor
	rawLine.Width = vg.Points(1)
	p.Add(rawLine)
	p.Legend.Add("raw", rawLine)

	if len(w.Smoothed) == len(w.Samples) {
		smoothPts := make(plotter.XYs, len(w.Smoothed))
		for i, v := range w.Smoothed {
			smoothPts[i] = plotter.XY{X: rawPts[i].X, Y: v}
		}
		smoothLine, err := plotter.NewLine(smoothPts)
		if err != nil {
			return err
		}
		smoothLine.Color = smoothedColor
		smoothLine.Width = vg.Points(1.5)
		p.Add(smoothLine)
		p.Legend.Add("smoothed", smoothLine)

		peakPts := make(plotter.XYs, 0, len(w.Peaks))
		for _, i := range w.Peaks {
			if i >= 0 && i < len(smoothPts) {
				peakPts = append(peakPts, smoothPts[i])
			}
		}
		if len(peakPts) > 0 {
			peaks, err := plotter.NewScatter(peakPts)
			if err != nil {
				return err
			}
			peaks.GlyphStyle.Color = peakColor
			peaks.GlyphStyle.Shape = draw.CircleGlyph{}
			peaks.GlyphStyle.Radius = vg.Points(3)
			p.Add(peaks)
			p.Legend.Add("peaks", peaks)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(wp.outputDir, fmt.Sprintf("window_%03d.png", w.Index))
	if err := p.Save(10*vg.Inch, 4*vg.Inch, file); err != nil {
		return fmt.Errorf("save window plot: %w", err)
	}
	return nil
}

func (wp *WindowPlotter) generateTrendPlot() error {
	t0 := wp.trend[0].Timestamp

	p := plot.New()
	p.Title.Text = "Heart rate"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "bpm"

	rate := make(plotter.XYs, len(wp.trend))
	raw := make(plotter.XYs, len(wp.trend))
	for i, pt := range wp.trend {
		x := float64(pt.Timestamp-t0) / 1000
		rate[i] = plotter.XY{X: x, Y: float64(pt.HeartRate)}
		raw[i] = plotter.XY{X: x, Y: float64(pt.RawRate)}
	}

	rawLine, err := plotter.NewLine(raw)
	if err != nil {
		return err
	}
	rawLine.Color = rawRateColor
	rawLine.Width = vg.Points(1)
	rawLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(rawLine)
	p.Legend.Add("raw", rawLine)

	rateLine, points, err := plotter.NewLinePoints(rate)
	if err != nil {
		return err
	}
	rateLine.Color = smoothedColor
	rateLine.Width = vg.Points(1.5)
	points.GlyphStyle.Color = smoothedColor
	p.Add(rateLine, points)
	p.Legend.Add("reported", rateLine)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(wp.outputDir, "heart_rate.png")
	if err := p.Save(10*vg.Inch, 4*vg.Inch, file); err != nil {
		return fmt.Errorf("save heart rate plot: %w", err)
	}
	return nil
}
