package capture

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

// Synthetic pulse defaults. From phase 0, 100ms samples of a 60 bpm pulse
// straddle each crest with two equal values, which the default centred
// peak window (ppg.PeakWindowCentred) smooths into a tie. The offset
// moves the crests off that midpoint.
const (
	DefaultSyntheticBPM     = 60
	DefaultSyntheticPhaseMs = 130
	syntheticBase           = 150
	syntheticAmplitude      = 40
)

// RenderPulse draws a w x h fingertip frame whose red level follows a sine
// at bpm beats per minute, evaluated at ts milliseconds.
func RenderPulse(ts int64, bpm float64, phaseMs int64, w, h int) *image.RGBA {
	periodMs := 60000 / bpm
	v := syntheticBase + syntheticAmplitude*math.Sin(2*math.Pi*float64(ts+phaseMs)/periodMs)
	red := uint8(math.Round(v))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = red
		img.Pix[i+1] = 40
		img.Pix[i+2] = 40
		img.Pix[i+3] = 0xff
	}
	return img
}

// PulseFrames renders count frames spaced interval apart starting at
// startMs.
func PulseFrames(startMs int64, count int, interval time.Duration, bpm float64) []ppg.Frame {
	out := make([]ppg.Frame, count)
	step := interval.Milliseconds()
	for i := range out {
		ts := startMs + int64(i)*step
		out[i] = ppg.Frame{Image: RenderPulse(ts, bpm, DefaultSyntheticPhaseMs, 64, 48), Timestamp: ts}
	}
	return out
}

// SyntheticSource generates a pulsating red frame on every tick of Clock.
type SyntheticSource struct {
	BPM      float64
	Width    int
	Height   int
	Interval time.Duration
	PhaseMs  int64
	Clock    timeutil.Clock

	// Limit stops the source after this many frames when positive.
	Limit int
}

// NewSyntheticSource returns a 64x48 source at bpm, paced by clock every
// interval.
func NewSyntheticSource(bpm float64, interval time.Duration, clock timeutil.Clock) *SyntheticSource {
	return &SyntheticSource{
		BPM:      bpm,
		Width:    64,
		Height:   48,
		Interval: interval,
		PhaseMs:  DefaultSyntheticPhaseMs,
		Clock:    clock,
	}
}

func (s *SyntheticSource) Frames(ctx context.Context) (<-chan ppg.Frame, error) {
	bpm := s.BPM
	if bpm <= 0 {
		bpm = DefaultSyntheticBPM
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	w, h := s.Width, s.Height
	if w <= 0 || h <= 0 {
		w, h = 64, 48
	}

	out := make(chan ppg.Frame)
	ticker := clock.NewTicker(interval)
	go func() {
		defer close(out)
		defer ticker.Stop()
		for n := 0; s.Limit <= 0 || n < s.Limit; n++ {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C():
				ts := now.UnixMilli()
				f := ppg.Frame{Image: RenderPulse(ts, bpm, s.PhaseMs, w, h), Timestamp: ts}
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
