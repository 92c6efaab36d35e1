package ppg

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type windowLog struct{ reports []WindowReport }

func (w *windowLog) ObserveWindow(r WindowReport) { w.reports = append(w.reports, r) }

func feedPulse(t *testing.T, a *Analyzer, from, to, periodMs, phaseMs int64) {
	t.Helper()
	for ts := from; ts < to; ts += 100 {
		if err := a.ProcessFrame(pulseFrame(ts, periodMs, phaseMs)); err != nil {
			t.Fatalf("ProcessFrame(%d): %v", ts, err)
		}
	}
}

func TestAnalyzer_SineAt60BPM(t *testing.T) {
	halfOpen := DefaultConfig()
	halfOpen.PeakWindow = PeakWindowHalfOpen

	tests := []struct {
		name    string
		cfg     Config
		phaseMs int64
	}{
		{"centred window off crest", DefaultConfig(), offCrestMs},
		{"half-open window on crest", halfOpen, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			windows := &windowLog{}
			a := NewAnalyzer(tt.cfg, WithListener(rec), WithWindowObserver(windows))

			feedPulse(t, a, 0, 10_000, 1000, tt.phaseMs)

			if len(rec.rates) < 3 {
				t.Fatalf("got %d heart-rate deliveries, want at least 3", len(rec.rates))
			}
			for i, bpm := range rec.rates {
				if bpm < 58 || bpm > 62 {
					t.Errorf("delivery %d: heart rate %d not within 60±2", i, bpm)
				}
			}
			for _, f := range rec.fingers {
				if !f {
					t.Fatal("finger reported absent for red frames")
				}
			}
			if len(windows.reports) != len(rec.rates) {
				t.Errorf("observer saw %d windows, listeners saw %d results", len(windows.reports), len(rec.rates))
			}
			last := rec.results[len(rec.results)-1]
			if !last.HasVariability || last.HREffective != 1 {
				t.Errorf("last result = %+v, want variability with HR effective 1", last)
			}

			st := a.Stats()
			if st.Processed != 100 || st.Skipped != 0 || st.Windows != 3 {
				t.Errorf("Stats = %+v", st)
			}
		})
	}
}

// From phase 0 each crest lies midway between two equal samples, which
// the centred window smooths to equal values, so no window has two strict
// maxima.
func TestAnalyzer_CentredWindowOnCrest(t *testing.T) {
	rec := &recorder{}
	a := NewAnalyzer(DefaultConfig(), WithListener(rec))

	feedPulse(t, a, 0, 10_000, 1000, 0)

	if diff := cmp.Diff(rec.rates, []int{0, 0, 0}); diff != "" {
		t.Fatalf("rates mismatch (-got +want):\n%s", diff)
	}
	st := a.Stats()
	if st.Windows != 3 || st.InsufficientWindows != 3 || st.HistoryLen != 0 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestAnalyzer_ZeroSmoothingFactor(t *testing.T) {
	cfg := Config{}
	if got := NewAnalyzer(cfg).Config().SmoothingFactor; got != 0 {
		t.Fatalf("SmoothingFactor = %v, want 0 kept from Config{}", got)
	}
	if got := NewAnalyzer(DefaultConfig()).Config().SmoothingFactor; got != DefaultSmoothingFactor {
		t.Fatalf("DefaultConfig SmoothingFactor = %v, want %v", got, DefaultSmoothingFactor)
	}
}

func TestAnalyzer_NegativeFrameIntervalClamped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFrameIntervalMs = -50
	a := NewAnalyzer(cfg)
	if got := a.Config().MinFrameIntervalMs; got != 0 {
		t.Fatalf("MinFrameIntervalMs = %d, want 0", got)
	}

	for _, ts := range []int64{1000, 980, 1000, 1010} {
		if err := a.ProcessFrame(pulseFrame(ts, 1000, 0)); err != nil {
			t.Fatalf("ProcessFrame(%d): %v", ts, err)
		}
	}
	st := a.Stats()
	// 980 is older than the last processed frame and is skipped.
	if st.Processed != 3 || st.Skipped != 1 || st.BufferLen != 3 {
		t.Fatalf("Stats = %+v", st)
	}
}

func TestAnalyzer_FingerLossClearsHistory(t *testing.T) {
	rec := &recorder{}
	a := NewAnalyzer(DefaultConfig())
	if err := a.AddListener(rec); err != nil {
		t.Fatal(err)
	}

	feedPulse(t, a, 0, 10_000, 1000, offCrestMs)
	if len(a.History()) == 0 {
		t.Fatal("history empty after three windows")
	}
	if a.Stats().BufferLen == 0 {
		t.Fatal("expected a partial window in the buffer")
	}

	blue := solidFrame(10_000, 64, 48, color.RGBA{R: 10, G: 10, B: 200})
	if err := a.ProcessFrame(blue); err != nil {
		t.Fatal(err)
	}

	if n := len(a.History()); n != 0 {
		t.Fatalf("history length after finger loss = %d, want 0", n)
	}
	if a.Stats().BufferLen != 0 {
		t.Fatal("buffer not reset on finger loss")
	}
	if got := rec.rates[len(rec.rates)-1]; got != 0 {
		t.Fatalf("heart rate after finger loss = %d, want 0", got)
	}
	if got := rec.fingers[len(rec.fingers)-1]; got {
		t.Fatal("finger still reported present")
	}
	last := rec.results[len(rec.results)-1]
	if last.HasVariability {
		t.Error("finger-loss result should not carry variability")
	}
	// Rate state survives finger loss.
	if a.Stats().LastAcceptedRate != 60 {
		t.Errorf("LastAcceptedRate = %d, want 60", a.Stats().LastAcceptedRate)
	}
}

func TestAnalyzer_FrameGate(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	for _, ts := range []int64{0, 50, 99, 100, 150, 250} {
		if err := a.ProcessFrame(pulseFrame(ts, 1000, 0)); err != nil {
			t.Fatal(err)
		}
	}
	st := a.Stats()
	// 0, 100 and 250 are processed.
	if st.Processed != 3 || st.Skipped != 3 {
		t.Fatalf("Processed=%d Skipped=%d, want 3 and 3", st.Processed, st.Skipped)
	}
	if st.BufferLen != 3 {
		t.Fatalf("BufferLen = %d, want 3", st.BufferLen)
	}
}

func TestAnalyzer_MalformedFrame(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	if err := a.ProcessFrame(pulseFrame(0, 1000, 0)); err != nil {
		t.Fatal(err)
	}

	for _, f := range []Frame{{Timestamp: 100}, {Image: image.NewRGBA(image.Rectangle{}), Timestamp: 100}} {
		if err := a.ProcessFrame(f); !errors.Is(err, ErrMalformedFrame) {
			t.Fatalf("ProcessFrame(%+v) = %v, want ErrMalformedFrame", f, err)
		}
	}
	// The gate was not advanced, so a good frame at 100 is processed.
	if err := a.ProcessFrame(pulseFrame(100, 1000, 0)); err != nil {
		t.Fatal(err)
	}
	st := a.Stats()
	if st.Malformed != 2 || st.Processed != 2 {
		t.Fatalf("Stats = %+v", st)
	}
}

func TestAnalyzer_InsufficientPeaks(t *testing.T) {
	rec := &recorder{}
	a := NewAnalyzer(DefaultConfig(), WithListener(rec))

	// A constant signal has no strict maxima.
	for ts := int64(0); ts <= 3000; ts += 100 {
		f := solidFrame(ts, 64, 48, color.RGBA{R: 180, G: 40, B: 40})
		if err := a.ProcessFrame(f); err != nil {
			t.Fatal(err)
		}
	}

	if diff := cmp.Diff(rec.rates, []int{0}); diff != "" {
		t.Fatalf("rates mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(rec.fingers, []bool{true}); diff != "" {
		t.Fatalf("fingers mismatch (-got +want):\n%s", diff)
	}
	if len(rec.sdnn) != 0 {
		t.Errorf("SDNN delivered for an insufficient window: %v", rec.sdnn)
	}
	st := a.Stats()
	if st.InsufficientWindows != 1 || st.HistoryLen != 0 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestAnalyzer_ResetAndClose(t *testing.T) {
	rec := &recorder{}
	a := NewAnalyzer(DefaultConfig(), WithListener(rec))
	feedPulse(t, a, 0, 5_000, 1000, offCrestMs)

	a.Reset()
	st := a.Stats()
	if st.BufferLen != 0 || st.HistoryLen != 0 || st.LastAcceptedRate != 0 {
		t.Fatalf("Stats after Reset = %+v", st)
	}
	if st.Listeners != 1 {
		t.Fatalf("Reset dropped listeners: %d", st.Listeners)
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close = %v", err)
	}
	if err := a.ProcessFrame(pulseFrame(6_000, 1000, 0)); !errors.Is(err, ErrAnalyzerClosed) {
		t.Fatalf("ProcessFrame after Close = %v, want ErrAnalyzerClosed", err)
	}
	if a.Stats().Listeners != 0 {
		t.Fatal("Close kept listeners")
	}
}

func TestAnalyzer_RemoveListener(t *testing.T) {
	rec := &recorder{}
	a := NewAnalyzer(DefaultConfig(), WithListener(rec))
	a.RemoveListener(rec)
	feedPulse(t, a, 0, 4_000, 1000, offCrestMs)
	if len(rec.calls) != 0 {
		t.Fatalf("removed listener received %v", rec.calls)
	}
}
