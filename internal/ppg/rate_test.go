package ppg

import (
	"math"
	"testing"
)

func TestRawRate(t *testing.T) {
	tests := []struct {
		in   []Interval
		want int
	}{
		{[]Interval{1000, 1000, 1000}, 60},
		{[]Interval{700}, 86},
		{[]Interval{750, 850}, 75},
		{nil, 0},
		{[]Interval{0}, 0},
	}
	for _, tt := range tests {
		if got := RawRate(tt.in); got != tt.want {
			t.Errorf("RawRate(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRateComputer_Exponential(t *testing.T) {
	c := NewRateComputer(SmoothingExponential, DefaultSmoothingFactor)

	if got := c.Compute([]Interval{1000, 1000, 1000}); got != 60 {
		t.Fatalf("first Compute = %d, want 60", got)
	}
	// Both plausible: round(80*0.5 + 60*0.5).
	if got := c.Compute([]Interval{750}); got != 70 {
		t.Fatalf("blended Compute = %d, want 70", got)
	}
	if c.LastRaw() != 80 {
		t.Fatalf("LastRaw = %d, want 80", c.LastRaw())
	}
	// Raw 240 is implausible; the previous rate is held.
	if got := c.Compute([]Interval{250}); got != 70 {
		t.Fatalf("held Compute = %d, want 70", got)
	}
	if s := c.State(); s.LastAcceptedRate != 70 {
		t.Fatalf("state after implausible raw = %d, want 70", s.LastAcceptedRate)
	}
	// The next plausible reading blends with the held value.
	if got := c.Compute([]Interval{1000}); got != 65 {
		t.Fatalf("Compute after hold = %d, want 65", got)
	}
}

func TestRateComputer_ExponentialEscapesInvalidState(t *testing.T) {
	c := NewRateComputer(SmoothingExponential, 0.9)
	if got := c.Compute([]Interval{250}); got != 0 {
		t.Fatalf("implausible with no history = %d, want 0", got)
	}
	if s := c.State(); s.LastAcceptedRate != 0 {
		t.Fatalf("state = %d, want 0", s.LastAcceptedRate)
	}
	// No blending against an implausible previous value.
	if got := c.Compute([]Interval{500}); got != 120 {
		t.Fatalf("Compute = %d, want 120", got)
	}
}

func TestRateComputer_EmptyLeavesStateUnchanged(t *testing.T) {
	for _, policy := range []SmoothingPolicy{SmoothingExponential, SmoothingGated} {
		t.Run(policy.String(), func(t *testing.T) {
			c := NewRateComputer(policy, DefaultSmoothingFactor)
			c.Compute([]Interval{1000})
			before := c.State()
			if got := c.Compute(nil); got != 0 {
				t.Fatalf("Compute(nil) = %d, want 0", got)
			}
			if got := c.Compute([]Interval{}); got != 0 {
				t.Fatalf("Compute(empty) = %d, want 0", got)
			}
			if c.State() != before {
				t.Fatalf("state changed: %+v -> %+v", before, c.State())
			}
		})
	}
}

func TestRateComputer_Gated(t *testing.T) {
	c := NewRateComputer(SmoothingGated, DefaultSmoothingFactor)
	if got := c.Compute([]Interval{1000}); got != 60 {
		t.Fatalf("Compute = %d, want 60", got)
	}
	if got := c.Compute([]Interval{250}); got != 0 {
		t.Fatalf("implausible = %d, want 0", got)
	}
	if c.State().LastAcceptedRate != 60 {
		t.Fatalf("state = %d, want 60", c.State().LastAcceptedRate)
	}
	// No blending.
	if got := c.Compute([]Interval{750}); got != 80 {
		t.Fatalf("Compute = %d, want 80", got)
	}
}

func TestIsPlausibleRate(t *testing.T) {
	for bpm, want := range map[int]bool{0: false, 50: false, 51: true, 120: true, 199: true, 200: false} {
		if got := IsPlausibleRate(bpm); got != want {
			t.Errorf("IsPlausibleRate(%d) = %v, want %v", bpm, got, want)
		}
	}
}

func TestParseSmoothingPolicy(t *testing.T) {
	if p, err := ParseSmoothingPolicy("gated"); err != nil || p != SmoothingGated {
		t.Errorf("gated: %v, %v", p, err)
	}
	if p, err := ParseSmoothingPolicy(""); err != nil || p != SmoothingExponential {
		t.Errorf("default: %v, %v", p, err)
	}
	if _, err := ParseSmoothingPolicy("kalman"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestSDNNAndRMSSD(t *testing.T) {
	if got := SDNN([]Interval{1000, 1000, 1000}); got != 0 {
		t.Errorf("SDNN steady = %v, want 0", got)
	}
	if got := SDNN([]Interval{900, 1100}); got != 100 {
		t.Errorf("SDNN = %v, want 100", got)
	}
	if got := SDNN(nil); got != 0 {
		t.Errorf("SDNN(nil) = %v", got)
	}

	want := math.Sqrt(25000)
	if got := RMSSD([]Interval{900, 1100, 1000}); math.Abs(got-want) > 1e-9 {
		t.Errorf("RMSSD = %v, want %v", got, want)
	}
	if got := RMSSD([]Interval{900}); got != 0 {
		t.Errorf("RMSSD single = %v, want 0", got)
	}
}
