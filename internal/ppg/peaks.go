package ppg

import "fmt"

// DefaultSmoothingWindow is the width of the centred moving average applied
// before peak search.
const DefaultSmoothingWindow = 5

// Smooth replaces each value with the mean of a centred window of the given
// width. The window is clamped at the series boundaries, so it shrinks near
// the edges instead of wrapping or padding.
func Smooth(values []float64, window int) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}
	half := window / 2
	if half < 0 {
		half = 0
	}

	out := make([]float64, n)
	for i := range values {
		start := max(0, i-half)
		end := min(n-1, i+half)
		var sum float64
		for _, v := range values[start : end+1] {
			sum += v
		}
		out[i] = sum / float64(end-start+1)
	}
	return out
}

// SmoothHalfOpen is Smooth over the half-open window [i-w/2, i+w/2), so
// each mean leans one sample towards the past. A crest sampled at two
// equal heights then still yields a strict maximum. An empty
// window (width 1) keeps the value as-is.
func SmoothHalfOpen(values []float64, window int) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}
	half := max(0, window/2)

	out := make([]float64, n)
	for i, v := range values {
		start := max(0, i-half)
		end := min(n, i+half)
		if end <= start {
			out[i] = v
			continue
		}
		var sum float64
		for _, x := range values[start:end] {
			sum += x
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// PeakWindow selects the smoothing window used before peak search.
type PeakWindow int

const (
	// PeakWindowCentred averages [i-w/2, i+w/2].
	PeakWindowCentred PeakWindow = iota
	// PeakWindowHalfOpen averages [i-w/2, i+w/2).
	PeakWindowHalfOpen
)

func (p PeakWindow) String() string {
	switch p {
	case PeakWindowCentred:
		return "centred"
	case PeakWindowHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("PeakWindow(%d)", int(p))
	}
}

// ParsePeakWindow maps a configuration name to a window shape.
func ParsePeakWindow(s string) (PeakWindow, error) {
	switch s {
	case "", "centred":
		return PeakWindowCentred, nil
	case "half_open":
		return PeakWindowHalfOpen, nil
	default:
		return 0, fmt.Errorf("unknown peak window %q", s)
	}
}

// Smooth applies the window shape p.
func (p PeakWindow) Smooth(values []float64, window int) []float64 {
	if p == PeakWindowHalfOpen {
		return SmoothHalfOpen(values, window)
	}
	return Smooth(values, window)
}

// FindLocalMaxima returns, in ascending order, the indices 1..n-2 whose
// value strictly exceeds both neighbours.
func FindLocalMaxima(values []float64) []int {
	var peaks []int
	for i := 1; i < len(values)-1; i++ {
		if values[i] > values[i-1] && values[i] > values[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// FindPeaks smooths the sample intensities and returns the indices of the
// strict local maxima. No amplitude threshold is applied.
func FindPeaks(samples []Sample, window int) []int {
	return FindLocalMaxima(Smooth(intensities(samples), window))
}

func intensities(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Intensity
	}
	return out
}
