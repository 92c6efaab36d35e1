package ppg

import (
	"math"
	"sort"
)

// Default bounds and deviation tolerance for interval filtering.
const (
	DefaultMinIntervalMs   = 300
	DefaultMaxIntervalMs   = 1400
	DefaultChangeThreshold = 0.3
)

// OutlierFilter removes implausible intervals from a series. A nil input
// yields a nil output.
type OutlierFilter interface {
	Filter(intervals []Interval) []Interval
}

// RangeFilter keeps intervals within [Min, Max] milliseconds.
type RangeFilter struct {
	Min, Max Interval
}

// NewRangeFilter returns a RangeFilter with the default bounds.
func NewRangeFilter() RangeFilter {
	return RangeFilter{Min: DefaultMinIntervalMs, Max: DefaultMaxIntervalMs}
}

func (f RangeFilter) Filter(intervals []Interval) []Interval {
	if intervals == nil {
		return nil
	}
	out := make([]Interval, 0, len(intervals))
	for _, v := range intervals {
		if v >= f.Min && v <= f.Max {
			out = append(out, v)
		}
	}
	return out
}

// MedianFilter applies the range gate, then repeatedly removes intervals
// that deviate by more than ChangeThreshold. The first interval is compared
// against the median of the current set and every later interval against
// its predecessor in that set. Passes repeat while at least three
// intervals remain and the previous pass removed something.
type MedianFilter struct {
	ChangeThreshold float64
	Min, Max        Interval
}

// NewMedianFilter returns a MedianFilter with the default parameters.
func NewMedianFilter() MedianFilter {
	return MedianFilter{
		ChangeThreshold: DefaultChangeThreshold,
		Min:             DefaultMinIntervalMs,
		Max:             DefaultMaxIntervalMs,
	}
}

func (f MedianFilter) Filter(intervals []Interval) []Interval {
	if intervals == nil {
		return nil
	}
	cur := RangeFilter{Min: f.Min, Max: f.Max}.Filter(intervals)

	for len(cur) >= 3 {
		m := median(cur)
		next := make([]Interval, 0, len(cur))
		for i, v := range cur {
			ref := m
			if i > 0 {
				ref = float64(cur[i-1])
			}
			if deviation(float64(v), ref) <= f.ChangeThreshold {
				next = append(next, v)
			}
		}
		if len(next) == len(cur) {
			break
		}
		cur = next
	}
	return cur
}

// deviation is |v-ref|/ref, infinite when ref is zero.
func deviation(v, ref float64) float64 {
	if ref == 0 {
		return math.Inf(1)
	}
	return math.Abs(v-ref) / ref
}

// median of a non-empty series; the mean of the two middle values when the
// length is even.
func median(intervals []Interval) float64 {
	n := len(intervals)
	if n == 0 {
		return 0
	}
	s := make([]Interval, n)
	copy(s, intervals)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	if n%2 == 1 {
		return float64(s[n/2])
	}
	return (float64(s[n/2-1]) + float64(s[n/2])) / 2
}
