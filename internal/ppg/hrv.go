package ppg

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SDNN is the population standard deviation of the intervals in
// milliseconds. It is 0 for an empty series.
func SDNN(intervals []Interval) float64 {
	if len(intervals) == 0 {
		return 0
	}
	xs := make([]float64, len(intervals))
	for i, v := range intervals {
		xs[i] = float64(v)
	}
	_, std := stat.PopMeanStdDev(xs, nil)
	return std
}

// RMSSD is the root mean square of successive differences. It is 0 for
// fewer than two intervals.
func RMSSD(intervals []Interval) float64 {
	if len(intervals) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(intervals); i++ {
		d := float64(intervals[i] - intervals[i-1])
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(intervals)-1))
}
