package ppg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Plausible heart rates lie strictly between these bounds.
const (
	MinPlausibleRate = 50
	MaxPlausibleRate = 200

	DefaultSmoothingFactor = 0.5
)

// SmoothingPolicy selects how a new raw rate is combined with the last
// accepted one.
type SmoothingPolicy int

const (
	// SmoothingExponential blends plausible rates with the previous
	// accepted rate and holds the previous rate through implausible ones.
	SmoothingExponential SmoothingPolicy = iota
	// SmoothingGated reports plausible rates as-is and 0 otherwise.
	SmoothingGated
)

func (p SmoothingPolicy) String() string {
	switch p {
	case SmoothingExponential:
		return "exponential"
	case SmoothingGated:
		return "gated"
	default:
		return fmt.Sprintf("SmoothingPolicy(%d)", int(p))
	}
}

// ParseSmoothingPolicy maps a configuration name to a policy.
func ParseSmoothingPolicy(s string) (SmoothingPolicy, error) {
	switch s {
	case "", "exponential":
		return SmoothingExponential, nil
	case "gated":
		return SmoothingGated, nil
	default:
		return 0, fmt.Errorf("unknown smoothing policy %q", s)
	}
}

// IsPlausibleRate reports whether bpm is within (50, 200).
func IsPlausibleRate(bpm int) bool {
	return bpm > MinPlausibleRate && bpm < MaxPlausibleRate
}

// HeartRateState is the temporal state carried between windows.
// LastAcceptedRate is 0 until a rate has been accepted.
type HeartRateState struct {
	LastAcceptedRate int
	SmoothingFactor  float64
}

// RateComputer converts filtered intervals into beats per minute.
type RateComputer struct {
	Policy  SmoothingPolicy
	state   HeartRateState
	lastRaw int
}

// NewRateComputer returns a computer with the given policy and smoothing
// factor. Factors outside [0, 1] are clamped.
func NewRateComputer(policy SmoothingPolicy, factor float64) *RateComputer {
	factor = math.Max(0, math.Min(1, factor))
	return &RateComputer{
		Policy: policy,
		state:  HeartRateState{SmoothingFactor: factor},
	}
}

// RawRate returns round(60000 / mean(intervals)), or 0 for an empty series
// or a non-positive mean.
func RawRate(intervals []Interval) int {
	if len(intervals) == 0 {
		return 0
	}
	xs := make([]float64, len(intervals))
	for i, v := range intervals {
		xs[i] = float64(v)
	}
	mean := stat.Mean(xs, nil)
	if mean <= 0 {
		return 0
	}
	return int(math.Round(60000 / mean))
}

// Compute returns the rate to report for this window and updates the
// accepted state when the result is a newly accepted rate.
func (c *RateComputer) Compute(filtered []Interval) int {
	if len(filtered) == 0 {
		c.lastRaw = 0
		return 0
	}
	raw := RawRate(filtered)
	c.lastRaw = raw
	prev := c.state.LastAcceptedRate

	if c.Policy == SmoothingGated {
		if !IsPlausibleRate(raw) {
			return 0
		}
		c.state.LastAcceptedRate = raw
		return raw
	}

	switch {
	case IsPlausibleRate(raw) && !IsPlausibleRate(prev):
		c.state.LastAcceptedRate = raw
		return raw
	case IsPlausibleRate(raw):
		a := c.state.SmoothingFactor
		smoothed := int(math.Round(float64(raw)*(1-a) + float64(prev)*a))
		c.state.LastAcceptedRate = smoothed
		return smoothed
	case IsPlausibleRate(prev):
		return prev
	default:
		return 0
	}
}

// LastRaw is the unsmoothed rate from the most recent Compute call.
func (c *RateComputer) LastRaw() int { return c.lastRaw }

// State returns a copy of the current temporal state.
func (c *RateComputer) State() HeartRateState { return c.state }

// Reset forgets the last accepted rate.
func (c *RateComputer) Reset() {
	c.state.LastAcceptedRate = 0
	c.lastRaw = 0
}
