package ppg

import (
	"errors"
	"fmt"
)

// FilterStrategy selects the OutlierFilter used on the interval history.
type FilterStrategy int

const (
	FilterMedian FilterStrategy = iota
	FilterRange
)

func (s FilterStrategy) String() string {
	switch s {
	case FilterMedian:
		return "median"
	case FilterRange:
		return "range"
	default:
		return fmt.Sprintf("FilterStrategy(%d)", int(s))
	}
}

// ParseFilterStrategy maps a configuration name to a strategy.
func ParseFilterStrategy(s string) (FilterStrategy, error) {
	switch s {
	case "", "median":
		return FilterMedian, nil
	case "range":
		return FilterRange, nil
	default:
		return 0, fmt.Errorf("unknown filter strategy %q", s)
	}
}

// Config holds the analyzer parameters. Zero values select defaults,
// except SmoothingFactor: 0 is a valid factor that reports each plausible
// raw rate unblended. Start from DefaultConfig to get 0.5.
type Config struct {
	WindowSize         int
	HistoryCapacity    int
	MinFrameIntervalMs int64
	SmoothingWindow    int
	FingerThreshold    float64
	ChangeThreshold    float64
	MinIntervalMs      int64
	MaxIntervalMs      int64
	SmoothingFactor    float64
	Filter             FilterStrategy
	Smoothing          SmoothingPolicy
	PeakWindow         PeakWindow
	EffectiveWindow    int
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		WindowSize:         DefaultWindowSize,
		HistoryCapacity:    DefaultHistoryCapacity,
		MinFrameIntervalMs: DefaultMinFrameIntervalMs,
		SmoothingWindow:    DefaultSmoothingWindow,
		FingerThreshold:    DefaultFingerThreshold,
		ChangeThreshold:    DefaultChangeThreshold,
		MinIntervalMs:      DefaultMinIntervalMs,
		MaxIntervalMs:      DefaultMaxIntervalMs,
		SmoothingFactor:    DefaultSmoothingFactor,
		Filter:             FilterMedian,
		Smoothing:          SmoothingExponential,
		PeakWindow:         PeakWindowCentred,
		EffectiveWindow:    DefaultEffectiveWindow,
	}
}

// withDefaults fills zero fields from DefaultConfig. SmoothingFactor is
// left alone since 0 is a meaningful value.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WindowSize == 0 {
		c.WindowSize = d.WindowSize
	}
	if c.HistoryCapacity == 0 {
		c.HistoryCapacity = d.HistoryCapacity
	}
	if c.MinFrameIntervalMs == 0 {
		c.MinFrameIntervalMs = d.MinFrameIntervalMs
	}
	if c.SmoothingWindow == 0 {
		c.SmoothingWindow = d.SmoothingWindow
	}
	if c.FingerThreshold == 0 {
		c.FingerThreshold = d.FingerThreshold
	}
	if c.ChangeThreshold == 0 {
		c.ChangeThreshold = d.ChangeThreshold
	}
	if c.MinIntervalMs == 0 {
		c.MinIntervalMs = d.MinIntervalMs
	}
	if c.MaxIntervalMs == 0 {
		c.MaxIntervalMs = d.MaxIntervalMs
	}
	if c.EffectiveWindow == 0 {
		c.EffectiveWindow = d.EffectiveWindow
	}
	return c
}

// Validate checks parameter ranges after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	var errs []error
	if c.WindowSize < 3 {
		errs = append(errs, fmt.Errorf("window size %d must be at least 3", c.WindowSize))
	}
	if c.HistoryCapacity < 1 {
		errs = append(errs, fmt.Errorf("history capacity %d must be positive", c.HistoryCapacity))
	}
	if c.MinFrameIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("min frame interval %d must not be negative", c.MinFrameIntervalMs))
	}
	if c.SmoothingWindow < 1 {
		errs = append(errs, fmt.Errorf("smoothing window %d must be positive", c.SmoothingWindow))
	}
	if c.FingerThreshold < 0 || c.FingerThreshold >= 1 {
		errs = append(errs, fmt.Errorf("finger threshold %v must be in [0, 1)", c.FingerThreshold))
	}
	if c.ChangeThreshold <= 0 {
		errs = append(errs, fmt.Errorf("change threshold %v must be positive", c.ChangeThreshold))
	}
	if c.MinIntervalMs <= 0 || c.MaxIntervalMs <= c.MinIntervalMs {
		errs = append(errs, fmt.Errorf("interval range [%d, %d] is empty", c.MinIntervalMs, c.MaxIntervalMs))
	}
	if c.SmoothingFactor < 0 || c.SmoothingFactor > 1 {
		errs = append(errs, fmt.Errorf("smoothing factor %v must be in [0, 1]", c.SmoothingFactor))
	}
	if c.Filter != FilterMedian && c.Filter != FilterRange {
		errs = append(errs, fmt.Errorf("unknown filter %v", c.Filter))
	}
	if c.Smoothing != SmoothingExponential && c.Smoothing != SmoothingGated {
		errs = append(errs, fmt.Errorf("unknown smoothing %v", c.Smoothing))
	}
	if c.PeakWindow != PeakWindowCentred && c.PeakWindow != PeakWindowHalfOpen {
		errs = append(errs, fmt.Errorf("unknown peak window %v", c.PeakWindow))
	}
	if c.EffectiveWindow < 1 {
		errs = append(errs, fmt.Errorf("effective window %d must be positive", c.EffectiveWindow))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// NewFilter builds the OutlierFilter selected by the config.
func (c Config) NewFilter() OutlierFilter {
	c = c.withDefaults()
	if c.Filter == FilterRange {
		return RangeFilter{Min: Interval(c.MinIntervalMs), Max: Interval(c.MaxIntervalMs)}
	}
	return MedianFilter{
		ChangeThreshold: c.ChangeThreshold,
		Min:             Interval(c.MinIntervalMs),
		Max:             Interval(c.MaxIntervalMs),
	}
}
