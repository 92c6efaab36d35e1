package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the analyzer and capture tuning parameters. Every field
// is optional; the Get* accessors supply defaults for missing values so
// partial files are safe.
type TuningConfig struct {
	// Frame gating and windowing
	MinFrameIntervalMs *int64 `json:"min_frame_interval_ms,omitempty" yaml:"min_frame_interval_ms,omitempty"`
	WindowSize         *int   `json:"window_size,omitempty" yaml:"window_size,omitempty"`
	SmoothingWindow    *int   `json:"smoothing_window,omitempty" yaml:"smoothing_window,omitempty"`
	HistoryCapacity    *int   `json:"history_capacity,omitempty" yaml:"history_capacity,omitempty"`

	// Finger detection
	FingerThreshold *float64 `json:"finger_threshold,omitempty" yaml:"finger_threshold,omitempty"`

	// Interval filtering
	FilterStrategy  *string  `json:"filter_strategy,omitempty" yaml:"filter_strategy,omitempty"` // "median" or "range"
	PeakWindow      *string  `json:"peak_window,omitempty" yaml:"peak_window,omitempty"`         // "centred" or "half_open"
	ChangeThreshold *float64 `json:"change_threshold,omitempty" yaml:"change_threshold,omitempty"`
	MinIntervalMs   *int64   `json:"min_interval_ms,omitempty" yaml:"min_interval_ms,omitempty"`
	MaxIntervalMs   *int64   `json:"max_interval_ms,omitempty" yaml:"max_interval_ms,omitempty"`

	// Rate smoothing
	Smoothing       *string  `json:"smoothing,omitempty" yaml:"smoothing,omitempty"` // "exponential" or "gated"
	SmoothingFactor *float64 `json:"smoothing_factor,omitempty" yaml:"smoothing_factor,omitempty"`
	EffectiveWindow *int     `json:"effective_window,omitempty" yaml:"effective_window,omitempty"`

	// Capture
	ReplayInterval *string `json:"replay_interval,omitempty" yaml:"replay_interval,omitempty"` // duration string like "100ms"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the analyzer defaults.
func DefaultTuningConfig() *TuningConfig {
	d := ppg.DefaultConfig()
	return &TuningConfig{
		MinFrameIntervalMs: ptrInt64(d.MinFrameIntervalMs),
		WindowSize:         ptrInt(d.WindowSize),
		SmoothingWindow:    ptrInt(d.SmoothingWindow),
		HistoryCapacity:    ptrInt(d.HistoryCapacity),
		FingerThreshold:    ptrFloat64(d.FingerThreshold),
		FilterStrategy:     ptrString(d.Filter.String()),
		PeakWindow:         ptrString(d.PeakWindow.String()),
		ChangeThreshold:    ptrFloat64(d.ChangeThreshold),
		MinIntervalMs:      ptrInt64(d.MinIntervalMs),
		MaxIntervalMs:      ptrInt64(d.MaxIntervalMs),
		Smoothing:          ptrString(d.Smoothing.String()),
		SmoothingFactor:    ptrFloat64(d.SmoothingFactor),
		EffectiveWindow:    ptrInt(d.EffectiveWindow),
		ReplayInterval:     ptrString("100ms"),
	}
}

// LoadTuningConfig loads a TuningConfig from a .json, .yaml or .yml file
// no larger than 1MB. Fields omitted from the file keep their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and its parents.
// Panics if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set. Cross-field checks are left to
// ppg.Config.Validate via ToAnalyzerConfig.
func (c *TuningConfig) Validate() error {
	if c.FingerThreshold != nil {
		if *c.FingerThreshold < 0 || *c.FingerThreshold >= 1 {
			return fmt.Errorf("finger_threshold must be in [0, 1), got %f", *c.FingerThreshold)
		}
	}
	if c.SmoothingFactor != nil {
		if *c.SmoothingFactor < 0 || *c.SmoothingFactor > 1 {
			return fmt.Errorf("smoothing_factor must be between 0 and 1, got %f", *c.SmoothingFactor)
		}
	}
	if c.ChangeThreshold != nil && *c.ChangeThreshold <= 0 {
		return fmt.Errorf("change_threshold must be positive, got %f", *c.ChangeThreshold)
	}
	if c.WindowSize != nil && *c.WindowSize < 3 {
		return fmt.Errorf("window_size must be at least 3, got %d", *c.WindowSize)
	}
	if c.MinFrameIntervalMs != nil && *c.MinFrameIntervalMs < 0 {
		return fmt.Errorf("min_frame_interval_ms must be non-negative, got %d", *c.MinFrameIntervalMs)
	}
	if c.FilterStrategy != nil {
		if _, err := ppg.ParseFilterStrategy(*c.FilterStrategy); err != nil {
			return fmt.Errorf("invalid filter_strategy: %w", err)
		}
	}
	if c.PeakWindow != nil {
		if _, err := ppg.ParsePeakWindow(*c.PeakWindow); err != nil {
			return fmt.Errorf("invalid peak_window: %w", err)
		}
	}
	if c.Smoothing != nil {
		if _, err := ppg.ParseSmoothingPolicy(*c.Smoothing); err != nil {
			return fmt.Errorf("invalid smoothing: %w", err)
		}
	}
	if c.ReplayInterval != nil && *c.ReplayInterval != "" {
		d, err := time.ParseDuration(*c.ReplayInterval)
		if err != nil {
			return fmt.Errorf("invalid replay_interval '%s': %w", *c.ReplayInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("replay_interval must be positive, got %s", d)
		}
	}
	return nil
}

// ToAnalyzerConfig converts the tuning values into an analyzer config and
// validates the result.
func (c *TuningConfig) ToAnalyzerConfig() (ppg.Config, error) {
	filter, err := ppg.ParseFilterStrategy(c.GetFilterStrategy())
	if err != nil {
		return ppg.Config{}, err
	}
	smoothing, err := ppg.ParseSmoothingPolicy(c.GetSmoothing())
	if err != nil {
		return ppg.Config{}, err
	}
	peakWindow, err := ppg.ParsePeakWindow(c.GetPeakWindow())
	if err != nil {
		return ppg.Config{}, err
	}
	cfg := ppg.Config{
		WindowSize:         c.GetWindowSize(),
		HistoryCapacity:    c.GetHistoryCapacity(),
		MinFrameIntervalMs: c.GetMinFrameIntervalMs(),
		SmoothingWindow:    c.GetSmoothingWindow(),
		FingerThreshold:    c.GetFingerThreshold(),
		ChangeThreshold:    c.GetChangeThreshold(),
		MinIntervalMs:      c.GetMinIntervalMs(),
		MaxIntervalMs:      c.GetMaxIntervalMs(),
		SmoothingFactor:    c.GetSmoothingFactor(),
		Filter:             filter,
		Smoothing:          smoothing,
		PeakWindow:         peakWindow,
		EffectiveWindow:    c.GetEffectiveWindow(),
	}
	if err := cfg.Validate(); err != nil {
		return ppg.Config{}, err
	}
	return cfg, nil
}

// GetReplayInterval parses and returns the ReplayInterval as a time.Duration.
func (c *TuningConfig) GetReplayInterval() time.Duration {
	if c.ReplayInterval == nil || *c.ReplayInterval == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.ReplayInterval)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// GetMinFrameIntervalMs returns the min_frame_interval_ms value or the default.
func (c *TuningConfig) GetMinFrameIntervalMs() int64 {
	if c.MinFrameIntervalMs == nil {
		return ppg.DefaultMinFrameIntervalMs
	}
	return *c.MinFrameIntervalMs
}

// GetWindowSize returns the window_size value or the default.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return ppg.DefaultWindowSize
	}
	return *c.WindowSize
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return ppg.DefaultSmoothingWindow
	}
	return *c.SmoothingWindow
}

// GetHistoryCapacity returns the history_capacity value or the default.
func (c *TuningConfig) GetHistoryCapacity() int {
	if c.HistoryCapacity == nil {
		return ppg.DefaultHistoryCapacity
	}
	return *c.HistoryCapacity
}

// GetFingerThreshold returns the finger_threshold value or the default.
func (c *TuningConfig) GetFingerThreshold() float64 {
	if c.FingerThreshold == nil {
		return ppg.DefaultFingerThreshold
	}
	return *c.FingerThreshold
}

// GetFilterStrategy returns the filter_strategy value or the default.
func (c *TuningConfig) GetFilterStrategy() string {
	if c.FilterStrategy == nil || *c.FilterStrategy == "" {
		return ppg.FilterMedian.String()
	}
	return *c.FilterStrategy
}

// GetChangeThreshold returns the change_threshold value or the default.
func (c *TuningConfig) GetChangeThreshold() float64 {
	if c.ChangeThreshold == nil {
		return ppg.DefaultChangeThreshold
	}
	return *c.ChangeThreshold
}

// GetMinIntervalMs returns the min_interval_ms value or the default.
func (c *TuningConfig) GetMinIntervalMs() int64 {
	if c.MinIntervalMs == nil {
		return ppg.DefaultMinIntervalMs
	}
	return *c.MinIntervalMs
}

// GetMaxIntervalMs returns the max_interval_ms value or the default.
func (c *TuningConfig) GetMaxIntervalMs() int64 {
	if c.MaxIntervalMs == nil {
		return ppg.DefaultMaxIntervalMs
	}
	return *c.MaxIntervalMs
}

// GetPeakWindow returns the peak_window value or the default.
func (c *TuningConfig) GetPeakWindow() string {
	if c.PeakWindow == nil || *c.PeakWindow == "" {
		return ppg.PeakWindowCentred.String()
	}
	return *c.PeakWindow
}

// GetSmoothing returns the smoothing value or the default.
func (c *TuningConfig) GetSmoothing() string {
	if c.Smoothing == nil || *c.Smoothing == "" {
		return ppg.SmoothingExponential.String()
	}
	return *c.Smoothing
}

// GetSmoothingFactor returns the smoothing_factor value or the default.
func (c *TuningConfig) GetSmoothingFactor() float64 {
	if c.SmoothingFactor == nil {
		return ppg.DefaultSmoothingFactor
	}
	return *c.SmoothingFactor
}

// GetEffectiveWindow returns the effective_window value or the default.
func (c *TuningConfig) GetEffectiveWindow() int {
	if c.EffectiveWindow == nil {
		return ppg.DefaultEffectiveWindow
	}
	return *c.EffectiveWindow
}
