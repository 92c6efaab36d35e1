package ppg

import (
	"math"
	"sync"

	"github.com/banshee-data/pulse.report/internal/monitoring"
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithWindowObserver attaches an observer that receives every drained
// window along with its intermediate series.
func WithWindowObserver(o WindowObserver) Option {
	return func(a *Analyzer) { a.observer = o }
}

// WithListener registers l at construction. Invalid listeners are logged
// and ignored.
func WithListener(l Listener) Option {
	return func(a *Analyzer) {
		if err := a.dispatcher.Add(l); err != nil {
			monitoring.Logf("[ppg] listener rejected: %v", err)
		}
	}
}

// Stats are cumulative analyzer counters.
type Stats struct {
	Processed           uint64 `json:"processed"`
	Skipped             uint64 `json:"skipped"`
	Malformed           uint64 `json:"malformed"`
	FingerAbsent        uint64 `json:"finger_absent"`
	Windows             uint64 `json:"windows"`
	InsufficientWindows uint64 `json:"insufficient_windows"`
	BufferLen           int    `json:"buffer_len"`
	HistoryLen          int    `json:"history_len"`
	LastAcceptedRate    int    `json:"last_accepted_rate"`
	Listeners           int    `json:"listeners"`
}

// Analyzer turns a stream of frames into heart-rate results. Frames must be
// fed from a single goroutine in arrival order; listeners may be added and
// removed from any goroutine.
type Analyzer struct {
	cfg        Config
	dispatcher Dispatcher
	observer   WindowObserver

	mu            sync.Mutex
	buffer        *SignalBuffer
	history       *IntervalHistory
	filter        OutlierFilter
	rate          *RateComputer
	effective     *EffectiveTracker
	lastProcessed int64
	hasProcessed  bool
	closed        bool
	windows       int
	stats         Stats
}

// NewAnalyzer allocates an analyzer with fresh state. Zero config fields
// take their defaults, apart from SmoothingFactor (see Config). A negative
// MinFrameIntervalMs is raised to 0 so frames older than the last
// processed one are still skipped.
func NewAnalyzer(cfg Config, opts ...Option) *Analyzer {
	cfg = cfg.withDefaults()
	if cfg.MinFrameIntervalMs < 0 {
		monitoring.Logf("[ppg] min frame interval %d is negative, using 0", cfg.MinFrameIntervalMs)
		cfg.MinFrameIntervalMs = 0
	}
	a := &Analyzer{
		cfg:       cfg,
		buffer:    NewSignalBuffer(cfg.WindowSize),
		history:   NewIntervalHistory(cfg.HistoryCapacity),
		filter:    cfg.NewFilter(),
		rate:      NewRateComputer(cfg.Smoothing, cfg.SmoothingFactor),
		effective: NewEffectiveTracker(cfg.EffectiveWindow),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// AddListener registers l for future results.
func (a *Analyzer) AddListener(l Listener) error {
	if err := a.dispatcher.Add(l); err != nil {
		monitoring.Logf("[ppg] listener rejected: %v", err)
		return err
	}
	return nil
}

// RemoveListener unregisters l.
func (a *Analyzer) RemoveListener(l Listener) {
	a.dispatcher.Remove(l)
}

// ProcessFrame analyses one frame. Frames arriving sooner than the minimum
// interval after the last processed frame are skipped without error.
// Results are delivered to listeners before ProcessFrame returns.
func (a *Analyzer) ProcessFrame(f Frame) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAnalyzerClosed
	}
	if err := f.Validate(); err != nil {
		a.stats.Malformed++
		a.mu.Unlock()
		monitoring.Debugf("[ppg] frame at %d rejected: %v", f.Timestamp, err)
		return err
	}
	if a.hasProcessed && !ShouldProcess(f.Timestamp, a.lastProcessed, a.cfg.MinFrameIntervalMs) {
		a.stats.Skipped++
		a.mu.Unlock()
		return nil
	}
	a.lastProcessed = f.Timestamp
	a.hasProcessed = true
	a.stats.Processed++

	if !IsFingerPresent(f.Image, a.cfg.FingerThreshold) {
		a.stats.FingerAbsent++
		a.buffer.Reset()
		a.history.Clear()
		a.effective.Reset()
		a.mu.Unlock()
		a.dispatcher.Dispatch(Result{Timestamp: f.Timestamp})
		return nil
	}

	state, err := a.buffer.Push(Sample{Timestamp: f.Timestamp, Intensity: AverageRedIntensity(f.Image)})
	if err != nil || state != WindowReady {
		a.mu.Unlock()
		return err
	}

	report := a.analyseWindow(f.Timestamp, a.buffer.Drain())
	observer := a.observer
	a.mu.Unlock()

	if observer != nil {
		observer.ObserveWindow(report)
	}
	a.dispatcher.Dispatch(report.Result)
	return nil
}

// analyseWindow runs peak detection through rate computation on a drained
// window. The caller holds a.mu.
func (a *Analyzer) analyseWindow(ts int64, samples []Sample) WindowReport {
	a.stats.Windows++
	a.windows++

	smoothed := a.cfg.PeakWindow.Smooth(intensities(samples), a.cfg.SmoothingWindow)
	peaks := FindLocalMaxima(smoothed)
	report := WindowReport{
		Index:    a.windows,
		Samples:  samples,
		Smoothed: smoothed,
		Peaks:    peaks,
	}

	intervals, ok := ToIntervals(peaks, samples)
	if !ok {
		a.stats.InsufficientWindows++
		a.effective.Record(false, false)
		report.Result = Result{Timestamp: ts, FingerDetected: true}
		return report
	}
	report.Intervals = intervals

	a.history.AppendBatch(intervals)
	filtered := a.filter.Filter(a.history.Values())
	report.Filtered = filtered

	bpm := a.rate.Compute(filtered)
	a.effective.Record(bpm != 0 && IsPlausibleRate(bpm), len(filtered) >= 2)
	hrEff, hrvEff := a.effective.Rates()

	report.Result = Result{
		Timestamp:      ts,
		FingerDetected: true,
		HeartRate:      bpm,
		RawRate:        a.rate.LastRaw(),
		SDNN:           int(math.Round(SDNN(filtered))),
		RMSSD:          int(math.Round(RMSSD(filtered))),
		HREffective:    hrEff,
		HRVEffective:   hrvEff,
		Intervals:      filtered,
		HasVariability: true,
	}
	return report
}

// Reset discards buffered samples, interval history, rate state and
// effective-rate tracking. Listeners are kept.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffer.Reset()
	a.history.Clear()
	a.rate.Reset()
	a.effective.Reset()
	a.hasProcessed = false
	a.lastProcessed = 0
}

// Close releases all state and listeners. Later calls to ProcessFrame
// return ErrAnalyzerClosed.
func (a *Analyzer) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.buffer.Reset()
	a.history.Clear()
	a.rate.Reset()
	a.effective.Reset()
	a.observer = nil
	a.mu.Unlock()

	a.dispatcher.Clear()
	return nil
}

// Stats returns a snapshot of the analyzer counters.
func (a *Analyzer) Stats() Stats {
	a.mu.Lock()
	s := a.stats
	s.BufferLen = a.buffer.Len()
	s.HistoryLen = a.history.Len()
	s.LastAcceptedRate = a.rate.State().LastAcceptedRate
	a.mu.Unlock()
	s.Listeners = a.dispatcher.Len()
	return s
}

// History returns a copy of the retained intervals, oldest first.
func (a *Analyzer) History() []Interval {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Values()
}
