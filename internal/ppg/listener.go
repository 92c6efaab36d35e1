package ppg

// Listener receives analysis results. Callbacks run synchronously on the
// goroutine calling ProcessFrame and must not block.
type Listener interface {
	// OnHeartRate reports the smoothed rate in bpm; 0 means no valid
	// reading this cycle.
	OnHeartRate(bpm int)
	OnFingerDetected(detected bool)
	OnSDNN(ms int)
	OnRMSSD(ms int)
	// OnEffectiveRate reports the fraction of recent windows that yielded
	// a plausible heart rate and a usable variability value.
	OnEffectiveRate(hr, hrv float64)
}

// ResultListener is a Listener that also wants the whole result in one
// call. OnResult runs after the individual callbacks.
type ResultListener interface {
	Listener
	OnResult(r Result)
}

// NopListener implements Listener with no-ops. Embed it to implement only
// the callbacks of interest.
type NopListener struct{}

func (NopListener) OnHeartRate(int)              {}
func (NopListener) OnFingerDetected(bool)        {}
func (NopListener) OnSDNN(int)                   {}
func (NopListener) OnRMSSD(int)                  {}
func (NopListener) OnEffectiveRate(_, _ float64) {}

// Result is one dispatch payload. Intervals is shared between listeners
// and must not be modified.
type Result struct {
	Timestamp      int64      `json:"timestamp_ms"`
	FingerDetected bool       `json:"finger_detected"`
	HeartRate      int        `json:"heart_rate"`
	RawRate        int        `json:"raw_rate"`
	SDNN           int        `json:"sdnn"`
	RMSSD          int        `json:"rmssd"`
	HREffective    float64    `json:"hr_effective"`
	HRVEffective   float64    `json:"hrv_effective"`
	Intervals      []Interval `json:"intervals,omitempty"`
	HasVariability bool       `json:"has_variability"`
}

// WindowReport carries the intermediate series of one analysed window.
type WindowReport struct {
	Index     int
	Samples   []Sample
	Smoothed  []float64
	Peaks     []int
	Intervals []Interval // nil when the window had fewer than two peaks
	Filtered  []Interval
	Result    Result
}

// WindowObserver receives a report for every drained window.
type WindowObserver interface {
	ObserveWindow(w WindowReport)
}

// ListenerFuncs adapts plain functions to a Listener. Nil fields are
// skipped. Use a pointer so the value is comparable.
type ListenerFuncs struct {
	HeartRate      func(bpm int)
	FingerDetected func(detected bool)
	SDNN           func(ms int)
	RMSSD          func(ms int)
	EffectiveRate  func(hr, hrv float64)
}

func (l *ListenerFuncs) OnHeartRate(bpm int) {
	if l.HeartRate != nil {
		l.HeartRate(bpm)
	}
}

func (l *ListenerFuncs) OnFingerDetected(detected bool) {
	if l.FingerDetected != nil {
		l.FingerDetected(detected)
	}
}

func (l *ListenerFuncs) OnSDNN(ms int) {
	if l.SDNN != nil {
		l.SDNN(ms)
	}
}

func (l *ListenerFuncs) OnRMSSD(ms int) {
	if l.RMSSD != nil {
		l.RMSSD(ms)
	}
}

func (l *ListenerFuncs) OnEffectiveRate(hr, hrv float64) {
	if l.EffectiveRate != nil {
		l.EffectiveRate(hr, hrv)
	}
}
