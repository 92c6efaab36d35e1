package ppg

import "github.com/gammazero/deque"

// DefaultEffectiveWindow is the number of recent windows considered when
// computing effective rates.
const DefaultEffectiveWindow = 10

type windowOutcome struct {
	hr, hrv bool
}

// EffectiveTracker records whether recent windows produced a usable heart
// rate and variability value.
type EffectiveTracker struct {
	size     int
	outcomes deque.Deque[windowOutcome]
}

// NewEffectiveTracker tracks the last size windows. A non-positive size
// selects DefaultEffectiveWindow.
func NewEffectiveTracker(size int) *EffectiveTracker {
	if size <= 0 {
		size = DefaultEffectiveWindow
	}
	return &EffectiveTracker{size: size}
}

// Record adds the outcome of one analysed window.
func (t *EffectiveTracker) Record(hrOK, hrvOK bool) {
	t.outcomes.PushBack(windowOutcome{hr: hrOK, hrv: hrvOK})
	for t.outcomes.Len() > t.size {
		t.outcomes.PopFront()
	}
}

// Rates returns the fraction of tracked windows with a usable heart rate
// and variability value. Both are 0 when nothing has been recorded.
func (t *EffectiveTracker) Rates() (hr, hrv float64) {
	n := t.outcomes.Len()
	if n == 0 {
		return 0, 0
	}
	var hrCount, hrvCount int
	for i := 0; i < n; i++ {
		o := t.outcomes.At(i)
		if o.hr {
			hrCount++
		}
		if o.hrv {
			hrvCount++
		}
	}
	return float64(hrCount) / float64(n), float64(hrvCount) / float64(n)
}

// Len returns the number of tracked windows.
func (t *EffectiveTracker) Len() int { return t.outcomes.Len() }

// Reset forgets all recorded windows.
func (t *EffectiveTracker) Reset() { t.outcomes.Clear() }
