package ppg

import "github.com/gammazero/deque"

// DefaultHistoryCapacity bounds the number of intervals retained across
// windows.
const DefaultHistoryCapacity = 10

// Interval is the time between two consecutive heart beats, in
// milliseconds.
type Interval int64

// ToIntervals converts the peak indices of a window into the differences
// between consecutive peak timestamps. Fewer than two peaks is reported as
// (nil, false), which callers must treat as insufficient data rather than
// an empty result.
func ToIntervals(peaks []int, samples []Sample) ([]Interval, bool) {
	if len(peaks) < 2 {
		return nil, false
	}
	out := make([]Interval, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		d := samples[peaks[i]].Timestamp - samples[peaks[i-1]].Timestamp
		out = append(out, Interval(d))
	}
	return out, true
}

// IntervalHistory is a bounded FIFO of intervals spanning several windows.
type IntervalHistory struct {
	capacity int
	q        deque.Deque[Interval]
}

// NewIntervalHistory creates a history holding at most capacity intervals.
// A non-positive capacity selects DefaultHistoryCapacity.
func NewIntervalHistory(capacity int) *IntervalHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &IntervalHistory{capacity: capacity}
}

// AppendBatch appends the whole batch, then drops the oldest entries until
// the history fits its capacity.
func (h *IntervalHistory) AppendBatch(batch []Interval) {
	for _, v := range batch {
		h.q.PushBack(v)
	}
	for h.q.Len() > h.capacity {
		h.q.PopFront()
	}
}

// Values returns a copy of the history, oldest first.
func (h *IntervalHistory) Values() []Interval {
	out := make([]Interval, h.q.Len())
	for i := range out {
		out[i] = h.q.At(i)
	}
	return out
}

// Len returns the number of retained intervals.
func (h *IntervalHistory) Len() int { return h.q.Len() }

// Capacity returns the maximum number of retained intervals.
func (h *IntervalHistory) Capacity() int { return h.capacity }

// Clear discards all intervals.
func (h *IntervalHistory) Clear() { h.q.Clear() }
