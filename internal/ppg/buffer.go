package ppg

import "fmt"

// DefaultWindowSize is the number of samples after which a window is
// analysed. The window becomes ready on the sample that exceeds it.
const DefaultWindowSize = 30

// Sample is one intensity measurement.
type Sample struct {
	Timestamp int64   // milliseconds
	Intensity float64 // mean red channel value
}

// WindowState is the outcome of pushing a sample into a SignalBuffer.
type WindowState int

const (
	WindowPending WindowState = iota
	WindowReady
)

func (s WindowState) String() string {
	switch s {
	case WindowPending:
		return "pending"
	case WindowReady:
		return "ready"
	default:
		return fmt.Sprintf("WindowState(%d)", int(s))
	}
}

// SignalBuffer accumulates time-ordered samples until a window is ready.
type SignalBuffer struct {
	size    int
	samples []Sample
}

// NewSignalBuffer creates a buffer that becomes ready once it holds more
// than size samples. A non-positive size selects DefaultWindowSize.
func NewSignalBuffer(size int) *SignalBuffer {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &SignalBuffer{
		size:    size,
		samples: make([]Sample, 0, size+1),
	}
}

// Push appends s and reports whether the window is ready to be drained.
// Samples older than the last buffered sample are rejected.
func (b *SignalBuffer) Push(s Sample) (WindowState, error) {
	if n := len(b.samples); n > 0 && s.Timestamp < b.samples[n-1].Timestamp {
		return WindowPending, fmt.Errorf("%w: %d after %d", ErrOutOfOrderSample, s.Timestamp, b.samples[n-1].Timestamp)
	}
	b.samples = append(b.samples, s)
	if len(b.samples) > b.size {
		return WindowReady, nil
	}
	return WindowPending, nil
}

// Drain returns the buffered window and resets the buffer in one step.
func (b *SignalBuffer) Drain() []Sample {
	out := b.samples
	b.samples = make([]Sample, 0, b.size+1)
	return out
}

// Reset discards all buffered samples.
func (b *SignalBuffer) Reset() {
	b.samples = b.samples[:0]
}

// Len returns the number of buffered samples.
func (b *SignalBuffer) Len() int { return len(b.samples) }

// Size returns the configured window size.
func (b *SignalBuffer) Size() int { return b.size }
