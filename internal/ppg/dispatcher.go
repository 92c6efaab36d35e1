package ppg

import (
	"fmt"
	"reflect"
	"sync"
)

// Dispatcher fans results out to a set of listeners. Each dispatch
// delivers to a snapshot of the set taken when it starts, so listeners may
// be added or removed concurrently, including from within a callback.
type Dispatcher struct {
	mu        sync.Mutex
	listeners []Listener
}

// Add registers l. Adding a listener twice has no effect.
func (d *Dispatcher) Add(l Listener) error {
	if l == nil {
		return ErrNilListener
	}
	if !reflect.TypeOf(l).Comparable() {
		return fmt.Errorf("%w: %T", ErrListenerNotComparable, l)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.listeners {
		if existing == l {
			return nil
		}
	}
	d.listeners = append(d.listeners, l)
	return nil
}

// Remove unregisters l if present.
func (d *Dispatcher) Remove(l Listener) {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.listeners {
		if existing == l {
			d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// Clear removes every listener.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.listeners = nil
	d.mu.Unlock()
}

func (d *Dispatcher) snapshot() []Listener {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Listener, len(d.listeners))
	copy(out, d.listeners)
	return out
}

// Dispatch delivers r to every listener registered when the call began.
func (d *Dispatcher) Dispatch(r Result) {
	for _, l := range d.snapshot() {
		l.OnHeartRate(r.HeartRate)
		l.OnFingerDetected(r.FingerDetected)
		if r.HasVariability {
			l.OnSDNN(r.SDNN)
			l.OnRMSSD(r.RMSSD)
			l.OnEffectiveRate(r.HREffective, r.HRVEffective)
		}
		if rl, ok := l.(ResultListener); ok {
			rl.OnResult(r)
		}
	}
}
