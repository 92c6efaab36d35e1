package capture

import (
	"context"
	"net/http"
	"sync"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// DisabledFrameMux stands in for the camera link when none is attached
// (-source disabled). Subscribers never receive frames; their channels are
// closed on Unsubscribe or Close so readers unblock during shutdown.
type DisabledFrameMux struct {
	mu          sync.Mutex
	subscribers map[string]chan ppg.Frame
	closing     bool
}

func NewDisabledFrameMux() *DisabledFrameMux {
	return &DisabledFrameMux{
		subscribers: make(map[string]chan ppg.Frame),
	}
}

func (d *DisabledFrameMux) Subscribe() (string, <-chan ppg.Frame) {
	id := randomID()
	ch := make(chan ppg.Frame)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledFrameMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

func (d *DisabledFrameMux) Frames(ctx context.Context) (<-chan ppg.Frame, error) {
	id, ch := d.Subscribe()
	go func() {
		<-ctx.Done()
		d.Unsubscribe(id)
	}()
	return ch, nil
}

func (d *DisabledFrameMux) SendCommand(string) error { return nil }

func (d *DisabledFrameMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledFrameMux) Initialize() error { return nil }

func (d *DisabledFrameMux) Stats() Stats { return Stats{} }

func (d *DisabledFrameMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledFrameMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/capture-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("capture disabled"))
	})
}
