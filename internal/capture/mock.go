package capture

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/pulse.report/internal/timeutil"
)

var errPortClosed = errors.New("serial port closed")

// MockPort is a Porter whose reads come from a pipe fed by the mock device
// and whose writes are recorded.
type MockPort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

func (m *MockPort) Read(p []byte) (int, error) { return m.r.Read(p) }

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errPortClosed
	}
	return m.written.Write(p)
}

// Close ends the device stream.
func (m *MockPort) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.w.Close()
	return m.r.Close()
}

// Written returns everything sent to the device.
func (m *MockPort) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

// NewMockFrameMux creates a FrameMux whose device replays lines, one per
// tick of clock, looping until the mux is closed.
func NewMockFrameMux(lines []string, clock timeutil.Clock, interval time.Duration) (*FrameMux[*MockPort], *MockPort) {
	r, w := io.Pipe()
	port := &MockPort{r: r, w: w}

	ticker := clock.NewTicker(interval)
	go func() {
		defer w.Close()
		defer ticker.Stop()
		if len(lines) == 0 {
			return
		}
		for i := 0; ; i++ {
			<-ticker.C()
			line := lines[i%len(lines)]
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			if _, err := io.WriteString(w, line); err != nil {
				return
			}
		}
	}()

	return NewFrameMux(port), port
}

// TestablePort implements Porter with scripted reads and recorded writes.
type TestablePort struct {
	mu       sync.Mutex
	cond     *sync.Cond
	read     bytes.Buffer
	written  bytes.Buffer
	closed   bool
	eof      bool
	WriteErr error

	// ShortWrite makes Write report one byte fewer than requested.
	ShortWrite bool
}

// NewTestablePort creates an empty TestablePort. Reads block until data is
// added, EOF is signalled or the port is closed.
func NewTestablePort() *TestablePort {
	p := &TestablePort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// AddLines queues lines for reading.
func (p *TestablePort) AddLines(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range lines {
		p.read.WriteString(l)
		p.read.WriteByte('\n')
	}
	p.cond.Broadcast()
}

// EOF makes reads return io.EOF once queued data is consumed.
func (p *TestablePort) EOF() {
	p.mu.Lock()
	p.eof = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *TestablePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.read.Len() == 0 && !p.closed && !p.eof {
		p.cond.Wait()
	}
	if p.closed {
		return 0, errPortClosed
	}
	if p.read.Len() == 0 {
		return 0, io.EOF
	}
	return p.read.Read(b)
}

func (p *TestablePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errPortClosed
	}
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}
	n, _ := p.written.Write(b)
	if p.ShortWrite {
		n--
	}
	return n, nil
}

func (p *TestablePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

// Written returns everything written to the port.
func (p *TestablePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}
