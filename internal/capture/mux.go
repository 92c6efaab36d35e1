// Package capture delivers camera frames to the analyzer: from a serial
// camera link, image files on disk, a synthetic pulse generator or a
// webcam.
package capture

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// MaxLineBytes bounds a single device line. A 640x480 frame record is
// about 1.8MB of hex.
const MaxLineBytes = 4 << 20

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// Stats are cumulative FrameMux counters.
type Stats struct {
	Lines     uint64 `json:"lines"`
	Frames    uint64 `json:"frames"`
	Malformed uint64 `json:"malformed"`
	Status    uint64 `json:"status"`
	Unknown   uint64 `json:"unknown"`
	Dropped   uint64 `json:"dropped"`
}

// FrameMux reads frame records from a serial camera and fans decoded frames
// out to subscribers. Slow subscribers lose their oldest pending frame.
type FrameMux[T Porter] struct {
	port         T
	subscribers  map[string]chan ppg.Frame
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      atomic.Bool

	statusMu sync.Mutex
	status   map[string]any

	lines, frames, malformed, statusLines, unknown, dropped atomic.Uint64
}

// FrameMuxInterface is implemented by FrameMux and DisabledFrameMux.
type FrameMuxInterface interface {
	Source
	// Subscribe returns a channel of decoded frames and the ID used to
	// unsubscribe.
	Subscribe() (string, <-chan ppg.Frame)
	Unsubscribe(string)
	// SendCommand writes a control command (exposure, LED) to the device.
	SendCommand(string) error
	// Monitor reads device lines until ctx is done or the port fails.
	Monitor(context.Context) error
	Initialize() error
	Close() error
	Stats() Stats
	// AttachAdminRoutes registers debug endpoints under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// NewFrameMux creates a FrameMux reading from port.
func NewFrameMux[T Porter](port T) *FrameMux[T] {
	return &FrameMux[T]{
		port:        port,
		subscribers: make(map[string]chan ppg.Frame),
		status:      make(map[string]any),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *FrameMux[T]) Subscribe() (string, <-chan ppg.Frame) {
	id := randomID()
	ch := make(chan ppg.Frame, 1)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closing.Load() {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *FrameMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Frames subscribes for the lifetime of ctx. Monitor must be running for
// frames to arrive.
func (s *FrameMux[T]) Frames(ctx context.Context) (<-chan ppg.Frame, error) {
	if s.closing.Load() {
		return nil, errors.New("frame mux closed")
	}
	id, ch := s.Subscribe()
	go func() {
		<-ctx.Done()
		s.Unsubscribe(id)
	}()
	return ch, nil
}

// StartCommands configure the camera for fingertip capture.
var StartCommands = []string{
	"LED=1",      // torch on
	"AE=0",       // fixed exposure
	"AWB=0",      // fixed white balance
	"RES=64x48",  // thumbnail size
	"FMT=HEXRGB", // frame records as F,<ts>,<w>,<h>,<hex>
	"STREAM=1",
}

// Initialize syncs the device clock and sends StartCommands.
func (s *FrameMux[T]) Initialize() error {
	if err := s.SendCommand(fmt.Sprintf("T=%d", time.Now().UnixMilli())); err != nil {
		return fmt.Errorf("failed to synchronize clock: %w", err)
	}
	for _, command := range StartCommands {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand sends a newline-terminated command to the device.
func (s *FrameMux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines from the port, decodes frame records and publishes
// them to subscribers. It returns when ctx is done, the port reaches EOF
// or the mux is closed.
func (s *FrameMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)
	scan.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan runs on its own goroutine so cancellation is not
	// held up by a quiet port.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			if s.closing.Load() {
				return nil
			}
			s.handleLine(line)
		}
	}
}

func (s *FrameMux[T]) handleLine(line string) {
	s.lines.Add(1)
	switch ClassifyLine(line) {
	case LineKindFrame:
		f, err := DecodeFrameLine(line)
		if err != nil {
			s.malformed.Add(1)
			log.Printf("[capture] skipping frame line: %v", err)
			return
		}
		s.frames.Add(1)
		s.publish(f)
	case LineKindStatus:
		s.statusLines.Add(1)
		if err := s.updateStatus(line); err != nil {
			log.Printf("[capture] bad status line: %v", err)
		}
	default:
		s.unknown.Add(1)
	}
}

// publish delivers f to every subscriber. A subscriber whose buffer is
// full has its pending frame replaced so it always sees the newest one.
func (s *FrameMux[T]) publish(f ppg.Frame) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- f:
			continue
		default:
		}
		select {
		case <-ch:
			s.dropped.Add(1)
		default:
		}
		select {
		case ch <- f:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *FrameMux[T]) updateStatus(line string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(line), &values); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	for k, v := range values {
		s.status[k] = v
	}
	return nil
}

// DeviceStatus returns a copy of the latest values reported by the device.
func (s *FrameMux[T]) DeviceStatus() map[string]any {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	out := make(map[string]any, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}

// Stats returns a snapshot of the mux counters.
func (s *FrameMux[T]) Stats() Stats {
	return Stats{
		Lines:     s.lines.Load(),
		Frames:    s.frames.Load(),
		Malformed: s.malformed.Load(),
		Status:    s.statusLines.Load(),
		Unknown:   s.unknown.Load(),
		Dropped:   s.dropped.Load(),
	}
}

// Close closes every subscriber channel and the port.
func (s *FrameMux[T]) Close() error {
	if s.closing.Swap(true) {
		return nil
	}
	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.port.Close()
}

// frameSummary is one event on the tail stream.
type frameSummary struct {
	Timestamp      int64   `json:"timestamp_ms"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	RedIntensity   float64 `json:"red_intensity"`
	FingerCoverage float64 `json:"finger_coverage"`
}

func summarize(f ppg.Frame) frameSummary {
	b := f.Image.Bounds()
	return frameSummary{
		Timestamp:      f.Timestamp,
		Width:          b.Dx(),
		Height:         b.Dy(),
		RedIntensity:   ppg.AverageRedIntensity(f.Image),
		FingerCoverage: ppg.FingerCoverage(f.Image),
	}
}

func (s *FrameMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "send a command to the camera", func(w http.ResponseWriter, r *http.Request) {
		if err := sendCommandTemplate.Execute(w, nil); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	})

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "Wrote command %q to serial port", command)
	})

	debug.HandleFunc("capture-stats", "frame capture counters and device status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stats":  s.Stats(),
			"device": s.DeviceStatus(),
		})
	})

	// Server-sent events summarising each decoded frame.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case f, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(summarize(f))
				if err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
}
