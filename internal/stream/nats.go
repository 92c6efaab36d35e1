// Package stream publishes analyzer results onto a NATS subject.
package stream

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// DefaultSubject is the subject results are published on.
const DefaultSubject = "pulse.results"

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Connect dials a NATS server with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("pulse.report"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// NATSSink is a ppg.ResultListener that publishes every result as JSON.
type NATSSink struct {
	ppg.NopListener

	pub     Publisher
	subject string

	sent   atomic.Uint64
	failed atomic.Uint64
}

func NewNATSSink(pub Publisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{pub: pub, subject: subject}
}

func (s *NATSSink) Subject() string { return s.subject }

// OnResult implements ppg.ResultListener.
func (s *NATSSink) OnResult(r ppg.Result) {
	b, err := json.Marshal(r)
	if err != nil {
		s.failed.Add(1)
		log.Printf("[nats] marshal result: %v", err)
		return
	}
	if err := s.pub.Publish(s.subject, b); err != nil {
		// Only the first failure is logged.
		if s.failed.Add(1) == 1 {
			log.Printf("[nats] publish to %s: %v", s.subject, err)
		}
		return
	}
	s.sent.Add(1)
}

// Counts returns how many results were published and how many failed.
func (s *NATSSink) Counts() (sent, failed uint64) {
	return s.sent.Load(), s.failed.Load()
}
