package db

import (
	"log"
	"sync/atomic"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// Recorder persists every analyzer result of one session.
type Recorder struct {
	ppg.NopListener

	db      *DB
	session string

	written atomic.Int64
	failed  atomic.Int64
}

// NewRecorder starts a session for source and returns a listener that
// records into it.
func NewRecorder(db *DB, source string) (*Recorder, error) {
	id, err := db.StartSession(source)
	if err != nil {
		return nil, err
	}
	return &Recorder{db: db, session: id}, nil
}

func (r *Recorder) SessionID() string { return r.session }

// OnResult implements ppg.ResultListener.
func (r *Recorder) OnResult(res ppg.Result) {
	if err := r.db.RecordReading(ReadingFromResult(r.session, res)); err != nil {
		r.failed.Add(1)
		log.Printf("[db] session %s: %v", r.session, err)
		return
	}
	r.written.Add(1)
}

// Counts returns how many results were written and how many failed.
func (r *Recorder) Counts() (written, failed int64) {
	return r.written.Load(), r.failed.Load()
}

// Close ends the recorder's session.
func (r *Recorder) Close() error {
	return r.db.EndSession(r.session)
}
