package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

// Session is one continuous measurement run from a single frame source.
type Session struct {
	ID        string `json:"session_id"`
	StartedAt int64  `json:"started_at"`
	EndedAt   *int64 `json:"ended_at,omitempty"`
	Source    string `json:"source"`
}

// Summary aggregates the plausible heart-rate readings of one session.
type Summary struct {
	SessionID    string  `json:"session_id"`
	Readings     int     `json:"readings"`
	RateReadings int     `json:"rate_readings"`
	MeanRate     float64 `json:"mean_rate"`
	MinRate      int     `json:"min_rate"`
	MaxRate      int     `json:"max_rate"`
	MeanSDNN     float64 `json:"mean_sdnn"`
	MeanRMSSD    float64 `json:"mean_rmssd"`
}

// StartSession opens a new session for source and returns its id.
func (db *DB) StartSession(source string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, started_at, source) VALUES (?, ?, ?)`,
		id, time.Now().UnixMilli(), source,
	)
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return id, nil
}

// EndSession stamps the end time of an open session. Ending an already
// closed session is a no-op.
func (db *DB) EndSession(id string) error {
	res, err := db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE session_id = ? AND ended_at IS NULL`,
		time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := db.Session(id); err != nil {
			return err
		}
	}
	return nil
}

// Session fetches one session by id.
func (db *DB) Session(id string) (Session, error) {
	var s Session
	var ended sql.NullInt64
	err := db.QueryRow(
		`SELECT session_id, started_at, ended_at, source FROM sessions WHERE session_id = ?`, id,
	).Scan(&s.ID, &s.StartedAt, &ended, &s.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("session %s: %w", id, err)
	}
	if ended.Valid {
		s.EndedAt = &ended.Int64
	}
	return s, nil
}

// Sessions lists the most recent sessions, newest first. A non-positive
// limit returns all of them.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT session_id, started_at, ended_at, source FROM sessions
		 ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		var ended sql.NullInt64
		if err := rows.Scan(&s.ID, &s.StartedAt, &ended, &s.Source); err != nil {
			return nil, err
		}
		if ended.Valid {
			v := ended.Int64
			s.EndedAt = &v
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// SessionSummary aggregates the readings of one session. Only readings
// with a non-zero heart rate count towards the rate statistics, and only
// non-zero SDNN/RMSSD values count towards their means.
func (db *DB) SessionSummary(id string) (Summary, error) {
	if _, err := db.Session(id); err != nil {
		return Summary{}, err
	}

	sum := Summary{SessionID: id}
	var mean, sdnn, rmssd sql.NullFloat64
	var minRate, maxRate sql.NullInt64
	err := db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(NULLIF(heart_rate, 0)),
			AVG(NULLIF(heart_rate, 0)),
			MIN(NULLIF(heart_rate, 0)),
			MAX(NULLIF(heart_rate, 0)),
			AVG(NULLIF(sdnn, 0)),
			AVG(NULLIF(rmssd, 0))
		FROM readings WHERE session_id = ?`, id,
	).Scan(&sum.Readings, &sum.RateReadings, &mean, &minRate, &maxRate, &sdnn, &rmssd)
	if err != nil {
		return Summary{}, fmt.Errorf("summarise session %s: %w", id, err)
	}
	sum.MeanRate = mean.Float64
	sum.MinRate = int(minRate.Int64)
	sum.MaxRate = int(maxRate.Int64)
	sum.MeanSDNN = sdnn.Float64
	sum.MeanRMSSD = rmssd.Float64
	return sum, nil
}
