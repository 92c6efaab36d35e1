package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// ErrNoReadings is returned by LatestReading on an empty store.
var ErrNoReadings = errors.New("no readings recorded")

// Reading is one persisted analyzer result.
type Reading struct {
	SessionID    string  `json:"session_id"`
	Timestamp    int64   `json:"timestamp_ms"`
	Finger       bool    `json:"finger_detected"`
	HeartRate    int     `json:"heart_rate"`
	RawRate      int     `json:"raw_rate"`
	SDNN         int     `json:"sdnn"`
	RMSSD        int     `json:"rmssd"`
	HREffective  float64 `json:"hr_effective"`
	HRVEffective float64 `json:"hrv_effective"`
}

// ReadingFromResult maps an analyzer result onto a row for session.
func ReadingFromResult(session string, r ppg.Result) Reading {
	return Reading{
		SessionID:    session,
		Timestamp:    r.Timestamp,
		Finger:       r.FingerDetected,
		HeartRate:    r.HeartRate,
		RawRate:      r.RawRate,
		SDNN:         r.SDNN,
		RMSSD:        r.RMSSD,
		HREffective:  r.HREffective,
		HRVEffective: r.HRVEffective,
	}
}

const readingColumns = `session_id, ts_ms, finger, heart_rate, raw_rate, sdnn, rmssd, hr_effective, hrv_effective`

func (db *DB) RecordReading(r Reading) error {
	_, err := db.Exec(
		`INSERT INTO readings (`+readingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Timestamp, r.Finger, r.HeartRate, r.RawRate,
		r.SDNN, r.RMSSD, r.HREffective, r.HRVEffective,
	)
	if err != nil {
		return fmt.Errorf("record reading: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(s rowScanner) (Reading, error) {
	var r Reading
	err := s.Scan(&r.SessionID, &r.Timestamp, &r.Finger, &r.HeartRate, &r.RawRate,
		&r.SDNN, &r.RMSSD, &r.HREffective, &r.HRVEffective)
	return r, err
}

// Readings returns the latest readings of a session in ascending time
// order. A non-positive limit returns every reading.
func (db *DB) Readings(sessionID string, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT `+readingColumns+` FROM (
			SELECT reading_id, `+readingColumns+` FROM readings
			WHERE session_id = ?
			ORDER BY ts_ms DESC, reading_id DESC
			LIMIT ?
		) ORDER BY ts_ms ASC, reading_id ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	readings := []Reading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// LatestReading returns the most recently inserted reading across all
// sessions.
func (db *DB) LatestReading() (Reading, error) {
	r, err := scanReading(db.QueryRow(
		`SELECT ` + readingColumns + ` FROM readings ORDER BY reading_id DESC LIMIT 1`,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Reading{}, ErrNoReadings
	}
	if err != nil {
		return Reading{}, fmt.Errorf("latest reading: %w", err)
	}
	return r, nil
}
