package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultReadingsLimit caps /api/readings when no limit is given.
const DefaultReadingsLimit = 600

type Server struct {
	db  *db.DB
	hub *Hub
}

// NewServer serves the reading store and, when hub is non-nil, the live
// websocket feed.
func NewServer(db *db.DB, hub *Hub) *Server {
	return &Server{
		db:  db,
		hub: hub,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets the websocket upgrade take over the connection.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/readings", s.listReadings)
	mux.HandleFunc("/api/latest", s.showLatest)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/charts/heart-rate", s.heartRateChart)
	if s.hub != nil {
		mux.Handle("/ws", s.hub)
	}
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// allowGet rejects every method but GET and HEAD.
func (s *Server) allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

func parseLimit(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	return n, nil
}

// resolveSession returns the session query parameter, falling back to the
// most recently started session.
func (s *Server) resolveSession(r *http.Request) (string, error) {
	if id := r.URL.Query().Get("session"); id != "" {
		return id, nil
	}
	sessions, err := s.db.Sessions(1)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", db.ErrSessionNotFound
	}
	return sessions[0].ID, nil
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	limit, err := parseLimit(r, 0)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessions, err := s.db.Sessions(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	s.writeJSON(w, sessions)
}

func (s *Server) listReadings(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	limit, err := parseLimit(r, DefaultReadingsLimit)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.resolveSession(r)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	readings, err := s.db.Readings(id, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve readings: %v", err))
		return
	}
	s.writeJSON(w, readings)
}

func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	reading, err := s.db.LatestReading()
	if errors.Is(err, db.ErrNoReadings) {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve latest reading: %v", err))
		return
	}
	s.writeJSON(w, reading)
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	id, err := s.resolveSession(r)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	summary, err := s.db.SessionSummary(id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, summary)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	s.writeJSON(w, version.Get())
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrSessionNotFound) {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSONError(w, http.StatusInternalServerError, err.Error())
}
