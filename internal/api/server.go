// Package api exposes the experiment monitor over HTTP: progress,
// the current frame's visual state, collected records, and the
// session summary report.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/percept-data/pursuit/internal/collector"
	"github.com/percept-data/pursuit/internal/db"
	"github.com/percept-data/pursuit/internal/httputil"
	"github.com/percept-data/pursuit/internal/monitoring"
	"github.com/percept-data/pursuit/internal/schedule"
	"github.com/percept-data/pursuit/internal/session"
	"github.com/percept-data/pursuit/internal/summary"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// EngineState is the read-only view of the running engine the monitor
// serves. The engine satisfies it.
type EngineState interface {
	Visual() session.VisualState
	Progress() schedule.Progress
	History() []collector.TrialRecord
	Done() bool
}

// Server serves the monitor endpoints. The store is optional; the
// persistence endpoints report unavailable without one.
type Server struct {
	engine      EngineState
	store       *db.Store
	sessionID   string
	participant string
}

// NewServer wires the monitor. engine may not be nil; store may be.
func NewServer(engine EngineState, store *db.Store, sessionID, participant string) *Server {
	return &Server{
		engine:      engine,
		store:       store,
		sessionID:   sessionID,
		participant: participant,
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

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the monitor's route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/progress", s.showProgress)
	mux.HandleFunc("/api/state", s.showState)
	mux.HandleFunc("/api/records", s.listRecords)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/charts/summary", s.summaryChart)
	return mux
}

func (s *Server) showProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]any{
		"participant_id": s.participant,
		"session_id":     s.sessionID,
		"progress":       s.engine.Progress(),
		"done":           s.engine.Done(),
	})
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.engine.Visual())
}

// listRecords serves the current block's completed records, or a
// stored session's records when session_id is given.
func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		if s.store == nil {
			httputil.WriteJSONError(w, http.StatusServiceUnavailable, "record store not configured")
			return
		}
		records, err := s.store.Records(sessionID)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, records)
		return
	}

	httputil.WriteJSONOK(w, s.engine.History())
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "record store not configured")
		return
	}
	sessions, err := s.store.Sessions()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) buildSummary(r *http.Request) (summary.Report, error) {
	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" && s.store != nil {
		records, err := s.store.Records(sessionID)
		if err != nil {
			return summary.Report{}, err
		}
		return summary.Build(s.participant, records), nil
	}
	return summary.Build(s.participant, s.engine.History()), nil
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	rep, err := s.buildSummary(r)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, rep)
}

func (s *Server) summaryChart(w http.ResponseWriter, r *http.Request) {
	rep, err := s.buildSummary(r)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := summary.RenderHTML(w, rep); err != nil {
		monitoring.Logf("api: rendering summary chart: %v", err)
	}
}
