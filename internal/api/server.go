// Package api serves the run history and generated artifacts over HTTP.
package api

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/banshee-data/collision.report/internal/db"
	"github.com/banshee-data/collision.report/internal/httputil"
	"github.com/banshee-data/collision.report/internal/monitoring"
)

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const defaultRunLimit = 20

type Server struct {
	db        *db.DB
	outputDir string
}

// NewServer returns a server for database. outputDir, when set, is served
// at the root so the HTML report and images can be browsed.
func NewServer(database *db.DB, outputDir string) *Server {
	return &Server{db: database, outputDir: outputDir}
}

// RunAPI is the JSON form of a run.
type RunAPI struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Version    string     `json:"version"`
	OutputDir  string     `json:"output_dir"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	Records    int        `json:"records"`
	Skipped    int        `json:"skipped"`
	Error      string     `json:"error,omitempty"`
}

// RunToAPI converts a stored run.
func RunToAPI(r *db.Run) RunAPI {
	return RunAPI{
		ID:         r.ID,
		Source:     r.Source,
		Version:    r.Version,
		OutputDir:  r.OutputDir,
		Status:     string(r.Status),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
		Records:    r.Records,
		Skipped:    r.Skipped,
		Error:      r.Error,
	}
}

// AggregateAPI is one stored aggregate value.
type AggregateAPI struct {
	View     string  `json:"view"`
	Position int     `json:"position"`
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
}

// SkippedAPI is one skipped source row.
type SkippedAPI struct {
	Line        int    `json:"line"`
	CollisionID int64  `json:"collision_id"`
	CrashDate   string `json:"crash_date"`
	CrashTime   string `json:"crash_time"`
	Error       string `json:"error"`
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
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
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

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.showRun)
	mux.HandleFunc("/api/runs/{id}/aggregates", s.listAggregates)
	mux.HandleFunc("/api/runs/{id}/skipped", s.listSkipped)
	if s.outputDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.outputDir)))
	}
	return mux
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", defaultRunLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	runs, err := s.db.ListRuns(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to list runs")
		monitoring.Logf("api: %v", err)
		return
	}
	out := make([]RunAPI, len(runs))
	for i, run := range runs {
		out[i] = RunToAPI(run)
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		run, ok := s.lookupRun(w, r)
		if !ok {
			return
		}
		httputil.WriteJSONOK(w, RunToAPI(run))
	case http.MethodDelete:
		if err := s.db.DeleteRun(r.Context(), r.PathValue("id")); err != nil {
			s.writeLookupError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listAggregates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	view := r.URL.Query().Get("view")
	if view != "" && !slices.Contains(db.Views, view) {
		httputil.BadRequest(w, "unknown view: "+view)
		return
	}
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	rows, err := s.db.RunAggregates(r.Context(), run.ID, view)
	if err != nil {
		httputil.InternalServerError(w, "failed to load aggregates")
		monitoring.Logf("api: %v", err)
		return
	}
	out := make([]AggregateAPI, len(rows))
	for i, a := range rows {
		out[i] = AggregateAPI{View: a.View, Position: a.Position, Label: a.Label, Value: a.Value}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) listSkipped(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	skipped, err := s.db.SkippedRecords(r.Context(), run.ID)
	if err != nil {
		httputil.InternalServerError(w, "failed to load skipped rows")
		monitoring.Logf("api: %v", err)
		return
	}
	out := make([]SkippedAPI, len(skipped))
	for i, e := range skipped {
		out[i] = SkippedAPI{Line: e.Line, CollisionID: e.RecordID, CrashDate: e.Date, CrashTime: e.Time}
		if e.Err != nil {
			out[i].Error = e.Err.Error()
		}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*db.Run, bool) {
	run, err := s.db.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err)
		return nil, false
	}
	return run, true
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, "failed to load run")
	monitoring.Logf("api: %v", err)
}
