// Package api serves the JSON control surface of the timer: run commands,
// live telemetry (snapshot and SSE stream), and the stored run history.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gpsbench/dragtimer/internal/analysis"
	"github.com/gpsbench/dragtimer/internal/history"
	"github.com/gpsbench/dragtimer/internal/httputil"
	"github.com/gpsbench/dragtimer/internal/monitoring"
	"github.com/gpsbench/dragtimer/internal/run"
	"github.com/gpsbench/dragtimer/internal/units"
	"github.com/gpsbench/dragtimer/internal/version"
)

// ANSI escape codes for request log colouring
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	machine *run.Machine
	db      *history.DB
	units   string
	hub     *TelemetryHub
}

// NewServer wires the control surface to the state machine and history
// database. units selects the display unit for speed fields ("kmph", "mph"
// or "mps"); storage stays in km/h regardless.
func NewServer(machine *run.Machine, db *history.DB, hub *TelemetryHub, displayUnits string) *Server {
	if !units.IsValid(displayUnits) {
		displayUnits = units.KMPH
	}
	return &Server{
		machine: machine,
		db:      db,
		units:   displayUnits,
		hub:     hub,
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

// LoggingMiddleware logs method, path, query, status, and duration
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
	mux.HandleFunc("/api/arm", s.armHandler)
	mux.HandleFunc("/api/stop", s.stopHandler)
	mux.HandleFunc("/api/reset", s.resetHandler)
	mux.HandleFunc("/api/telemetry", s.telemetryHandler)
	mux.HandleFunc("/api/version", s.versionHandler)
	mux.HandleFunc("/api/telemetry/stream", s.telemetryStreamHandler)
	mux.HandleFunc("/api/runs", s.listRunsHandler)
	mux.HandleFunc("/api/runs/", s.runHandler)
	return mux
}

func (s *Server) armHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.machine.Arm()
	httputil.WriteJSONOK(w, s.convertTelemetry(s.machine.Telemetry()))
}

func (s *Server) stopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.machine.Stop()
	httputil.WriteJSONOK(w, s.convertTelemetry(s.machine.Telemetry()))
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.machine.Reset()
	httputil.WriteJSONOK(w, s.convertTelemetry(s.machine.Telemetry()))
}

func (s *Server) telemetryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.convertTelemetry(s.machine.Telemetry()))
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

// telemetryResponse is the wire form of a telemetry snapshot. Units names
// the display unit the speed fields were converted to, since the embedded
// field names always say km/h.
type telemetryResponse struct {
	run.Telemetry
	Units string `json:"units"`
}

// convertTelemetry applies display unit conversion to the speed fields.
// Telemetry carries km/h internally.
func (s *Server) convertTelemetry(tel run.Telemetry) telemetryResponse {
	out := telemetryResponse{Telemetry: tel, Units: s.units}
	if s.units == units.KMPH || s.units == units.KPH {
		return out
	}
	convert := func(kmh float64) float64 {
		return units.ConvertSpeed(units.KmhToMps(kmh), s.units)
	}
	out.SpeedKmh = convert(out.SpeedKmh)
	out.PeakSpeedKmh = convert(out.PeakSpeedKmh)
	out.AvgSpeedKmh = convert(out.AvgSpeedKmh)
	return out
}

// runHandler dispatches the /api/runs/{id} family of routes:
//
//	GET    /api/runs/{id}             stored record
//	DELETE /api/runs/{id}             remove record
//	GET    /api/runs/{id}/trace       speed/distance curve
//	GET    /api/runs/{id}/summary     trace statistics
//	GET    /api/runs/{id}/export.csv  CSV download
func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		httputil.NotFound(w, "missing run id")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.showRun(w, id)
		case http.MethodDelete:
			s.deleteRun(w, id)
		default:
			httputil.MethodNotAllowed(w)
		}
	case "trace":
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		s.showTrace(w, id)
	case "summary":
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		s.showSummary(w, id)
	case "export.csv":
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		s.exportCSV(w, id)
	default:
		httputil.NotFound(w, "unknown run resource")
	}
}

func (s *Server) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	records, err := s.db.Runs(limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to list runs")
		return
	}
	if records == nil {
		records = []run.Record{}
	}
	httputil.WriteJSONOK(w, records)
}

func (s *Server) showRun(w http.ResponseWriter, id string) {
	rec, err := s.db.Run(id)
	if err == history.ErrNotFound {
		httputil.NotFound(w, "run not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to load run")
		return
	}
	httputil.WriteJSONOK(w, rec)
}

func (s *Server) deleteRun(w http.ResponseWriter, id string) {
	err := s.db.DeleteRun(id)
	if err == history.ErrNotFound {
		httputil.NotFound(w, "run not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to delete run")
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"deleted": id})
}

func (s *Server) showTrace(w http.ResponseWriter, id string) {
	if _, err := s.db.Run(id); err != nil {
		if err == history.ErrNotFound {
			httputil.NotFound(w, "run not found")
			return
		}
		httputil.InternalServerError(w, "failed to load run")
		return
	}
	trace, err := s.db.Trace(id)
	if err != nil {
		httputil.InternalServerError(w, "failed to load trace")
		return
	}
	if trace == nil {
		trace = []history.TracePoint{}
	}
	httputil.WriteJSONOK(w, trace)
}

func (s *Server) showSummary(w http.ResponseWriter, id string) {
	rec, err := s.db.Run(id)
	if err == history.ErrNotFound {
		httputil.NotFound(w, "run not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to load run")
		return
	}
	trace, err := s.db.Trace(id)
	if err != nil {
		httputil.InternalServerError(w, "failed to load trace")
		return
	}
	httputil.WriteJSONOK(w, analysis.Summarize(rec, trace))
}

func (s *Server) exportCSV(w http.ResponseWriter, id string) {
	rec, err := s.db.Run(id)
	if err == history.ErrNotFound {
		httputil.NotFound(w, "run not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to load run")
		return
	}
	trace, err := s.db.Trace(id)
	if err != nil {
		httputil.InternalServerError(w, "failed to load trace")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=run-"+id+".csv")
	if err := history.WriteRunCSV(w, rec, trace); err != nil {
		monitoring.Logf("api: failed to write CSV for run %s: %v", id, err)
	}
}
