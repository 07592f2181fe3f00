// Package api serves the capability calculator over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/capability.report/internal/config"
	"github.com/banshee-data/capability.report/internal/db"
	"github.com/banshee-data/capability.report/internal/monitoring"
	"github.com/banshee-data/capability.report/internal/report"
	"github.com/banshee-data/capability.report/internal/timeutil"
	"github.com/banshee-data/capability.report/internal/visits"
)

// ANSI escape codes for request log lines
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	cfg     *config.Config
	db      *db.DB
	visits  *visits.Counter
	plotter *report.Plotter
	clock   timeutil.Clock
}

// NewServer wires a Server. A nil cfg uses the built-in defaults and a nil
// counter starts a fresh one.
func NewServer(cfg *config.Config, store *db.DB, counter *visits.Counter) *Server {
	if cfg == nil {
		cfg = config.EmptyConfig()
	}
	if counter == nil {
		counter = visits.NewCounter()
	}
	return &Server{
		cfg:     cfg,
		db:      store,
		visits:  counter,
		plotter: report.NewPlotter(cfg.GetPlotWidthInches(), cfg.GetPlotHeightInches()),
		clock:   timeutil.RealClock{},
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
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration of each request.
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

// ServeMux registers every API route. Admin routes are attached separately
// by the caller via db.AttachAdminRoutes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", s.showIndex)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/visits", s.showVisits)
	mux.HandleFunc("/api/d2", s.showD2Table)
	mux.HandleFunc("/api/validate", s.validateGroup)
	mux.HandleFunc("/api/analyses", s.analyses)
	mux.HandleFunc("/api/analyses/{id}", s.analysis)
	mux.HandleFunc("/api/analyses/{id}/charts", s.chartsPage)
	mux.HandleFunc("/api/analyses/{id}/charts/{file}", s.chartImage)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
