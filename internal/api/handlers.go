package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/capability.report/internal/analysis"
	"github.com/banshee-data/capability.report/internal/db"
	"github.com/banshee-data/capability.report/internal/httputil"
	"github.com/banshee-data/capability.report/internal/monitoring"
	"github.com/banshee-data/capability.report/internal/report"
	"github.com/banshee-data/capability.report/internal/spc"
	"github.com/banshee-data/capability.report/internal/version"
	"github.com/banshee-data/capability.report/internal/visits"
)

// maxListLimit caps ?limit= on the run listing.
const maxListLimit = 500

type indexResponse struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Visits  uint64   `json:"visits"`
	Routes  []string `json:"routes"`
}

func (s *Server) showIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, indexResponse{
		Name:    "capability.report",
		Version: version.Version,
		Visits:  s.visits.Hit("home"),
		Routes: []string{
			"GET /api/config",
			"POST /api/validate",
			"POST /api/analyses",
			"GET /api/analyses",
			"GET /api/analyses/{id}",
			"DELETE /api/analyses/{id}",
			"GET /api/analyses/{id}/charts",
			"GET /api/analyses/{id}/charts/{means|groups|trend}.png",
			"GET /api/d2",
			"GET /api/visits",
			"GET /api/version",
			"GET /metrics",
		},
	})
}

type configResponse struct {
	GroupCountChoices   []int   `json:"group_count_choices"`
	DefaultSubgroupSize int     `json:"default_subgroup_size"`
	CapabilityThreshold float64 `json:"capability_threshold"`
	MinSubgroupSize     int     `json:"min_subgroup_size"`
	MaxSubgroupSize     int     `json:"max_subgroup_size"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, configResponse{
		GroupCountChoices:   s.cfg.GetGroupCountChoices(),
		DefaultSubgroupSize: s.cfg.GetDefaultSubgroupSize(),
		CapabilityThreshold: spc.CapabilityThreshold,
		MinSubgroupSize:     spc.MinSubgroupSize,
		MaxSubgroupSize:     spc.MaxSubgroupSize,
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, version.Current())
}

type visitsResponse struct {
	Total    uint64         `json:"total"`
	Counters []visits.Entry `json:"counters"`
}

func (s *Server) showVisits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, visitsResponse{
		Total:    s.visits.Total(),
		Counters: s.visits.Snapshot(),
	})
}

type d2Entry struct {
	SubgroupSize int     `json:"subgroup_size"`
	D2           float64 `json:"d2"`
}

func (s *Server) showD2Table(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	table := spc.D2Table()
	out := make([]d2Entry, 0, len(table))
	for n, d2 := range table {
		out = append(out, d2Entry{SubgroupSize: n, D2: d2})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubgroupSize < out[j].SubgroupSize })
	httputil.WriteJSON(w, http.StatusOK, out)
}

type validateResponse struct {
	Values  []float64      `json:"values"`
	Stats   spc.GroupStats `json:"stats"`
	Message string         `json:"message"`
}

// validateGroup checks one group's raw input without starting a run.
func (s *Server) validateGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	var in analysis.GroupInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	g := spc.NewGroup(analysis.GroupLabel(0), in.DeclaredCount).Submit(in.Values)
	switch g.State {
	case spc.GroupAccepted:
		httputil.WriteJSON(w, http.StatusOK, validateResponse{
			Values:  g.ValuesCopy(),
			Stats:   g.Stats,
			Message: analysis.GroupMessage(g),
		})
	case spc.GroupEmpty:
		groupRejectionsTotal.WithLabelValues(spc.KindEmptyGroup).Inc()
		httputil.WriteKindError(w, http.StatusUnprocessableEntity, spc.KindEmptyGroup, analysis.GroupMessage(g))
	default:
		kind := spc.ErrorKind(g.Err)
		groupRejectionsTotal.WithLabelValues(kind).Inc()
		httputil.WriteKindError(w, http.StatusUnprocessableEntity, kind, analysis.GroupMessage(g))
	}
}

func (s *Server) analyses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createAnalysis(w, r)
	case http.MethodGet:
		s.listAnalyses(w, r)
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// createAnalysis runs a request through the engine. Runs with a process
// estimate are stored and answered 201; incomplete runs are answered 200
// with their per-group feedback and are not stored.
func (s *Server) createAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		analysesTotal.WithLabelValues("invalid").Inc()
		httputil.BadRequest(w, err.Error())
		return
	}
	if slots := req.Slots(); !s.cfg.AllowsGroupCount(slots) {
		analysesTotal.WithLabelValues("invalid").Inc()
		httputil.BadRequest(w, fmt.Sprintf("group count %d is not one of %v", slots, s.cfg.GetGroupCountChoices()))
		return
	}

	rep, err := analysis.Analyze(r.Context(), &req, s.cfg.GetDefaultSubgroupSize(), analysis.WithClock(s.clock))
	if errors.Is(err, analysis.ErrInvalidRequest) {
		analysesTotal.WithLabelValues("invalid").Inc()
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	recordReportMetrics(rep)

	if rep.Summary == nil {
		httputil.WriteJSON(w, http.StatusOK, rep)
		return
	}
	if err := s.db.SaveReport(r.Context(), rep); err != nil {
		monitoring.Logf("failed to store run %s: %v", rep.RunID, err)
		httputil.InternalServerError(w, "failed to store run")
		return
	}
	w.Header().Set("Location", "/api/analyses/"+rep.RunID)
	httputil.WriteJSON(w, http.StatusCreated, rep)
}

func recordReportMetrics(rep *analysis.Report) {
	for _, g := range rep.Groups {
		if g.ErrorKind != "" {
			groupRejectionsTotal.WithLabelValues(g.ErrorKind).Inc()
		}
	}
	switch {
	case !rep.Complete:
		analysesTotal.WithLabelValues("incomplete").Inc()
	case rep.Summary == nil:
		analysesTotal.WithLabelValues("estimate_error").Inc()
	default:
		analysesTotal.WithLabelValues("complete").Inc()
	}
	for _, res := range rep.EvaluatedResults() {
		verdictsTotal.WithLabelValues(string(res.Verdict)).Inc()
	}
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.GetRecentRunsLimit()
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			httputil.BadRequest(w, fmt.Sprintf("Invalid 'limit' parameter (1-%d)", maxListLimit))
			return
		}
		limit = parsed
	}

	runs, err := s.db.ListRuns(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, runs)
}

// loadReport fetches the run named by the {id} path value, writing the
// error response itself when it cannot.
func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (*analysis.Report, bool) {
	id := r.PathValue("id")
	rep, err := s.db.GetReport(r.Context(), id)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, fmt.Sprintf("run %q not found", id))
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load run: %v", err))
		return nil, false
	}
	return rep, true
}

func (s *Server) analysis(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rep, ok := s.loadReport(w, r)
		if !ok {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rep)
	case http.MethodDelete:
		id := r.PathValue("id")
		err := s.db.DeleteRun(r.Context(), id)
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, fmt.Sprintf("run %q not found", id))
			return
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to delete run: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) chartsPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	s.visits.Hit("charts")

	start := s.clock.Now()
	var buf bytes.Buffer
	if err := report.RenderCharts(&buf, rep, s.cfg.GetChartTheme()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	chartRenderSeconds.WithLabelValues("html").Observe(s.clock.Since(start).Seconds())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) chartImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	file := r.PathValue("file")
	name, isPNG := strings.CutSuffix(file, ".png")
	kind, err := report.ParseChartKind(name)
	if !isPNG || err != nil {
		httputil.NotFound(w, fmt.Sprintf("no chart %q", file))
		return
	}
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	start := s.clock.Now()
	var buf bytes.Buffer
	if err := s.plotter.WritePNG(&buf, rep, kind); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	chartRenderSeconds.WithLabelValues("png").Observe(s.clock.Since(start).Seconds())

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
