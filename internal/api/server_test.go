package api

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/capability.report/internal/analysis"
	"github.com/banshee-data/capability.report/internal/config"
	"github.com/banshee-data/capability.report/internal/db"
	"github.com/banshee-data/capability.report/internal/httputil"
	"github.com/banshee-data/capability.report/internal/monitoring"
	"github.com/banshee-data/capability.report/internal/spc"
	"github.com/banshee-data/capability.report/internal/testutil"
	"github.com/banshee-data/capability.report/internal/timeutil"
	"github.com/banshee-data/capability.report/internal/version"
	"github.com/banshee-data/capability.report/internal/visits"
)

var testNow = time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	s := NewServer(config.EmptyConfig(), openAPITestDB(t), visits.NewCounter())
	s.clock = timeutil.NewMockClock(testNow)
	return s, s.ServeMux()
}

func createRun(t *testing.T, h http.Handler) *analysis.Report {
	t.Helper()
	rec := testutil.Do(t, h, http.MethodPost, "/api/analyses", testutil.FiveGroupRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rep := testutil.DecodeBody[analysis.Report](t, rec)
	return &rep
}

func TestCreateAnalysis(t *testing.T) {
	_, h := newTestServer(t)
	before := promtest.ToFloat64(analysesTotal.WithLabelValues("complete"))
	goodBefore := promtest.ToFloat64(verdictsTotal.WithLabelValues(string(spc.VerdictGood)))

	rec := testutil.Do(t, h, http.MethodPost, "/api/analyses", testutil.FiveGroupRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rep := testutil.DecodeBody[analysis.Report](t, rec)
	assert.Equal(t, "/api/analyses/"+rep.RunID, rec.Header().Get("Location"))
	assert.True(t, rep.CreatedAt.Equal(testNow))
	require.NotNil(t, rep.Summary)
	assert.InDelta(t, 10.08, rep.Summary.MeanOfMeans, 1e-9)
	require.Len(t, rep.Results, 2)
	assert.Equal(t, spc.VerdictGood, rep.Results[0].Result.Verdict)
	assert.Equal(t, spc.VerdictNeedsImprovement, rep.Results[1].Result.Verdict)

	assert.Equal(t, before+1, promtest.ToFloat64(analysesTotal.WithLabelValues("complete")))
	assert.Equal(t, goodBefore+1, promtest.ToFloat64(verdictsTotal.WithLabelValues(string(spc.VerdictGood))))
}

func TestCreateAnalysis_IncompleteNotStored(t *testing.T) {
	_, h := newTestServer(t)
	req := testutil.FiveGroupRequest()
	req.Groups[4].Values = "10, 10"

	rec := testutil.Do(t, h, http.MethodPost, "/api/analyses", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := testutil.DecodeBody[analysis.Report](t, rec)
	assert.False(t, rep.Complete)
	assert.Equal(t, "Please enter exactly 5 values.", rep.Groups[4].Message)

	rec = testutil.Do(t, h, http.MethodGet, "/api/analyses/"+rep.RunID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAnalysis_ValuesNearFloatLimits(t *testing.T) {
	_, h := newTestServer(t)

	req := testutil.FiveGroupRequest()
	for i := range req.Groups {
		req.Groups[i] = analysis.GroupInput{DeclaredCount: 2, Values: "8e307, 8.5e307"}
	}
	req.Limits = []spc.Limits{{LCL: 0, UCL: 1.7e308}, {LCL: -1.7e308, UCL: 1.7e308}}

	rec := testutil.Do(t, h, http.MethodPost, "/api/analyses", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rep := testutil.DecodeBody[analysis.Report](t, rec)
	require.NotNil(t, rep.Summary)
	for _, g := range rep.Groups {
		require.NotNil(t, g.Stats)
		assert.GreaterOrEqual(t, g.Stats.Average, g.Stats.Min)
		assert.LessOrEqual(t, g.Stats.Average, g.Stats.Max)
	}
	require.Len(t, rep.Results, 2)
	require.NotNil(t, rep.Results[0].Result)
	assert.Nil(t, rep.Results[1].Result)
	assert.Equal(t, spc.KindOverflow, rep.Results[1].ErrorKind)

	rec = testutil.Do(t, h, http.MethodGet, "/api/analyses/"+rep.RunID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.Groups[2].Values = "1.7e308, 1.7e308"
	rec = testutil.Do(t, h, http.MethodPost, "/api/analyses", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep = testutil.DecodeBody[analysis.Report](t, rec)
	assert.False(t, rep.Complete)
	assert.Equal(t, spc.KindOverflow, rep.Groups[2].ErrorKind)
}

func TestCreateAnalysis_BadRequests(t *testing.T) {
	_, h := newTestServer(t)

	fourGroups := testutil.FiveGroupRequest()
	fourGroups.Groups = fourGroups.Groups[:4]

	zeroDeclared := testutil.FiveGroupRequest()
	zeroDeclared.Groups[0].DeclaredCount = 0

	tests := []struct {
		name string
		body any
		want string
	}{
		{"not json", "{", "invalid JSON"},
		{"unknown field", `{"groups":[],"colour":"red"}`, "invalid JSON"},
		{"group count not offered", fourGroups, "group count 4"},
		{"invalid shape", zeroDeclared, analysis.ErrInvalidRequest.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.Do(t, h, http.MethodPost, "/api/analyses", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := testutil.DecodeBody[httputil.ErrorResponse](t, rec)
			assert.Contains(t, resp.Error, tt.want)
		})
	}
}

func TestGetAndListAnalyses(t *testing.T) {
	_, h := newTestServer(t)
	created := createRun(t, h)
	createRun(t, h)

	rec := testutil.Do(t, h, http.MethodGet, "/api/analyses/"+created.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := testutil.DecodeBody[analysis.Report](t, rec)
	assert.Equal(t, created.RunID, got.RunID)
	assert.Equal(t, created.Results, got.Results)

	rec = testutil.Do(t, h, http.MethodGet, "/api/analyses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := testutil.DecodeBody[[]db.RunSummary](t, rec)
	assert.Len(t, runs, 2)

	rec = testutil.Do(t, h, http.MethodGet, "/api/analyses?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, testutil.DecodeBody[[]db.RunSummary](t, rec), 1)

	for _, bad := range []string{"0", "x", "501"} {
		rec = testutil.Do(t, h, http.MethodGet, "/api/analyses?limit="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", bad)
	}

	rec = testutil.Do(t, h, http.MethodGet, "/api/analyses/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAnalysis(t *testing.T) {
	_, h := newTestServer(t)
	created := createRun(t, h)

	rec := testutil.Do(t, h, http.MethodDelete, "/api/analyses/"+created.RunID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = testutil.Do(t, h, http.MethodDelete, "/api/analyses/"+created.RunID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateGroup(t *testing.T) {
	_, h := newTestServer(t)

	rec := testutil.Do(t, h, http.MethodPost, "/api/validate", analysis.GroupInput{DeclaredCount: 3, Values: "1, 2, 3"})
	require.Equal(t, http.StatusOK, rec.Code)
	ok := testutil.DecodeBody[validateResponse](t, rec)
	assert.Equal(t, []float64{1, 2, 3}, ok.Values)
	assert.Equal(t, 2.0, ok.Stats.Average)
	assert.Equal(t, "Group 1 accepted.", ok.Message)

	before := promtest.ToFloat64(groupRejectionsTotal.WithLabelValues(spc.KindParse))
	tests := []struct {
		in      analysis.GroupInput
		kind    string
		message string
	}{
		{analysis.GroupInput{DeclaredCount: 3, Values: "1, x, 3"}, spc.KindParse, "Please enter valid numbers separated by commas."},
		{analysis.GroupInput{DeclaredCount: 3, Values: "1, 2"}, spc.KindCountMismatch, "Please enter exactly 3 values."},
		{analysis.GroupInput{DeclaredCount: 3, Values: "  "}, spc.KindEmptyGroup, "Enter 3 values separated by commas."},
		{analysis.GroupInput{DeclaredCount: 2, Values: "1.7e308, 1.7e308"}, spc.KindOverflow, "These values are too large to total; please enter them in a smaller unit."},
		{analysis.GroupInput{DeclaredCount: 2, Values: "1.7e308, -1.7e308"}, spc.KindOverflow, "These values are too large to total; please enter them in a smaller unit."},
	}
	for _, tt := range tests {
		rec := testutil.Do(t, h, http.MethodPost, "/api/validate", tt.in)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := testutil.DecodeBody[httputil.ErrorResponse](t, rec)
		assert.Equal(t, tt.kind, resp.Kind)
		assert.Equal(t, tt.message, resp.Error)
	}
	assert.Equal(t, before+1, promtest.ToFloat64(groupRejectionsTotal.WithLabelValues(spc.KindParse)))
}

func TestCharts(t *testing.T) {
	s, h := newTestServer(t)
	created := createRun(t, h)
	base := "/api/analyses/" + created.RunID + "/charts"

	rec := testutil.Do(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Process Trend")
	assert.Equal(t, uint64(1), s.visits.Get("charts"))

	for _, name := range []string{"means", "groups", "trend"} {
		rec := testutil.Do(t, h, http.MethodGet, base+"/"+name+".png", nil)
		require.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")), name)
	}

	for _, bad := range []string{"pie.png", "means.svg", "means"} {
		rec := testutil.Do(t, h, http.MethodGet, base+"/"+bad, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, bad)
	}

	rec = testutil.Do(t, h, http.MethodGet, "/api/analyses/missing/charts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInfoEndpoints(t *testing.T) {
	_, h := newTestServer(t)

	rec := testutil.Do(t, h, http.MethodGet, "/api/d2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	table := testutil.DecodeBody[[]d2Entry](t, rec)
	require.Len(t, table, spc.MaxSubgroupSize-spc.MinSubgroupSize+1)
	assert.Equal(t, d2Entry{SubgroupSize: 2, D2: 1.128}, table[0])
	assert.Equal(t, 10, table[len(table)-1].SubgroupSize)

	rec = testutil.Do(t, h, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := testutil.DecodeBody[configResponse](t, rec)
	assert.Equal(t, []int{5, 6}, cfg.GroupCountChoices)
	assert.Equal(t, spc.CapabilityThreshold, cfg.CapabilityThreshold)

	rec = testutil.Do(t, h, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, version.Current(), testutil.DecodeBody[version.Info](t, rec))

	rec = testutil.Do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestIndexAndVisits(t *testing.T) {
	_, h := newTestServer(t)

	for i := 1; i <= 2; i++ {
		rec := testutil.Do(t, h, http.MethodGet, "/", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		idx := testutil.DecodeBody[indexResponse](t, rec)
		assert.Equal(t, uint64(i), idx.Visits)
	}

	rec := testutil.Do(t, h, http.MethodGet, "/api/visits", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := testutil.DecodeBody[visitsResponse](t, rec)
	assert.Equal(t, uint64(2), v.Total)
	assert.Equal(t, []visits.Entry{{Key: "home", Count: 2}}, v.Counters)

	rec = testutil.Do(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := newTestServer(t)
	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/validate"},
		{http.MethodPut, "/api/analyses"},
		{http.MethodPost, "/api/analyses/x"},
		{http.MethodPost, "/api/d2"},
		{http.MethodPost, "/api/visits"},
		{http.MethodPost, "/api/version"},
		{http.MethodPost, "/api/config"},
		{http.MethodPost, "/api/analyses/x/charts"},
		{http.MethodPost, "/api/analyses/x/charts/means.png"},
		{http.MethodPost, "/"},
	}
	for _, tt := range tests {
		rec := testutil.Do(t, h, tt.method, tt.path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tt.method, tt.path)
		assert.NotEmpty(t, rec.Header().Get("Allow"))
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})
	defer monitoring.SetLogger(nil)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := testutil.Do(t, h, http.MethodGet, "/api/d2", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "[%s] %s"))
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "100", statusCodeColor(100))
}
