package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// analysesTotal counts analysis requests by outcome: complete,
	// incomplete, estimate_error or invalid.
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capability",
		Subsystem: "api",
		Name:      "analyses_total",
		Help:      "Analysis requests by outcome",
	}, []string{"outcome"})

	// verdictsTotal counts evaluated limit pairs by verdict.
	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capability",
		Subsystem: "api",
		Name:      "verdicts_total",
		Help:      "Evaluated limit pairs by verdict",
	}, []string{"verdict"})

	// groupRejectionsTotal counts rejected group input by error kind.
	groupRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capability",
		Subsystem: "api",
		Name:      "group_rejections_total",
		Help:      "Rejected group input by error kind",
	}, []string{"kind"})

	chartRenderSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "capability",
		Subsystem: "api",
		Name:      "chart_render_seconds",
		Help:      "Time to render a chart",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"format"})
)
