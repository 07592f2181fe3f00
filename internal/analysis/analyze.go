package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/capability.report/internal/monitoring"
	"github.com/banshee-data/capability.report/internal/spc"
)

// GroupReport is the outcome of one group slot, ready for display.
type GroupReport struct {
	Label         string          `json:"label"`
	DeclaredCount int             `json:"declared_count"`
	State         spc.GroupState  `json:"state"`
	Values        []float64       `json:"values,omitempty"`
	Stats         *spc.GroupStats `json:"stats,omitempty"`
	Message       string          `json:"message,omitempty"`
	Error         string          `json:"error,omitempty"`
	ErrorKind     string          `json:"error_kind,omitempty"`
}

// LimitReport is the outcome of one control-limit pair.
type LimitReport struct {
	Limits    spc.Limits  `json:"limits"`
	Result    *spc.Result `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
}

// Report is everything an analysis run produced. Problems with individual
// groups or limits are recorded inside the report so a caller can show
// per-field feedback without discarding the rest of the run.
type Report struct {
	RunID        string        `json:"run_id"`
	Analyst      string        `json:"analyst,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	GroupCount   int           `json:"group_count"`
	Accepted     int           `json:"accepted"`
	Complete     bool          `json:"complete"`
	SubgroupSize int           `json:"subgroup_size"`
	Groups       []GroupReport `json:"groups"`

	Summary          *spc.Summary  `json:"summary,omitempty"`
	SummaryError     string        `json:"summary_error,omitempty"`
	SummaryErrorKind string        `json:"summary_error_kind,omitempty"`
	Results          []LimitReport `json:"results,omitempty"`
}

// AcceptedValues returns the values of every accepted group in slot order.
func (r *Report) AcceptedValues() [][]float64 {
	var out [][]float64
	for _, g := range r.Groups {
		if g.State == spc.GroupAccepted {
			out = append(out, g.Values)
		}
	}
	return out
}

// EvaluatedResults returns the results of limit pairs that evaluated.
func (r *Report) EvaluatedResults() []spc.Result {
	var out []spc.Result
	for _, l := range r.Results {
		if l.Result != nil {
			out = append(out, *l.Result)
		}
	}
	return out
}

// GroupMessage is the feedback line shown next to a group's input.
func GroupMessage(g spc.Group) string {
	switch g.State {
	case spc.GroupAccepted:
		return fmt.Sprintf("%s accepted.", g.Label)
	case spc.GroupRejected:
		switch spc.ErrorKind(g.Err) {
		case spc.KindCountMismatch:
			return fmt.Sprintf("Please enter exactly %d values.", g.DeclaredCount)
		case spc.KindParse:
			return "Please enter valid numbers separated by commas."
		case spc.KindOverflow:
			return "These values are too large to total; please enter them in a smaller unit."
		}
		return g.Err.Error()
	case spc.GroupEmpty:
		if g.DeclaredCount < 1 {
			return "Enter values separated by commas."
		}
		return fmt.Sprintf("Enter %d values separated by commas.", g.DeclaredCount)
	default:
		return ""
	}
}

// Analyze runs a request through the full pipeline: every group is
// validated and summarised, the process is estimated once all groups are
// accepted, and each limit pair is evaluated against that estimate.
//
// The returned error is non-nil only when the request itself is malformed
// (ErrInvalidRequest) or ctx is cancelled.
func Analyze(ctx context.Context, req *Request, fallbackSubgroupSize int, opts ...Option) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	run, err := NewRun(req.Slots(), append([]Option{WithAnalyst(req.Analyst)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for i, in := range req.Groups {
		if _, err := run.SetInput(i, in.DeclaredCount, in.Values); err != nil {
			return nil, err
		}
	}

	subgroupSize := req.SubgroupSize
	if subgroupSize == 0 {
		subgroupSize = run.SubgroupSize(fallbackSubgroupSize)
	}

	groups := run.Groups()
	rep := &Report{
		RunID:        run.ID(),
		Analyst:      run.Analyst(),
		CreatedAt:    run.CreatedAt(),
		GroupCount:   run.GroupCount(),
		Accepted:     run.Accepted(),
		Complete:     run.Complete(),
		SubgroupSize: subgroupSize,
		Groups:       make([]GroupReport, len(groups)),
	}
	for i, g := range groups {
		rep.Groups[i] = groupReport(g)
	}

	// Estimation waits for every group; a partial run is not an error.
	if !rep.Complete {
		return rep, nil
	}

	summary, err := run.Summary(subgroupSize)
	if err != nil {
		rep.SummaryError = err.Error()
		rep.SummaryErrorKind = spc.ErrorKind(err)
		return rep, nil
	}
	rep.Summary = &summary

	results, err := run.EvaluateAll(ctx, summary, req.Limits)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// At least one pair failed; report every pair on its own.
		rep.Results = make([]LimitReport, len(req.Limits))
		for i, l := range req.Limits {
			rep.Results[i] = limitReport(summary, l)
		}
		return rep, nil
	}

	rep.Results = make([]LimitReport, len(results))
	for i, res := range results {
		rep.Results[i] = LimitReport{Limits: req.Limits[i], Result: &res}
	}

	monitoring.Logf("analysis %s: %d groups, m̄=%.4f σ=%.4f, %d limit pairs",
		rep.RunID, rep.GroupCount, summary.MeanOfMeans, summary.EstimatedSD, len(results))
	return rep, nil
}

func limitReport(s spc.Summary, l spc.Limits) LimitReport {
	res, err := spc.EvaluateLimits(s, l)
	if err != nil {
		return LimitReport{Limits: l, Error: err.Error(), ErrorKind: spc.ErrorKind(err)}
	}
	return LimitReport{Limits: l, Result: &res}
}

func groupReport(g spc.Group) GroupReport {
	gr := GroupReport{
		Label:         g.Label,
		DeclaredCount: g.DeclaredCount,
		State:         g.State,
		Message:       GroupMessage(g),
	}
	if g.Accepted() {
		stats := g.Stats
		gr.Values = g.ValuesCopy()
		gr.Stats = &stats
	}
	if g.Err != nil {
		gr.Error = g.Err.Error()
		gr.ErrorKind = spc.ErrorKind(g.Err)
	}
	return gr
}
