// Package report renders analysis reports as text tables, PNG plots and
// HTML charts.
package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/banshee-data/capability.report/internal/analysis"
	"github.com/banshee-data/capability.report/internal/spc"
)

// ErrNoData is returned when a report has no accepted groups to show.
var ErrNoData = errors.New("report has no accepted groups")

// Row is one line of the per-group summary table. Numbers are already
// formatted to two decimal places.
type Row struct {
	Group   string `json:"group"`
	Values  string `json:"values"`
	Total   string `json:"total"`
	Average string `json:"average"`
	Range   string `json:"range"`
}

func fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// SummaryTable returns one row per accepted group in slot order.
func SummaryTable(rep *analysis.Report) []Row {
	var rows []Row
	for _, g := range rep.Groups {
		if g.State != spc.GroupAccepted || g.Stats == nil {
			continue
		}
		vals := make([]string, len(g.Values))
		for i, v := range g.Values {
			vals[i] = fixed2(v)
		}
		rows = append(rows, Row{
			Group:   g.Label,
			Values:  strings.Join(vals, ", "),
			Total:   fixed2(g.Stats.Total),
			Average: fixed2(g.Stats.Average),
			Range:   fixed2(g.Stats.Range),
		})
	}
	return rows
}

// WriteTable writes rows as aligned columns with a header line.
func WriteTable(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tVALUES\tTOTAL\tAVERAGE\tRANGE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Group, r.Values, r.Total, r.Average, r.Range)
	}
	return tw.Flush()
}

// WriteGroups writes the feedback line of every group slot.
func WriteGroups(w io.Writer, rep *analysis.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, g := range rep.Groups {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", g.Label, g.State, g.Message)
	}
	return tw.Flush()
}

// WriteCapability writes the process estimate and one line per limit pair.
// Incomplete runs and failed estimates are reported in place of numbers.
func WriteCapability(w io.Writer, rep *analysis.Report) error {
	if rep.Analyst != "" {
		if _, err := fmt.Fprintf(w, "Analyst: %s\n", rep.Analyst); err != nil {
			return err
		}
	}
	if !rep.Complete {
		_, err := fmt.Fprintf(w, "%d of %d groups accepted; capability needs every group.\n", rep.Accepted, rep.GroupCount)
		return err
	}
	if rep.Summary == nil {
		_, err := fmt.Fprintf(w, "Cannot estimate process: %s\n", rep.SummaryError)
		return err
	}

	s := rep.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Mean of means (m̄)\t%.4f\n", s.MeanOfMeans)
	fmt.Fprintf(tw, "Average range (R̄)\t%.4f\n", s.AverageRange)
	fmt.Fprintf(tw, "d2 (n=%d)\t%.3f\n", s.SubgroupSize, s.D2)
	fmt.Fprintf(tw, "Estimated σ\t%.4f\n", s.EstimatedSD)
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(rep.Results) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LCL\tUCL\tCPL\tCPU\tCPK\tVERDICT")
	for _, l := range rep.Results {
		if l.Result == nil {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t%s\n", fixed2(l.Limits.LCL), fixed2(l.Limits.UCL), l.Error)
			continue
		}
		r := l.Result
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%.4f\t%s\n",
			fixed2(r.LCL), fixed2(r.UCL), r.CPL, r.CPU, r.CPK, r.Verdict)
	}
	return tw.Flush()
}
