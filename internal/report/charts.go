package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/capability.report/internal/analysis"
)

// EchartsAssetsHost serves the echarts JavaScript referenced by rendered
// pages.
const EchartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

func chartInit(title, theme string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle:  title,
		Theme:      theme,
		Width:      "100%",
		Height:     "420px",
		AssetsHost: EchartsAssetsHost,
	})
}

func chartSubtitle(rep *analysis.Report) string {
	if rep.Analyst != "" {
		return fmt.Sprintf("run %s by %s", rep.RunID, rep.Analyst)
	}
	return "run " + rep.RunID
}

// ChartsPage lays out the means, group and trend charts of rep on one HTML
// page. theme is an echarts theme name such as "white" or "dark".
func ChartsPage(rep *analysis.Report, theme string) (*components.Page, error) {
	if len(rep.AcceptedValues()) == 0 {
		return nil, ErrNoData
	}

	page := components.NewPage()
	page.SetPageTitle("Process Capability")
	page.SetAssetsHost(EchartsAssetsHost)
	page.AddCharts(
		meansChart(rep, theme),
		groupsChart(rep, theme),
		trendChart(rep, theme),
	)
	return page, nil
}

// RenderCharts writes the ChartsPage of rep to w as HTML.
func RenderCharts(w io.Writer, rep *analysis.Report, theme string) error {
	page, err := ChartsPage(rep, theme)
	if err != nil {
		return err
	}
	return page.Render(w)
}

func meansChart(rep *analysis.Report, theme string) *charts.Line {
	var (
		labels []string
		data   []opts.LineData
	)
	for _, g := range rep.Groups {
		if g.Stats == nil {
			continue
		}
		labels = append(labels, g.Label)
		data = append(data, opts.LineData{Value: g.Stats.Average})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		chartInit("Group Means", theme),
		charts.WithTitleOpts(opts.Title{Title: "Group Means", Subtitle: chartSubtitle(rep)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Average"}),
	)
	series := []charts.SeriesOpts{}
	if rep.Summary != nil {
		series = append(series, charts.WithMarkLineNameYAxisItemOpts(
			opts.MarkLineNameYAxisItem{Name: "m̄", YAxis: rep.Summary.MeanOfMeans},
		))
	}
	line.SetXAxis(labels).AddSeries("mean", data, series...)
	return line
}

func groupsChart(rep *analysis.Report, theme string) *charts.Line {
	longest := 0
	for _, vals := range rep.AcceptedValues() {
		longest = max(longest, len(vals))
	}
	xs := make([]string, longest)
	for i := range xs {
		xs[i] = strconv.Itoa(i + 1)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		chartInit("Group Values", theme),
		charts.WithTitleOpts(opts.Title{Title: "Group Values", Subtitle: chartSubtitle(rep)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Observation"}),
	)
	line.SetXAxis(xs)
	for _, g := range rep.Groups {
		if g.Stats == nil {
			continue
		}
		data := make([]opts.LineData, len(g.Values))
		for i, v := range g.Values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(g.Label, data)
	}
	return line
}

func trendChart(rep *analysis.Report, theme string) *charts.Line {
	var (
		xs   []string
		data []opts.LineData
	)
	for _, vals := range rep.AcceptedValues() {
		for _, v := range vals {
			xs = append(xs, strconv.Itoa(len(xs)+1))
			data = append(data, opts.LineData{Value: v})
		}
	}

	var marks []opts.MarkLineNameYAxisItem
	if rep.Summary != nil {
		marks = append(marks, opts.MarkLineNameYAxisItem{Name: "m̄", YAxis: rep.Summary.MeanOfMeans})
	}
	for i, l := range rep.Results {
		suffix := ""
		if len(rep.Results) > 1 {
			suffix = fmt.Sprintf(" %d", i+1)
		}
		marks = append(marks,
			opts.MarkLineNameYAxisItem{Name: "LCL" + suffix, YAxis: l.Limits.LCL},
			opts.MarkLineNameYAxisItem{Name: "UCL" + suffix, YAxis: l.Limits.UCL},
		)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		chartInit("Process Trend", theme),
		charts.WithTitleOpts(opts.Title{Title: "Process Trend", Subtitle: chartSubtitle(rep)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Observation"}),
	)
	line.SetXAxis(xs).AddSeries("value", data, charts.WithMarkLineNameYAxisItemOpts(marks...))
	return line
}
