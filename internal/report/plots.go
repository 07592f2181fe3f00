package report

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/capability.report/internal/analysis"
	"github.com/banshee-data/capability.report/internal/security"
)

// ChartKind names one of the charts a report can be drawn as.
type ChartKind string

const (
	// ChartMeans plots each group's average in slot order.
	ChartMeans ChartKind = "means"
	// ChartGroups plots each group's values as its own line.
	ChartGroups ChartKind = "groups"
	// ChartTrend plots every value in order against m̄ and the limits.
	ChartTrend ChartKind = "trend"
)

// ChartKinds lists every chart kind in the order they are written.
var ChartKinds = []ChartKind{ChartMeans, ChartGroups, ChartTrend}

// ParseChartKind maps a chart name to its ChartKind.
func ParseChartKind(name string) (ChartKind, error) {
	for _, k := range ChartKinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown chart %q", name)
}

var (
	centreColor = color.RGBA{A: 255}
	limitColor  = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	dashes      = []vg.Length{vg.Points(4), vg.Points(3)}
)

// Plotter draws report charts as PNG images.
type Plotter struct {
	width  vg.Length
	height vg.Length
}

// NewPlotter returns a Plotter producing images of the given size in
// inches. Non-positive sizes fall back to 8x4.
func NewPlotter(widthInches, heightInches float64) *Plotter {
	if widthInches <= 0 {
		widthInches = 8
	}
	if heightInches <= 0 {
		heightInches = 4
	}
	return &Plotter{
		width:  vg.Length(widthInches) * vg.Inch,
		height: vg.Length(heightInches) * vg.Inch,
	}
}

// Build lays out one chart of rep.
func (p *Plotter) Build(rep *analysis.Report, kind ChartKind) (*plot.Plot, error) {
	if len(rep.AcceptedValues()) == 0 {
		return nil, ErrNoData
	}
	switch kind {
	case ChartMeans:
		return buildMeans(rep)
	case ChartGroups:
		return buildGroups(rep)
	case ChartTrend:
		return buildTrend(rep)
	default:
		return nil, fmt.Errorf("unknown chart %q", kind)
	}
}

// WritePNG encodes one chart of rep to w.
func (p *Plotter) WritePNG(w io.Writer, rep *analysis.Report, kind ChartKind) error {
	pl, err := p.Build(rep, kind)
	if err != nil {
		return err
	}
	wt, err := pl.WriterTo(p.width, p.height, "png")
	if err != nil {
		return fmt.Errorf("render %s chart: %w", kind, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// WritePlots saves every chart of rep under dir/<run id>/ and returns the
// files written.
func (p *Plotter) WritePlots(dir string, rep *analysis.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	runDir := filepath.Join(dir, security.SanitizeFilename(rep.RunID))
	if err := security.WithinDirectory(runDir, dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	var files []string
	for _, kind := range ChartKinds {
		pl, err := p.Build(rep, kind)
		if err != nil {
			return files, err
		}
		file := filepath.Join(runDir, string(kind)+".png")
		if err := pl.Save(p.width, p.height, file); err != nil {
			return files, fmt.Errorf("save %s: %w", file, err)
		}
		files = append(files, file)
	}
	return files, nil
}

func newPlot(title, xLabel string) *plot.Plot {
	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = xLabel
	pl.Y.Label.Text = "Value"
	pl.Add(plotter.NewGrid())
	pl.Legend.Top = true
	pl.Legend.Left = false
	pl.Legend.XOffs = -10
	pl.Legend.YOffs = -10
	return pl
}

func buildMeans(rep *analysis.Report) (*plot.Plot, error) {
	pl := newPlot("Group Means", "Group")

	var pts plotter.XYs
	for i, g := range rep.Groups {
		if g.Stats != nil {
			pts = append(pts, plotter.XY{X: float64(i + 1), Y: g.Stats.Average})
		}
	}
	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("means line: %w", err)
	}
	line.Width = vg.Points(1.5)
	scatter.Shape = draw.CircleGlyph{}
	pl.Add(line, scatter)
	pl.Legend.Add("mean", line, scatter)

	if rep.Summary != nil {
		if err := addHLine(pl, "m̄", pts[0].X, pts[len(pts)-1].X, rep.Summary.MeanOfMeans, centreColor, nil); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

func buildGroups(rep *analysis.Report) (*plot.Plot, error) {
	pl := newPlot("Group Values", "Observation")

	var accepted []analysis.GroupReport
	for _, g := range rep.Groups {
		if g.Stats != nil {
			accepted = append(accepted, g)
		}
	}
	colors := generateColors(len(accepted))
	for i, g := range accepted {
		pts := make(plotter.XYs, len(g.Values))
		for j, v := range g.Values {
			pts[j] = plotter.XY{X: float64(j + 1), Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", g.Label, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		pl.Add(line)
		pl.Legend.Add(g.Label, line)
	}
	return pl, nil
}

func buildTrend(rep *analysis.Report) (*plot.Plot, error) {
	pl := newPlot("Process Trend", "Observation")

	var pts plotter.XYs
	for _, vals := range rep.AcceptedValues() {
		for _, v := range vals {
			pts = append(pts, plotter.XY{X: float64(len(pts) + 1), Y: v})
		}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("trend line: %w", err)
	}
	line.Width = vg.Points(1)
	pl.Add(line)
	pl.Legend.Add("value", line)

	x0, x1 := pts[0].X, pts[len(pts)-1].X
	if rep.Summary != nil {
		if err := addHLine(pl, "m̄", x0, x1, rep.Summary.MeanOfMeans, centreColor, nil); err != nil {
			return nil, err
		}
	}
	for i, l := range rep.Results {
		suffix := ""
		if len(rep.Results) > 1 {
			suffix = fmt.Sprintf(" %d", i+1)
		}
		if err := addHLine(pl, "LCL"+suffix, x0, x1, l.Limits.LCL, limitColor, dashes); err != nil {
			return nil, err
		}
		if err := addHLine(pl, "UCL"+suffix, x0, x1, l.Limits.UCL, limitColor, dashes); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// addHLine draws a horizontal reference line across [x0, x1]. A line is
// used rather than a function plotter so the y axis grows to include it.
func addHLine(pl *plot.Plot, label string, x0, x1, y float64, c color.Color, dash []vg.Length) error {
	line, err := plotter.NewLine(plotter.XYs{{X: x0, Y: y}, {X: x1, Y: y}})
	if err != nil {
		return fmt.Errorf("%s line: %w", label, err)
	}
	line.Color = c
	line.Dashes = dash
	line.Width = vg.Points(1)
	pl.Add(line)
	pl.Legend.Add(label, line)
	return nil
}

// generateColors spreads n distinct hues around the colour wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}
