package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/collision.report/internal/aggregate"
	"github.com/banshee-data/collision.report/internal/decompose"
)

// PNG dimensions for static plots.
const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 5 * vg.Inch
)

var lineColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}

// timeXYs pairs dates with values, dropping NaN points; plotter.NewLine
// rejects them.
func timeXYs(dates []time.Time, values []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(dates[i].Unix()), Y: v})
	}
	return pts
}

func timeSeriesPlot(title, yLabel string, dates []time.Time, values []float64) (*plot.Plot, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("%s: %d dates for %d values", title, len(dates), len(values))
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = yLabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Add(plotter.NewGrid())

	pts := timeXYs(dates, values)
	if len(pts) == 0 {
		return p, nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", title, err)
	}
	line.Color = lineColor
	line.Width = vg.Points(1)
	p.Add(line)
	return p, nil
}

// DailyPlot is the static daily-crash time series.
func DailyPlot(days []aggregate.DayCount) (*plot.Plot, error) {
	dates := make([]time.Time, len(days))
	values := make([]float64, len(days))
	for i, d := range days {
		dates[i] = d.Date
		values[i] = float64(d.Count)
	}
	return timeSeriesPlot("Daily Crashes", "Number of Crashes", dates, values)
}

// DecompositionPlots returns one plot per component, keyed by the suffix
// used in the artifact name.
func DecompositionPlots(dates []time.Time, res *decompose.Result) (map[string]*plot.Plot, error) {
	components := []struct {
		key    string
		title  string
		values []float64
	}{
		{"observed", "Observed", res.Observed},
		{"trend", "Trend", res.Trend},
		{"seasonal", "Seasonal", res.Seasonal},
		{"residual", "Residual", res.Resid},
	}

	out := make(map[string]*plot.Plot, len(components))
	for _, c := range components {
		title := fmt.Sprintf("%s (%s, period %d)", c.title, res.Model, res.Period)
		p, err := timeSeriesPlot(title, "Crashes", dates, c.values)
		if err != nil {
			return nil, err
		}
		out[c.key] = p
	}
	return out, nil
}

// HourlyPlot is a static bar chart of the hourly averages.
func HourlyPlot(hours []aggregate.HourAverage) (*plot.Plot, error) {
	values := make(plotter.Values, len(hours))
	names := make([]string, len(hours))
	for i, h := range hours {
		values[i] = h.Average
		names[i] = fmt.Sprintf("%02d", h.Hour)
	}

	p := plot.New()
	p.Title.Text = "Average Crashes per Hour"
	p.X.Label.Text = "Hour of Day"
	p.Y.Label.Text = "Average Crashes"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, fmt.Errorf("hourly bars: %w", err)
	}
	bars.Color = lineColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

// writePNG encodes p as PNG into w.
func writePNG(p *plot.Plot, w io.Writer) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to encode plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}
