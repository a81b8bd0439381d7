// Package render turns aggregate views into chart artifacts: interactive
// go-echarts HTML pages and static gonum/plot PNGs.
package render

import (
	"fmt"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/collision.report/internal/aggregate"
	"github.com/banshee-data/collision.report/internal/collision"
	"github.com/banshee-data/collision.report/internal/decompose"
)

// DefaultAssetsHost serves the echarts JavaScript bundles referenced by
// every generated page.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// maxHeatAxisCells bounds each heatmap axis. Outlying coordinates would
// otherwise stretch the grid to thousands of mostly empty cells.
const maxHeatAxisCells = 200

var heatColors = []string{"#313695", "#4575b4", "#74add1", "#abd9e9", "#e0f3f8", "#ffffbf", "#fee090", "#fdae61", "#f46d43", "#d73027", "#a50026"}

// severityStyle is the marker used for each class on the severity map.
var severityStyle = map[collision.Severity]struct {
	color  string
	symbol string
}{
	collision.SeverityFatal:  {"#d62728", "triangle"},
	collision.SeverityInjury: {"#f2c80f", "circle"},
	collision.SeverityNone:   {"#2ca02c", "rect"},
}

func initOpts(assetsHost, pageTitle string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle:  pageTitle,
		Width:      "1100px",
		Height:     "600px",
		AssetsHost: assetsHost,
	})
}

// CategoryChart is a vertical bar chart of a top-N ranking.
func CategoryChart(assetsHost, title, axisName string, counts []aggregate.CategoryCount) *charts.Bar {
	x := make([]string, 0, len(counts))
	y := make([]opts.BarData, 0, len(counts))
	for _, c := range counts {
		x = append(x, c.Category)
		y = append(y, opts.BarData{Value: c.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(assetsHost, title),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: axisName, AxisLabel: &opts.AxisLabel{Rotate: 30, Interval: "0"}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Number of Crashes"}),
	)
	bar.SetXAxis(x).
		AddSeries("crashes", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// RoleChart is a horizontal bar chart of injuries and deaths by role.
func RoleChart(assetsHost string, roles []aggregate.RoleTotal) *charts.Bar {
	x := make([]string, 0, len(roles))
	y := make([]opts.BarData, 0, len(roles))
	for _, r := range roles {
		x = append(x, r.Label)
		y = append(y, opts.BarData{Value: r.Total})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(assetsHost, "Injuries and Deaths by Role"),
		charts.WithTitleOpts(opts.Title{Title: "Injuries and Deaths by Role"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Count"}),
	)
	bar.SetXAxis(x).
		AddSeries("people", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "right"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#c0392b"}),
		)
	bar.XYReversal()
	return bar
}

// HourlyChart shows the average number of crashes for each hour of day.
func HourlyChart(assetsHost string, hours []aggregate.HourAverage) *charts.Bar {
	x := make([]string, 0, len(hours))
	y := make([]opts.BarData, 0, len(hours))
	for _, h := range hours {
		x = append(x, fmt.Sprintf("%02d", h.Hour))
		y = append(y, opts.BarData{Value: round(h.Average, 2)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(assetsHost, "Average Crashes per Hour"),
		charts.WithTitleOpts(opts.Title{Title: "Average Crashes per Hour"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hour of Day"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Average Crashes"}),
	)
	bar.SetXAxis(x).AddSeries("average", y)
	return bar
}

// BoroughChart ranks boroughs by crash count.
func BoroughChart(assetsHost string, counts []aggregate.BoroughCount) *charts.Bar {
	x := make([]string, 0, len(counts))
	y := make([]opts.BarData, 0, len(counts))
	for _, c := range counts {
		x = append(x, string(c.Borough))
		y = append(y, opts.BarData{Value: c.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(assetsHost, "Crashes by Borough"),
		charts.WithTitleOpts(opts.Title{Title: "Crashes by Borough"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Borough"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Number of Crashes"}),
	)
	bar.SetXAxis(x).
		AddSeries("crashes", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// MissingChart shows the share of empty cells per column.
func MissingChart(assetsHost string, missing []aggregate.MissingValue) *charts.Bar {
	x := make([]string, 0, len(missing))
	y := make([]opts.BarData, 0, len(missing))
	for _, m := range missing {
		x = append(x, m.Column)
		y = append(y, opts.BarData{Value: round(m.Percent, 2)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(assetsHost, "Missing Values"),
		charts.WithTitleOpts(opts.Title{Title: "Missing Values", Subtitle: "percent of rows with an empty cell"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 60, Interval: "0"}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%", Max: 100}),
	)
	bar.SetXAxis(x).AddSeries("missing", y)
	return bar
}

// MonthlyChart is a line chart of crashes per month.
func MonthlyChart(assetsHost string, months []aggregate.MonthCount) *charts.Line {
	x := make([]string, 0, len(months))
	y := make([]opts.LineData, 0, len(months))
	for _, m := range months {
		x = append(x, m.Label())
		y = append(y, opts.LineData{Value: m.Count})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts(assetsHost, "Crashes per Month"),
		charts.WithTitleOpts(opts.Title{Title: "Crashes per Month"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Month"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Number of Crashes"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(x).AddSeries("crashes", y)
	return line
}

// DailyChart is a line chart of crashes per calendar day.
func DailyChart(assetsHost string, days []aggregate.DayCount) *charts.Line {
	x := make([]string, 0, len(days))
	y := make([]opts.LineData, 0, len(days))
	for _, d := range days {
		x = append(x, d.Date.Format(time.DateOnly))
		y = append(y, opts.LineData{Value: d.Count})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts(assetsHost, "Daily Crashes"),
		charts.WithTitleOpts(opts.Title{Title: "Daily Crashes"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Number of Crashes"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(x).AddSeries("crashes", y, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

// DecompositionChart overlays the observed series with its trend, seasonal
// and residual components. Undefined trend and residual points are left
// as gaps.
func DecompositionChart(assetsHost string, dates []time.Time, res *decompose.Result) *charts.Line {
	x := make([]string, 0, len(dates))
	for _, d := range dates {
		x = append(x, d.Format(time.DateOnly))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts(assetsHost, "Seasonal Decomposition"),
		charts.WithTitleOpts(opts.Title{
			Title:    "Seasonal Decomposition",
			Subtitle: fmt.Sprintf("%s model, period %d", res.Model, res.Period),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(x)
	noSymbol := charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})
	line.AddSeries("Observed", lineData(res.Observed), noSymbol)
	line.AddSeries("Trend", lineData(res.Trend), noSymbol)
	line.AddSeries("Seasonal", lineData(res.Seasonal), noSymbol)
	line.AddSeries("Residual", lineData(res.Resid), noSymbol)
	return line
}

// lineData maps NaN to "-", which echarts draws as a gap.
func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = opts.LineData{Value: "-"}
			continue
		}
		out[i] = opts.LineData{Value: round(v, 3)}
	}
	return out
}

// HeatGrid is the binned crash density behind the heatmap.
type HeatGrid struct {
	CellDegrees float64
	MinLat      float64
	MinLon      float64
	Lats        []string
	Lons        []string
	// Cells maps [lonIndex, latIndex] to a crash count.
	Cells map[[2]int]int
	Max   int
}

// BinHeatGrid bins geo-filtered records into square cells of cellDegrees.
// The cell size grows when the extent would exceed maxHeatAxisCells.
func BinHeatGrid(records []collision.Record, cellDegrees float64) *HeatGrid {
	g := &HeatGrid{CellDegrees: cellDegrees, Cells: make(map[[2]int]int)}
	if len(records) == 0 || cellDegrees <= 0 {
		return g
	}

	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for i := range records {
		lat, lon := *records[i].Latitude, *records[i].Longitude
		minLat, maxLat = math.Min(minLat, lat), math.Max(maxLat, lat)
		minLon, maxLon = math.Min(minLon, lon), math.Max(maxLon, lon)
	}
	span := math.Max(maxLat-minLat, maxLon-minLon)
	if span/cellDegrees >= maxHeatAxisCells {
		g.CellDegrees = span / (maxHeatAxisCells - 1)
	}
	cell := g.CellDegrees
	g.MinLat, g.MinLon = minLat, minLon

	nLat := int((maxLat-minLat)/cell) + 1
	nLon := int((maxLon-minLon)/cell) + 1
	for i := 0; i < nLat; i++ {
		g.Lats = append(g.Lats, fmt.Sprintf("%.3f", minLat+float64(i)*cell))
	}
	for i := 0; i < nLon; i++ {
		g.Lons = append(g.Lons, fmt.Sprintf("%.3f", minLon+float64(i)*cell))
	}

	for i := range records {
		xi := int((*records[i].Longitude - minLon) / cell)
		yi := int((*records[i].Latitude - minLat) / cell)
		key := [2]int{xi, yi}
		g.Cells[key]++
		if g.Cells[key] > g.Max {
			g.Max = g.Cells[key]
		}
	}
	return g
}

// HeatmapChart renders crash density over a longitude/latitude grid.
func HeatmapChart(assetsHost string, grid *HeatGrid) *charts.HeatMap {
	data := make([]opts.HeatMapData, 0, len(grid.Cells))
	for key, n := range grid.Cells {
		data = append(data, opts.HeatMapData{Value: [3]interface{}{key[0], key[1], n}})
	}
	maxCount := grid.Max
	if maxCount == 0 {
		maxCount = 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "Crash Density",
			Width:      "1000px",
			Height:     "1000px",
			AssetsHost: assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Crash Density",
			Subtitle: fmt.Sprintf("cell=%.3f° cells=%d", grid.CellDegrees, len(grid.Cells)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "Longitude", Data: grid.Lons, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "Latitude", Data: grid.Lats, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxCount),
			InRange:    &opts.VisualMapInRange{Color: heatColors},
		}),
	)
	hm.SetXAxis(grid.Lons).AddSeries("crashes", data)
	return hm
}

// SeverityChart plots sampled crash locations coloured by severity.
func SeverityChart(assetsHost string, records []collision.Record) *charts.Scatter {
	series := make(map[collision.Severity][]opts.ScatterData)
	for i := range records {
		r := &records[i]
		if !r.HasCoordinates() {
			continue
		}
		sev := aggregate.SeverityClass(r)
		series[sev] = append(series[sev], opts.ScatterData{
			Name:   fmt.Sprintf("%d", r.ID),
			Value:  []interface{}{*r.Longitude, *r.Latitude},
			Symbol: severityStyle[sev].symbol,
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "Crash Severity",
			Width:      "1000px",
			Height:     "1000px",
			AssetsHost: assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Crash Severity", Subtitle: fmt.Sprintf("sample of %d crashes", len(records))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Longitude", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Latitude", Scale: opts.Bool(true)}),
	)
	for _, sev := range collision.Severities {
		style := severityStyle[sev]
		scatter.AddSeries(sev.String(), series[sev],
			charts.WithScatterChartOpts(opts.ScatterChart{Symbol: style.symbol, SymbolSize: 8}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: style.color}),
		)
	}
	return scatter
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
