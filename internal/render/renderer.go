package render

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/components"
	"gonum.org/v1/plot"

	"github.com/banshee-data/collision.report/internal/aggregate"
	"github.com/banshee-data/collision.report/internal/decompose"
	"github.com/banshee-data/collision.report/internal/fsutil"
	"github.com/banshee-data/collision.report/internal/monitoring"
	"github.com/banshee-data/collision.report/internal/security"
)

// Artifact names written into the output directory.
const (
	ReportFile        = "report.html"
	FactorsFile       = "top_contributing_factors.html"
	VehiclesFile      = "top_vehicle_types.html"
	RolesFile         = "injuries_deaths_by_role.html"
	HourlyFile        = "hourly_average.html"
	MonthlyFile       = "monthly_crashes.html"
	DailyFile         = "daily_crashes.html"
	BoroughFile       = "borough_counts.html"
	MissingFile       = "missing_values.html"
	DecompositionFile = "decomposition.html"
	HeatmapFile       = "Heatmap.html"
	SeverityFile      = "severity.html"
	DailyPNG          = "daily_crashes.png"
	HourlyPNG         = "hourly_average.png"
)

// chart is anything go-echarts can render to a standalone page.
type chart interface {
	Render(w io.Writer) error
}

// pageChart can also be embedded in a components.Page.
type pageChart interface {
	chart
	components.Charter
}

// Options configures a Renderer.
type Options struct {
	OutputDir   string
	AssetsHost  string
	CellDegrees float64
}

// Renderer writes chart artifacts through a FileSystem.
type Renderer struct {
	fs      fsutil.FileSystem
	opts    Options
	written []string
}

// New returns a Renderer writing into opts.OutputDir.
func New(fsys fsutil.FileSystem, opts Options) *Renderer {
	if opts.AssetsHost == "" {
		opts.AssetsHost = DefaultAssetsHost
	}
	if opts.CellDegrees <= 0 {
		opts.CellDegrees = 0.01
	}
	return &Renderer{fs: fsys, opts: opts}
}

// Written returns the paths of every artifact written so far, sorted.
func (r *Renderer) Written() []string {
	out := append([]string(nil), r.written...)
	sort.Strings(out)
	return out
}

// Series is the gap-filled daily series and its decomposition. Result is
// nil when the series was too short to decompose.
type Series struct {
	Dates  []time.Time
	Result *decompose.Result
}

// RenderAll writes every chart for s. The decomposition charts are
// skipped when series.Result is nil.
func (r *Renderer) RenderAll(s *aggregate.Summary, series Series) error {
	if err := r.fs.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	host := r.opts.AssetsHost
	// Each artifact gets its own chart instance; go-echarts assigns chart
	// ids and assets during Render.
	build := func() []pageChart {
		return []pageChart{
			MissingChart(host, s.Missing),
			CategoryChart(host, fmt.Sprintf("Top %d Contributing Factors", len(s.TopFactors)), "Contributing Factor", s.TopFactors),
			CategoryChart(host, fmt.Sprintf("Top %d Vehicle Types", len(s.TopVehicles)), "Vehicle Type", s.TopVehicles),
			RoleChart(host, s.Roles),
			HourlyChart(host, s.Hourly),
			MonthlyChart(host, s.Monthly),
			DailyChart(host, s.Daily),
			BoroughChart(host, s.Boroughs),
		}
	}
	names := []string{MissingFile, FactorsFile, VehiclesFile, RolesFile, HourlyFile, MonthlyFile, DailyFile, BoroughFile}

	type artifact struct {
		name  string
		chart chart
	}
	var singles []artifact
	for i, c := range build() {
		singles = append(singles, artifact{names[i], c})
	}
	singles = append(singles,
		artifact{HeatmapFile, HeatmapChart(host, BinHeatGrid(s.Geo, r.opts.CellDegrees))},
		artifact{SeverityFile, SeverityChart(host, s.SeveritySample)},
	)

	page := components.NewPage()
	page.SetPageTitle("NYC Motor Vehicle Collisions")
	page.SetAssetsHost(host)
	for _, c := range build() {
		page.AddCharts(c)
	}

	if series.Result != nil {
		singles = append(singles, artifact{DecompositionFile, DecompositionChart(host, series.Dates, series.Result)})
		page.AddCharts(DecompositionChart(host, series.Dates, series.Result))
	}

	for _, c := range singles {
		if err := r.writeChart(c.name, c.chart); err != nil {
			return err
		}
	}
	if err := r.writeChart(ReportFile, page); err != nil {
		return err
	}

	dailyPlot, err := DailyPlot(s.Daily)
	if err != nil {
		return err
	}
	if err := r.writePlot(DailyPNG, dailyPlot); err != nil {
		return err
	}
	hourlyPlot, err := HourlyPlot(s.Hourly)
	if err != nil {
		return err
	}
	if err := r.writePlot(HourlyPNG, hourlyPlot); err != nil {
		return err
	}

	if series.Result != nil {
		plots, err := DecompositionPlots(series.Dates, series.Result)
		if err != nil {
			return err
		}
		for key, p := range plots {
			if err := r.writePlot("decomposition_"+key+".png", p); err != nil {
				return err
			}
		}
	}

	monitoring.Logf("render: wrote %d artifacts to %s", len(r.written), r.opts.OutputDir)
	return nil
}

func (r *Renderer) create(name string) (io.WriteCloser, string, error) {
	path, err := security.ArtifactPath(r.opts.OutputDir, name)
	if err != nil {
		return nil, "", err
	}
	f, err := r.fs.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, path, nil
}

func (r *Renderer) writeChart(name string, c chart) error {
	f, path, err := r.create(name)
	if err != nil {
		return err
	}
	if err := c.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	r.written = append(r.written, path)
	monitoring.Verbosef("render: wrote %s", path)
	return nil
}

func (r *Renderer) writePlot(name string, p *plot.Plot) error {
	f, path, err := r.create(name)
	if err != nil {
		return err
	}
	if err := writePNG(p, f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	r.written = append(r.written, path)
	monitoring.Verbosef("render: wrote %s", path)
	return nil
}
