// Package report runs the whole analysis: ingest the CSV, aggregate it,
// decompose the daily series, then write charts, the workbook, the run
// history and a text summary.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/banshee-data/collision.report/internal/aggregate"
	"github.com/banshee-data/collision.report/internal/collision"
	"github.com/banshee-data/collision.report/internal/config"
	"github.com/banshee-data/collision.report/internal/db"
	"github.com/banshee-data/collision.report/internal/decompose"
	"github.com/banshee-data/collision.report/internal/export"
	"github.com/banshee-data/collision.report/internal/fsutil"
	"github.com/banshee-data/collision.report/internal/ingest"
	"github.com/banshee-data/collision.report/internal/monitoring"
	"github.com/banshee-data/collision.report/internal/render"
	"github.com/banshee-data/collision.report/internal/timeutil"
	"github.com/banshee-data/collision.report/internal/version"
)

// Pipeline wires the collaborators of one run. DB is optional; without it
// no run history is recorded.
type Pipeline struct {
	Config *config.Config
	FS     fsutil.FileSystem
	DB     *db.DB
	Clock  timeutil.Clock
	Out    io.Writer
}

// Outcome is what a run produced.
type Outcome struct {
	RunID   string
	Source  string
	Rows    int
	Skipped []*collision.TimestampParseError
	Summary *aggregate.Summary

	// Decomposition is nil when DecompositionErr explains why the daily
	// series could not be decomposed.
	Decomposition    *decompose.Result
	DecompositionErr error

	Artifacts []string
}

// Run executes the pipeline. When a DB is configured the run is recorded
// even if a later step fails.
func (p *Pipeline) Run(ctx context.Context) (out *Outcome, err error) {
	cfg := p.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	fsys := p.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	out = &Outcome{Source: cfg.GetInputPath()}

	var run *db.Run
	if p.DB != nil {
		p.DB.SetClock(clock)
		cfgJSON, jerr := json.Marshal(cfg)
		if jerr != nil {
			return nil, fmt.Errorf("failed to encode config: %w", jerr)
		}
		run = &db.Run{
			Source:     cfg.GetInputPath(),
			Version:    version.Version,
			OutputDir:  cfg.GetOutputDir(),
			ConfigJSON: string(cfgJSON),
			StartedAt:  clock.Now(),
		}
		if err := p.DB.CreateRun(ctx, run); err != nil {
			return nil, err
		}
		out.RunID = run.ID
		defer func() {
			if ferr := p.DB.FinishRun(context.WithoutCancel(ctx), run, err); ferr != nil && err == nil {
				err = ferr
			}
		}()
	}

	loc, err := timeutil.LoadLocation(cfg.GetTimezone())
	if err != nil {
		return nil, err
	}

	res, err := ingest.ReadFile(ctx, fsys, cfg.GetInputPath(), ingest.Options{
		Location:        loc,
		SkipUnparseable: cfg.GetSkipUnparseable(),
	})
	if err != nil {
		return nil, err
	}
	out.Rows = res.Rows
	out.Skipped = res.Skipped
	if run != nil {
		run.Records = len(res.Records)
		run.Skipped = len(res.Skipped)
	}

	ds, err := normalize(aggregate.NewDataset(res.Records), cfg.GetCategoryNormalization())
	if err != nil {
		return nil, err
	}

	summary, err := aggregate.Summarize(ds, aggregate.Options{
		TopN:       cfg.GetTopN(),
		SampleSize: cfg.GetSampleSize(),
		SampleSeed: cfg.GetSampleSeed(),
	})
	if err != nil {
		return nil, err
	}
	out.Summary = summary

	series, skipped, err := decomposeDaily(summary, cfg)
	if err != nil {
		return nil, err
	}
	out.Decomposition = series.Result
	out.DecompositionErr = skipped

	r := render.New(fsys, render.Options{
		OutputDir:   cfg.GetOutputDir(),
		CellDegrees: cfg.GetHeatCellDegrees(),
	})
	if err := r.RenderAll(summary, series); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	out.Artifacts = r.Written()

	workbook, err := export.WriteFile(fsys, cfg.GetOutputDir(), summary, export.Meta{
		RunID:     out.RunID,
		Source:    cfg.GetInputPath(),
		Version:   version.Version,
		Generated: clock.Now(),
		Skipped:   res.Skipped,
	})
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	out.Artifacts = append(out.Artifacts, workbook)
	sort.Strings(out.Artifacts)

	if p.DB != nil {
		if err := p.DB.SaveSummary(ctx, run.ID, summary); err != nil {
			return nil, err
		}
		if err := p.DB.SaveSkipped(ctx, run.ID, res.Skipped); err != nil {
			return nil, err
		}
	}

	if p.Out != nil {
		if err := WriteSummary(p.Out, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// normalize applies the configured label mappings in field order so runs
// are reproducible.
func normalize(ds *aggregate.Dataset, mappings map[collision.Field]map[string]string) (*aggregate.Dataset, error) {
	fields := make([]collision.Field, 0, len(mappings))
	for f := range mappings {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	for _, f := range fields {
		var err error
		if ds, err = aggregate.Normalize(ds, f, mappings[f]); err != nil {
			return nil, fmt.Errorf("normalize %s: %w", f, err)
		}
		monitoring.Logf("normalize: applied %d mappings to %s", len(mappings[f]), f)
	}
	return ds, nil
}

// decomposeDaily fills the daily series and decomposes it. A series that
// is too short or, for the multiplicative model, contains zero-crash days
// is returned as skipped with a nil Result instead of failing the run.
func decomposeDaily(s *aggregate.Summary, cfg *config.Config) (series render.Series, skipped error, err error) {
	dates, values := FillDailyGaps(s.Daily)
	series.Dates = dates

	model, err := decompose.ParseModel(cfg.GetDecompositionModel())
	if err != nil {
		return series, nil, err
	}
	res, err := decompose.Decompose(values, cfg.GetDecompositionPeriod(), model)
	switch {
	case errors.Is(err, decompose.ErrInsufficientData), errors.Is(err, decompose.ErrNonPositive):
		monitoring.Logf("decompose: skipped: %v", err)
		return series, err, nil
	case err != nil:
		return series, nil, fmt.Errorf("decompose: %w", err)
	}
	series.Result = res
	return series, nil, nil
}
