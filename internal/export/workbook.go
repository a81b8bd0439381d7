// Package export writes the aggregate tables of one run into an xlsx
// workbook, one sheet per view.
package export

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/collision.report/internal/aggregate"
	"github.com/banshee-data/collision.report/internal/collision"
	"github.com/banshee-data/collision.report/internal/fsutil"
	"github.com/banshee-data/collision.report/internal/monitoring"
	"github.com/banshee-data/collision.report/internal/security"
)

// WorkbookFile is the artifact name of the exported workbook.
const WorkbookFile = "collision_stats.xlsx"

// Sheet names, in workbook order.
const (
	SheetSummary         = "Summary"
	SheetMissing         = "Missing Values"
	SheetDescribe        = "Describe"
	SheetFactors         = "Top Factors"
	SheetVehicles        = "Top Vehicles"
	SheetRoles           = "Roles"
	SheetHourly          = "Hourly"
	SheetMonthly         = "Monthly"
	SheetDaily           = "Daily"
	SheetBoroughs        = "Boroughs"
	SheetSeverity        = "Severity"
	SheetInconsistencies = "Inconsistencies"
	SheetSkipped         = "Skipped Rows"
)

// Meta is run-level information shown on the Summary sheet.
type Meta struct {
	RunID     string
	Source    string
	Version   string
	Generated time.Time
	Skipped   []*collision.TimestampParseError
}

type sheet struct {
	name   string
	header []string
	rows   [][]interface{}
	width  float64
}

// Workbook builds the workbook for s. The caller owns the returned file and
// must Close it.
func Workbook(s *aggregate.Summary, meta Meta) (*excelize.File, error) {
	f := excelize.NewFile()
	sheets := buildSheets(s, meta)

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to rename first sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to add sheet %s: %w", sh.name, err)
		}
		if err := writeSheet(f, sh); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write renders the workbook for s into w.
func Write(w io.Writer, s *aggregate.Summary, meta Meta) error {
	f, err := Workbook(s, meta)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteFile writes the workbook into dir on fsys and returns its path.
func WriteFile(fsys fsutil.FileSystem, dir string, s *aggregate.Summary, meta Meta) (string, error) {
	path, err := security.ArtifactPath(dir, WorkbookFile)
	if err != nil {
		return "", err
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	out, err := fsys.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(out, s, meta); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	monitoring.Logf("export: wrote %s", path)
	return path, nil
}

func writeSheet(f *excelize.File, sh sheet) error {
	header := make([]interface{}, len(sh.header))
	for i, h := range sh.header {
		header[i] = h
	}
	if err := f.SetSheetRow(sh.name, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sh.name, err)
	}
	for i, row := range sh.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sh.name, i+1, err)
		}
	}

	width := sh.width
	if width == 0 {
		width = 16
	}
	last, err := excelize.ColumnNumberToName(len(sh.header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sh.name, "A", last, width); err != nil {
		return fmt.Errorf("%s column width: %w", sh.name, err)
	}
	return nil
}

// num leaves undefined statistics as empty cells.
func num(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}

func dateCell(t time.Time) interface{} {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func buildSheets(s *aggregate.Summary, meta Meta) []sheet {
	summary := sheet{
		name:   SheetSummary,
		header: []string{"Key", "Value"},
		width:  28,
		rows: [][]interface{}{
			{"run_id", meta.RunID},
			{"source", meta.Source},
			{"version", meta.Version},
			{"generated", dateCell(meta.Generated)},
			{"records", s.Records},
			{"skipped_rows", len(meta.Skipped)},
			{"first_crash", dateCell(s.First)},
			{"last_crash", dateCell(s.Last)},
			{"geo_records", len(s.Geo)},
			{"severity_sample", len(s.SeveritySample)},
			{"inconsistent_records", len(s.Inconsistencies)},
		},
	}

	missing := sheet{name: SheetMissing, header: []string{"Column", "Field", "Missing", "Percent"}, width: 30}
	for _, m := range s.Missing {
		missing.rows = append(missing.rows, []interface{}{m.Column, string(m.Field), m.Count, m.Percent})
	}

	describe := sheet{name: SheetDescribe, header: []string{"Field", "Count", "Mean", "Std", "Min", "25%", "50%", "75%", "Max"}}
	for _, d := range s.Describe {
		describe.rows = append(describe.rows, []interface{}{
			string(d.Field), d.Count, num(d.Mean), num(d.Std), num(d.Min), num(d.P25), num(d.P50), num(d.P75), num(d.Max),
		})
	}

	factors := categorySheet(SheetFactors, "Contributing Factor", s.TopFactors)
	vehicles := categorySheet(SheetVehicles, "Vehicle Type", s.TopVehicles)

	roles := sheet{name: SheetRoles, header: []string{"Role", "Total"}, width: 24}
	for _, r := range s.Roles {
		roles.rows = append(roles.rows, []interface{}{r.Label, r.Total})
	}

	hourly := sheet{name: SheetHourly, header: []string{"Hour", "Crashes", "Average"}}
	for _, h := range s.Hourly {
		hourly.rows = append(hourly.rows, []interface{}{h.Hour, h.Count, h.Average})
	}

	monthly := sheet{name: SheetMonthly, header: []string{"Month", "Crashes"}}
	for _, m := range s.Monthly {
		monthly.rows = append(monthly.rows, []interface{}{m.Label(), m.Count})
	}

	daily := sheet{name: SheetDaily, header: []string{"Date", "Crashes"}}
	for _, d := range s.Daily {
		daily.rows = append(daily.rows, []interface{}{d.Date.Format(time.DateOnly), d.Count})
	}

	boroughs := sheet{name: SheetBoroughs, header: []string{"Borough", "Crashes"}}
	for _, b := range s.Boroughs {
		boroughs.rows = append(boroughs.rows, []interface{}{string(b.Borough), b.Count})
	}

	severity := sheet{name: SheetSeverity, header: []string{"Severity", "Crashes"}}
	for _, c := range s.Severity {
		severity.rows = append(severity.rows, []interface{}{c.Severity.String(), c.Count})
	}

	inconsistent := sheet{
		name:   SheetInconsistencies,
		header: []string{"Collision ID", "Persons Injured", "Role Injured", "Persons Killed", "Role Killed"},
	}
	for _, in := range s.Inconsistencies {
		inconsistent.rows = append(inconsistent.rows, []interface{}{in.RecordID, in.PersonsInjured, in.RoleInjured, in.PersonsKilled, in.RoleKilled})
	}

	skipped := sheet{name: SheetSkipped, header: []string{"Line", "Collision ID", "Crash Date", "Crash Time", "Error"}}
	for _, e := range meta.Skipped {
		skipped.rows = append(skipped.rows, []interface{}{e.Line, e.RecordID, e.Date, e.Time, fmt.Sprint(e.Err)})
	}

	return []sheet{summary, missing, describe, factors, vehicles, roles, hourly, monthly, daily, boroughs, severity, inconsistent, skipped}
}

func categorySheet(name, label string, counts []aggregate.CategoryCount) sheet {
	sh := sheet{name: name, header: []string{"Rank", label, "Crashes"}, width: 36}
	for i, c := range counts {
		sh.rows = append(sh.rows, []interface{}{i + 1, c.Category, c.Count})
	}
	return sh
}
