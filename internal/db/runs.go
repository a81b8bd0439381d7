package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/collision.report/internal/aggregate"
	"github.com/banshee-data/collision.report/internal/collision"
)

// RunStatus is the lifecycle state of an analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one execution of the report pipeline.
type Run struct {
	ID         string
	Source     string
	Version    string
	OutputDir  string
	ConfigJSON string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Records    int
	Skipped    int
	Error      string
}

// Duration is the wall time of a finished run, zero while running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Aggregate views stored per run.
const (
	ViewMissing     = "missing"
	ViewTopFactors  = "top_factors"
	ViewTopVehicles = "top_vehicles"
	ViewRoles       = "roles"
	ViewHourly      = "hourly"
	ViewMonthly     = "monthly"
	ViewDaily       = "daily"
	ViewBoroughs    = "boroughs"
	ViewSeverity    = "severity"
)

// Views lists the stored views in display order.
var Views = []string{
	ViewMissing, ViewTopFactors, ViewTopVehicles, ViewRoles, ViewHourly,
	ViewMonthly, ViewDaily, ViewBoroughs, ViewSeverity,
}

// AggregateRow is one labelled value of a stored view.
type AggregateRow struct {
	View     string
	Position int
	Label    string
	Value    float64
}

// CreateRun inserts r in the running state. An empty ID is replaced with a
// new UUID.
func (db *DB) CreateRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = db.clock.Now()
	}
	if r.ConfigJSON == "" {
		r.ConfigJSON = "{}"
	}
	r.Status = RunStatusRunning

	_, err := db.ExecContext(ctx, `
		INSERT INTO analysis_runs (run_id, source, version, output_dir, config_json, status, started_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.Version, r.OutputDir, r.ConfigJSON, string(r.Status), unixNanos(r.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of r. A non-nil runErr marks the run
// failed.
func (db *DB) FinishRun(ctx context.Context, r *Run, runErr error) error {
	finished := db.clock.Now()
	r.FinishedAt = &finished
	r.Status = RunStatusComplete
	r.Error = ""
	if runErr != nil {
		r.Status = RunStatusFailed
		r.Error = runErr.Error()
	}

	res, err := db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET status = ?, finished_unix_nanos = ?, records = ?, skipped = ?, error = ?
		WHERE run_id = ?`,
		string(r.Status), unixNanos(finished), r.Records, r.Skipped, r.Error, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", r.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, r.ID)
	}
	return nil
}

// SaveSummary stores the chartable views of s under runID, replacing any
// rows already stored for it.
func (db *DB) SaveSummary(ctx context.Context, runID string, s *aggregate.Summary) error {
	rows := SummaryRows(s)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_aggregates WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear aggregates: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_aggregates (run_id, view, position, label, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, runID, row.View, row.Position, row.Label, row.Value); err != nil {
			return fmt.Errorf("failed to insert %s/%s: %w", row.View, row.Label, err)
		}
	}
	return tx.Commit()
}

// SummaryRows flattens the chartable views of s into labelled rows.
func SummaryRows(s *aggregate.Summary) []AggregateRow {
	var rows []AggregateRow
	add := func(view, label string, value float64) {
		pos := 0
		if n := len(rows); n > 0 && rows[n-1].View == view {
			pos = rows[n-1].Position + 1
		}
		rows = append(rows, AggregateRow{View: view, Position: pos, Label: label, Value: value})
	}

	for _, m := range s.Missing {
		add(ViewMissing, m.Column, m.Percent)
	}
	for _, c := range s.TopFactors {
		add(ViewTopFactors, c.Category, float64(c.Count))
	}
	for _, c := range s.TopVehicles {
		add(ViewTopVehicles, c.Category, float64(c.Count))
	}
	for _, r := range s.Roles {
		add(ViewRoles, r.Label, float64(r.Total))
	}
	for _, h := range s.Hourly {
		add(ViewHourly, fmt.Sprintf("%02d", h.Hour), h.Average)
	}
	for _, m := range s.Monthly {
		add(ViewMonthly, m.Label(), float64(m.Count))
	}
	for _, d := range s.Daily {
		add(ViewDaily, d.Date.Format(time.DateOnly), float64(d.Count))
	}
	for _, b := range s.Boroughs {
		add(ViewBoroughs, string(b.Borough), float64(b.Count))
	}
	for _, c := range s.Severity {
		add(ViewSeverity, c.Severity.String(), float64(c.Count))
	}
	return rows
}

// SaveSkipped stores the rows ingestion skipped for runID.
func (db *DB) SaveSkipped(ctx context.Context, runID string, skipped []*collision.TimestampParseError) error {
	if len(skipped) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO skipped_records (run_id, line, collision_id, crash_date, crash_time, error)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range skipped {
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		if _, err := stmt.ExecContext(ctx, runID, e.Line, e.RecordID, e.Date, e.Time, msg); err != nil {
			return fmt.Errorf("failed to insert skipped line %d: %w", e.Line, err)
		}
	}
	return tx.Commit()
}

const runColumns = `run_id, source, version, output_dir, config_json, status,
	started_unix_nanos, finished_unix_nanos, records, skipped, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r        Run
		status   string
		started  int64
		finished sql.NullInt64
	)
	if err := s.Scan(&r.ID, &r.Source, &r.Version, &r.OutputDir, &r.ConfigJSON, &status,
		&started, &finished, &r.Records, &r.Skipped, &r.Error); err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	r.StartedAt = fromUnixNanos(started)
	if finished.Valid {
		t := fromUnixNanos(finished.Int64)
		r.FinishedAt = &t
	}
	return &r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM analysis_runs
		ORDER BY started_unix_nanos DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run. Unknown ids yield ErrRunNotFound.
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return r, nil
}

// RunAggregates returns the stored rows of one view, or of every view when
// view is empty, in stored order.
func (db *DB) RunAggregates(ctx context.Context, runID, view string) ([]AggregateRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT view, position, label, value FROM run_aggregates
		WHERE run_id = ? AND (? = '' OR view = ?)
		ORDER BY view, position`, runID, view, view)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer rows.Close()

	var out []AggregateRow
	for rows.Next() {
		var a AggregateRow
		if err := rows.Scan(&a.View, &a.Position, &a.Label, &a.Value); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SkippedRecords returns the skipped source rows of a run in line order.
func (db *DB) SkippedRecords(ctx context.Context, runID string) ([]*collision.TimestampParseError, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT line, collision_id, crash_date, crash_time, error FROM skipped_records
		WHERE run_id = ? ORDER BY line`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query skipped records: %w", err)
	}
	defer rows.Close()

	var out []*collision.TimestampParseError
	for rows.Next() {
		var (
			e   collision.TimestampParseError
			msg string
		)
		if err := rows.Scan(&e.Line, &e.RecordID, &e.Date, &e.Time, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan skipped record: %w", err)
		}
		if msg != "" {
			e.Err = errors.New(msg)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything stored for it.
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// parseLimit is shared by the CLI for its optional count argument.
func parseLimit(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	return n, nil
}
