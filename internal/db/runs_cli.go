package db

import (
	"context"
	"fmt"
	"io"
	"time"
)

// RunsCLI provides the operations behind the collision-runs command. It
// wraps DB methods so the command output can be tested.
type RunsCLI struct {
	DB     *DB
	Output io.Writer // where to write output (os.Stdout by default)
}

// NewRunsCLI creates a new RunsCLI instance.
func NewRunsCLI(db *DB, output io.Writer) *RunsCLI {
	return &RunsCLI{DB: db, Output: output}
}

// Run dispatches a subcommand and its arguments.
func (c *RunsCLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.PrintUsage()
		return fmt.Errorf("missing command")
	}
	switch args[0] {
	case "list":
		limit := 20
		if len(args) > 1 {
			n, err := parseLimit(args[1])
			if err != nil {
				return err
			}
			limit = n
		}
		_, err := c.List(ctx, limit)
		return err
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: collision-runs show <run-id> [view]")
		}
		view := ""
		if len(args) > 2 {
			view = args[2]
		}
		return c.Show(ctx, args[1], view)
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: collision-runs delete <run-id>")
		}
		return c.Delete(ctx, args[1])
	case "help":
		c.PrintUsage()
		return nil
	default:
		c.PrintUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// List prints the most recent runs and returns them.
func (c *RunsCLI) List(ctx context.Context, limit int) ([]*Run, error) {
	runs, err := c.DB.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(c.Output, "Analysis Runs\n")
	fmt.Fprintf(c.Output, "=============\n")
	if len(runs) == 0 {
		fmt.Fprintf(c.Output, "No runs recorded\n")
		return runs, nil
	}
	for _, r := range runs {
		fmt.Fprintf(c.Output, "%s  %-8s  %s  records=%d skipped=%d  %s\n",
			r.ID, r.Status, r.StartedAt.Format(time.RFC3339), r.Records, r.Skipped, r.Source)
	}
	return runs, nil
}

// Show prints one run and its stored aggregates, optionally a single view.
func (c *RunsCLI) Show(ctx context.Context, runID, view string) error {
	r, err := c.DB.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.Output, "Run %s\n", r.ID)
	fmt.Fprintf(c.Output, "  source:   %s\n", r.Source)
	fmt.Fprintf(c.Output, "  version:  %s\n", r.Version)
	fmt.Fprintf(c.Output, "  output:   %s\n", r.OutputDir)
	fmt.Fprintf(c.Output, "  status:   %s\n", r.Status)
	fmt.Fprintf(c.Output, "  started:  %s\n", r.StartedAt.Format(time.RFC3339))
	if r.FinishedAt != nil {
		fmt.Fprintf(c.Output, "  duration: %s\n", r.Duration().Round(time.Millisecond))
	}
	fmt.Fprintf(c.Output, "  records:  %d (skipped %d)\n", r.Records, r.Skipped)
	if r.Error != "" {
		fmt.Fprintf(c.Output, "  error:    %s\n", r.Error)
	}

	rows, err := c.DB.RunAggregates(ctx, runID, view)
	if err != nil {
		return err
	}
	current := ""
	for _, row := range rows {
		if row.View != current {
			current = row.View
			fmt.Fprintf(c.Output, "\n[%s]\n", current)
		}
		fmt.Fprintf(c.Output, "  %-45s %12.2f\n", row.Label, row.Value)
	}

	skipped, err := c.DB.SkippedRecords(ctx, runID)
	if err != nil {
		return err
	}
	if view == "" && len(skipped) > 0 {
		fmt.Fprintf(c.Output, "\n[skipped]\n")
		for _, e := range skipped {
			fmt.Fprintf(c.Output, "  %v\n", e)
		}
	}
	return nil
}

// Delete removes a run and its stored rows.
func (c *RunsCLI) Delete(ctx context.Context, runID string) error {
	if err := c.DB.DeleteRun(ctx, runID); err != nil {
		return err
	}
	fmt.Fprintf(c.Output, "Deleted run %s\n", runID)
	return nil
}

// PrintUsage prints the collision-runs usage.
func (c *RunsCLI) PrintUsage() {
	fmt.Fprintln(c.Output, "Usage: collision-runs [-db path] <command> [options]")
	fmt.Fprintln(c.Output, "")
	fmt.Fprintln(c.Output, "Commands:")
	fmt.Fprintln(c.Output, "  list [N]                 List the N most recent runs (default 20, 0 for all)")
	fmt.Fprintln(c.Output, "  show <run-id> [view]     Show a run and its stored aggregates")
	fmt.Fprintln(c.Output, "  delete <run-id>          Delete a run and its stored rows")
	fmt.Fprintln(c.Output, "  migrate <action>         Manage the schema (up, down, status)")
	fmt.Fprintln(c.Output, "")
	fmt.Fprintf(c.Output, "Views: %v\n", Views)
}
