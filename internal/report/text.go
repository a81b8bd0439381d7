package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// summaryTopN bounds the rankings printed in the text summary.
const summaryTopN = 5

// WriteSummary prints a plain-text overview of a run.
func WriteSummary(w io.Writer, o *Outcome) error {
	s := o.Summary
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "NYC Motor Vehicle Collisions\n")
	fmt.Fprintf(tw, "============================\n")
	if o.RunID != "" {
		fmt.Fprintf(tw, "Run:\t%s\n", o.RunID)
	}
	fmt.Fprintf(tw, "Source:\t%s\n", o.Source)
	fmt.Fprintf(tw, "Rows read:\t%d\n", o.Rows)
	fmt.Fprintf(tw, "Records:\t%d\n", s.Records)
	fmt.Fprintf(tw, "Skipped rows:\t%d\n", len(o.Skipped))
	if s.Records > 0 {
		fmt.Fprintf(tw, "Period:\t%s to %s\n", s.First.Format(time.DateOnly), s.Last.Format(time.DateOnly))
	}
	fmt.Fprintf(tw, "With location:\t%d\n", len(s.Geo))
	fmt.Fprintf(tw, "Inconsistent casualty counts:\t%d\n", len(s.Inconsistencies))

	fmt.Fprintf(tw, "\nSeverity (located crashes)\n")
	for _, c := range s.Severity {
		fmt.Fprintf(tw, "  %s\t%d\n", c.Severity, c.Count)
	}

	fmt.Fprintf(tw, "\nTop contributing factors\n")
	for i, c := range s.TopFactors {
		if i == summaryTopN {
			break
		}
		fmt.Fprintf(tw, "  %s\t%d\n", c.Category, c.Count)
	}

	fmt.Fprintf(tw, "\nTop vehicle types\n")
	for i, c := range s.TopVehicles {
		if i == summaryTopN {
			break
		}
		fmt.Fprintf(tw, "  %s\t%d\n", c.Category, c.Count)
	}

	fmt.Fprintf(tw, "\nInjuries and deaths\n")
	for _, r := range s.Roles {
		fmt.Fprintf(tw, "  %s\t%d\n", r.Label, r.Total)
	}

	fmt.Fprintf(tw, "\nBoroughs\n")
	for _, b := range s.Boroughs {
		fmt.Fprintf(tw, "  %s\t%d\n", b.Borough, b.Count)
	}

	fmt.Fprintf(tw, "\nSeasonal decomposition\n")
	if o.Decomposition != nil {
		fmt.Fprintf(tw, "  %s model, period %d\n", o.Decomposition.Model, o.Decomposition.Period)
	} else {
		fmt.Fprintf(tw, "  skipped: %v\n", o.DecompositionErr)
	}

	fmt.Fprintf(tw, "\nArtifacts (%d)\n", len(o.Artifacts))
	for _, a := range o.Artifacts {
		fmt.Fprintf(tw, "  %s\n", a)
	}
	return tw.Flush()
}
