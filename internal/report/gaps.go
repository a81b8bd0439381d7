package report

import (
	"time"

	"github.com/banshee-data/collision.report/internal/aggregate"
)

// FillDailyGaps expands a sparse daily series into one value per calendar
// day from the first to the last date, with zero for days without
// crashes. The decomposition needs a regularly spaced series.
func FillDailyGaps(days []aggregate.DayCount) ([]time.Time, []float64) {
	if len(days) == 0 {
		return nil, nil
	}
	first, last := days[0].Date, days[len(days)-1].Date
	counts := make(map[time.Time]int, len(days))
	for _, d := range days {
		counts[d.Date] = d.Count
	}

	var (
		dates  []time.Time
		values []float64
	)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
		values = append(values, float64(counts[d]))
	}
	return dates, values
}
