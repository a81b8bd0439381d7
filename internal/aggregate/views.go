package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/collision.report/internal/collision"
)

// MissingValue is one row of the missing-value report.
type MissingValue struct {
	Field   collision.Field
	Column  string
	Count   int
	Percent float64
}

// MissingValueReport counts empty cells per field. Percent always uses the
// full record count as denominator. Rows are sorted by Percent descending;
// equal percentages keep schema order.
func MissingValueReport(ds *Dataset) []MissingValue {
	total := ds.Len()
	out := make([]MissingValue, 0, len(collision.Fields))
	for _, f := range collision.Fields {
		count := 0
		ds.each(func(r *collision.Record) {
			if f.IsMissing(r) {
				count++
			}
		})
		pct := 0.0
		if total > 0 {
			pct = float64(count) / float64(total) * 100
		}
		out = append(out, MissingValue{Field: f, Column: f.Column(), Count: count, Percent: pct})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Percent > out[j].Percent
	})
	return out
}

// CategoryCount is one bar of a top-N chart.
type CategoryCount struct {
	Category string
	Count    int
}

// TopCategories returns the n most frequent non-empty values of a
// categorical field, highest count first. Ties keep the order in which the
// values were first seen. Labels are compared verbatim; near-duplicate
// spellings stay separate unless the Dataset was passed through Normalize.
func TopCategories(ds *Dataset, field collision.Field, n int) ([]CategoryCount, error) {
	if !field.IsCategorical() {
		return nil, &collision.InvalidFieldError{Field: string(field)}
	}
	if n <= 0 {
		return []CategoryCount{}, nil
	}

	counts := make(map[string]int)
	var order []string
	var err error
	ds.each(func(r *collision.Record) {
		if err != nil {
			return
		}
		v, cerr := r.Category(field)
		if cerr != nil {
			err = cerr
			return
		}
		if v == "" {
			return
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	})
	if err != nil {
		return nil, err
	}

	out := make([]CategoryCount, 0, len(order))
	for _, v := range order {
		out = append(out, CategoryCount{Category: v, Count: counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Role labels, in the order they are charted.
const (
	LabelPedestrianInjuries = "Pedestrian Injuries"
	LabelCyclistInjuries    = "Cyclist Injuries"
	LabelMotoristInjuries   = "Motorist Injuries"
	LabelPedestrianDeaths   = "Pedestrian Deaths"
	LabelCyclistDeaths      = "Cyclist Deaths"
	LabelMotoristDeaths     = "Motorist Deaths"
)

// RoleTotal is the summed casualty count for one role and outcome.
type RoleTotal struct {
	Label string
	Total int
}

// RoleTotals sums the six per-role casualty counts over the dataset.
func RoleTotals(ds *Dataset) []RoleTotal {
	var c collision.Casualties
	ds.each(func(r *collision.Record) {
		c.PedestriansInjured += r.Casualties.PedestriansInjured
		c.CyclistsInjured += r.Casualties.CyclistsInjured
		c.MotoristsInjured += r.Casualties.MotoristsInjured
		c.PedestriansKilled += r.Casualties.PedestriansKilled
		c.CyclistsKilled += r.Casualties.CyclistsKilled
		c.MotoristsKilled += r.Casualties.MotoristsKilled
	})
	return []RoleTotal{
		{LabelPedestrianInjuries, c.PedestriansInjured},
		{LabelCyclistInjuries, c.CyclistsInjured},
		{LabelMotoristInjuries, c.MotoristsInjured},
		{LabelPedestrianDeaths, c.PedestriansKilled},
		{LabelCyclistDeaths, c.CyclistsKilled},
		{LabelMotoristDeaths, c.MotoristsKilled},
	}
}

// HourAverage is the average crash count for one hour of the day.
type HourAverage struct {
	Hour    int
	Count   int
	Average float64
}

// HourlyAverage returns 24 entries, one per hour 0-23. Each average is the
// hour's record count divided by the number of distinct hours that have at
// least one record. That denominator is not a day count; it reproduces the
// established analysis output and must not be changed to a per-day mean
// without sign-off.
func HourlyAverage(ds *Dataset) []HourAverage {
	var counts [24]int
	ds.each(func(r *collision.Record) {
		counts[r.Wall().Hour()]++
	})

	distinct := 0
	for _, c := range counts {
		if c > 0 {
			distinct++
		}
	}

	out := make([]HourAverage, 24)
	for h, c := range counts {
		out[h] = HourAverage{Hour: h, Count: c}
		if distinct > 0 {
			out[h].Average = float64(c) / float64(distinct)
		}
	}
	return out
}

// MonthCount is the number of crashes in one calendar month.
type MonthCount struct {
	Year  int
	Month time.Month
	Count int
}

// Label formats the month as YYYY-MM.
func (m MonthCount) Label() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Start returns midnight UTC on the first day of the month.
func (m MonthCount) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// MonthlySeries counts crashes per calendar month present in the data,
// oldest first. Months without crashes are omitted, not zero-filled.
func MonthlySeries(ds *Dataset) []MonthCount {
	type key struct {
		year  int
		month time.Month
	}
	counts := make(map[key]int)
	ds.each(func(r *collision.Record) {
		wall := r.Wall()
		counts[key{wall.Year(), wall.Month()}]++
	})

	out := make([]MonthCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, MonthCount{Year: k.year, Month: k.month, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// DayCount is the number of crashes on one calendar date.
type DayCount struct {
	// Date is midnight UTC of the local calendar date the crash occurred on.
	Date  time.Time
	Count int
}

// DailySeries counts crashes per calendar date present in the data, oldest
// first. Dates without crashes are omitted; filling them is the caller's
// job (see report.FillDailyGaps).
func DailySeries(ds *Dataset) []DayCount {
	counts := make(map[time.Time]int)
	ds.each(func(r *collision.Record) {
		y, m, d := r.Wall().Date()
		counts[time.Date(y, m, d, 0, 0, 0, 0, time.UTC)]++
	})

	out := make([]DayCount, 0, len(counts))
	for day, c := range counts {
		out = append(out, DayCount{Date: day, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// BoroughCount is the number of crashes recorded in one borough.
type BoroughCount struct {
	Borough collision.Borough
	Count   int
}

// BoroughCounts counts crashes per borough, largest first, ties by name.
// Records without a borough are excluded.
func BoroughCounts(ds *Dataset) []BoroughCount {
	counts := make(map[collision.Borough]int)
	ds.each(func(r *collision.Record) {
		if r.Borough != collision.BoroughNone {
			counts[r.Borough]++
		}
	})

	out := make([]BoroughCount, 0, len(counts))
	for b, c := range counts {
		out = append(out, BoroughCount{Borough: b, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Borough < out[j].Borough
	})
	return out
}

// GeoFiltered returns the records that have usable coordinates, in load
// order. Records with a missing coordinate or the (0,0) sentinel are dropped.
// The result is a copy; changing it does not affect ds.
func GeoFiltered(ds *Dataset) []collision.Record {
	var out []collision.Record
	ds.each(func(r *collision.Record) {
		if r.HasCoordinates() {
			out = append(out, cloneRecord(*r))
		}
	})
	return out
}

// SeverityClass classifies a record as FATAL, INJURY or NONE.
func SeverityClass(r *collision.Record) collision.Severity {
	return r.Severity()
}

// SeverityCount is the number of records in one severity class.
type SeverityCount struct {
	Severity collision.Severity
	Count    int
}

// SeverityCounts tallies records by severity, most severe first.
func SeverityCounts(records []collision.Record) []SeverityCount {
	var counts [3]int
	for i := range records {
		counts[SeverityClass(&records[i])]++
	}
	out := make([]SeverityCount, 0, len(collision.Severities))
	for _, s := range collision.Severities {
		out = append(out, SeverityCount{Severity: s, Count: counts[s]})
	}
	return out
}

// Inconsistency is a record whose person totals are lower than the sum of
// its per-role counts. The source does not enforce the relationship, so
// these are reported rather than corrected.
type Inconsistency struct {
	RecordID       int64
	PersonsInjured int
	RoleInjured    int
	PersonsKilled  int
	RoleKilled     int
}

// CasualtyInconsistencies lists records violating
// persons >= pedestrians + cyclists + motorists for injuries or fatalities.
func CasualtyInconsistencies(ds *Dataset) []Inconsistency {
	var out []Inconsistency
	ds.each(func(r *collision.Record) {
		c := r.Casualties
		if c.PersonsInjured < c.RoleInjured() || c.PersonsKilled < c.RoleKilled() {
			out = append(out, Inconsistency{
				RecordID:       r.ID,
				PersonsInjured: c.PersonsInjured,
				RoleInjured:    c.RoleInjured(),
				PersonsKilled:  c.PersonsKilled,
				RoleKilled:     c.RoleKilled(),
			})
		}
	})
	return out
}
