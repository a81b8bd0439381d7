package aggregate

import (
	"time"

	"github.com/banshee-data/collision.report/internal/collision"
)

// Fields charted as top-N categories.
const (
	FactorField  = collision.FieldContributingFactor1
	VehicleField = collision.FieldVehicleType1
)

// Options controls the parameters of Summarize.
type Options struct {
	// TopN bounds the contributing-factor and vehicle-type rankings.
	TopN int
	// SampleSize and SampleSeed select the severity-map subset of the
	// geo-filtered records. SampleSize <= 0 keeps every geo record.
	SampleSize int
	SampleSeed uint64
}

// DefaultOptions mirrors the values the published charts were built with.
func DefaultOptions() Options {
	return Options{TopN: 10, SampleSize: 1000, SampleSeed: 42}
}

// Summary bundles every derived view of one Dataset.
type Summary struct {
	Records int
	First   time.Time
	Last    time.Time

	Missing     []MissingValue
	Describe    []NumericSummary
	TopFactors  []CategoryCount
	TopVehicles []CategoryCount
	Roles       []RoleTotal
	Hourly      []HourAverage
	Monthly     []MonthCount
	Daily       []DayCount
	Boroughs    []BoroughCount

	Geo            []collision.Record
	SeveritySample []collision.Record
	Severity       []SeverityCount

	Inconsistencies []Inconsistency
}

// Summarize computes every view in one pass over the public operations.
func Summarize(ds *Dataset, opts Options) (*Summary, error) {
	factors, err := TopCategories(ds, FactorField, opts.TopN)
	if err != nil {
		return nil, err
	}
	vehicles, err := TopCategories(ds, VehicleField, opts.TopN)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Records:         ds.Len(),
		Missing:         MissingValueReport(ds),
		Describe:        Describe(ds),
		TopFactors:      factors,
		TopVehicles:     vehicles,
		Roles:           RoleTotals(ds),
		Hourly:          HourlyAverage(ds),
		Monthly:         MonthlySeries(ds),
		Daily:           DailySeries(ds),
		Boroughs:        BoroughCounts(ds),
		Geo:             GeoFiltered(ds),
		Inconsistencies: CasualtyInconsistencies(ds),
	}
	s.SeveritySample = Sample(s.Geo, opts.SampleSize, opts.SampleSeed)
	s.Severity = SeverityCounts(s.Geo)

	ds.each(func(r *collision.Record) {
		if s.First.IsZero() || r.OccurredAt.Before(s.First) {
			s.First = r.OccurredAt
		}
		if r.OccurredAt.After(s.Last) {
			s.Last = r.OccurredAt
		}
	})
	return s, nil
}
