package aggregate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/collision.report/internal/collision"
)

// NumericSummary is the count, mean, spread and quartiles of one numeric
// field. Absent values are not counted. All statistics are NaN when Count
// is zero.
type NumericSummary struct {
	Field collision.Field
	Count int
	Mean  float64
	Std   float64
	Min   float64
	P25   float64
	P50   float64
	P75   float64
	Max   float64
}

// describedFields are summarised in this order.
var describedFields = []collision.Field{
	collision.FieldLatitude,
	collision.FieldLongitude,
	collision.FieldPersonsInjured,
	collision.FieldPersonsKilled,
	collision.FieldPedestriansInjured,
	collision.FieldPedestriansKilled,
	collision.FieldCyclistsInjured,
	collision.FieldCyclistsKilled,
	collision.FieldMotoristsInjured,
	collision.FieldMotoristsKilled,
	collision.FieldCollisionID,
}

// numericValue extracts a numeric field, reporting false when absent.
func numericValue(r *collision.Record, f collision.Field) (float64, bool) {
	if f.IsMissing(r) {
		return 0, false
	}
	c := r.Casualties
	switch f {
	case collision.FieldLatitude:
		return *r.Latitude, true
	case collision.FieldLongitude:
		return *r.Longitude, true
	case collision.FieldPersonsInjured:
		return float64(c.PersonsInjured), true
	case collision.FieldPersonsKilled:
		return float64(c.PersonsKilled), true
	case collision.FieldPedestriansInjured:
		return float64(c.PedestriansInjured), true
	case collision.FieldPedestriansKilled:
		return float64(c.PedestriansKilled), true
	case collision.FieldCyclistsInjured:
		return float64(c.CyclistsInjured), true
	case collision.FieldCyclistsKilled:
		return float64(c.CyclistsKilled), true
	case collision.FieldMotoristsInjured:
		return float64(c.MotoristsInjured), true
	case collision.FieldMotoristsKilled:
		return float64(c.MotoristsKilled), true
	case collision.FieldCollisionID:
		return float64(r.ID), true
	}
	return 0, false
}

// Describe summarises the coordinate, casualty and id columns. Std is the
// sample (n-1) standard deviation, so a single observation has an
// undefined Std. Quartiles interpolate linearly between order statistics.
func Describe(ds *Dataset) []NumericSummary {
	out := make([]NumericSummary, 0, len(describedFields))
	for _, f := range describedFields {
		var xs []float64
		ds.each(func(r *collision.Record) {
			if v, ok := numericValue(r, f); ok {
				xs = append(xs, v)
			}
		})
		out = append(out, summarize(f, xs))
	}
	return out
}

func summarize(f collision.Field, xs []float64) NumericSummary {
	s := NumericSummary{Field: f, Count: len(xs)}
	if len(xs) == 0 {
		nan := math.NaN()
		s.Mean, s.Std, s.Min, s.P25, s.P50, s.P75, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	s.Mean = stat.Mean(sorted, nil)
	s.Std = math.NaN()
	if len(sorted) > 1 {
		s.Std = stat.StdDev(sorted, nil)
	}
	s.Min = floats.Min(sorted)
	s.Max = floats.Max(sorted)
	s.P25 = linearQuantile(sorted, 0.25)
	s.P50 = linearQuantile(sorted, 0.50)
	s.P75 = linearQuantile(sorted, 0.75)
	return s
}

// linearQuantile interpolates between the order statistics around rank
// (n-1)p (Hyndman and Fan type 7). stat.LinInterp interpolates the
// empirical CDF and does not match it. sorted must be ascending and
// non-empty.
func linearQuantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}
