// Package collision defines the crash record model shared by ingestion,
// aggregation and rendering.
package collision

import (
	"fmt"
	"strings"
	"time"
)

// Borough is one of the five NYC boroughs as written in the source data.
type Borough string

const (
	BoroughNone         Borough = ""
	BoroughBrooklyn     Borough = "BROOKLYN"
	BoroughQueens       Borough = "QUEENS"
	BoroughManhattan    Borough = "MANHATTAN"
	BoroughBronx        Borough = "BRONX"
	BoroughStatenIsland Borough = "STATEN ISLAND"
)

// Boroughs lists the known boroughs in the order the source documents them.
var Boroughs = []Borough{
	BoroughBrooklyn,
	BoroughQueens,
	BoroughManhattan,
	BoroughBronx,
	BoroughStatenIsland,
}

// ParseBorough normalises case and whitespace. The second return value is
// false for non-empty values outside the five known boroughs; those are
// returned verbatim (upper-cased) rather than dropped.
func ParseBorough(s string) (Borough, bool) {
	b := Borough(strings.ToUpper(strings.TrimSpace(s)))
	if b == BoroughNone {
		return BoroughNone, true
	}
	for _, known := range Boroughs {
		if b == known {
			return b, true
		}
	}
	return b, false
}

// Casualties holds the eight per-role injury and fatality counts.
type Casualties struct {
	PersonsInjured     int
	PersonsKilled      int
	PedestriansInjured int
	PedestriansKilled  int
	CyclistsInjured    int
	CyclistsKilled     int
	MotoristsInjured   int
	MotoristsKilled    int
}

// RoleInjured is the sum of pedestrian, cyclist and motorist injuries.
func (c Casualties) RoleInjured() int {
	return c.PedestriansInjured + c.CyclistsInjured + c.MotoristsInjured
}

// RoleKilled is the sum of pedestrian, cyclist and motorist fatalities.
func (c Casualties) RoleKilled() int {
	return c.PedestriansKilled + c.CyclistsKilled + c.MotoristsKilled
}

// Record is one reported crash.
type Record struct {
	ID         int64
	OccurredAt time.Time
	// WallClock is CRASH DATE and CRASH TIME as written, in UTC. Hour, day
	// and month keys come from it so a time inside a DST gap keeps its
	// recorded hour.
	WallClock time.Time
	Borough   Borough
	ZipCode   string

	// Latitude and Longitude are nil when the source cell was empty.
	// (0,0) is a sentinel for "unavailable", see HasCoordinates.
	Latitude  *float64
	Longitude *float64
	Location  string

	OnStreet    string
	CrossStreet string
	OffStreet   string

	ContributingFactors [5]string
	VehicleTypes        [5]string

	Casualties Casualties

	// Blank marks fields whose source cell was empty or unparseable and
	// which hold a substituted zero value.
	Blank FieldSet
}

// Wall returns the recorded wall clock. Records built without one fall
// back to OccurredAt in its own location.
func (r *Record) Wall() time.Time {
	if r.WallClock.IsZero() {
		return r.OccurredAt
	}
	return r.WallClock
}

// HasCoordinates reports whether the record has a usable location: both
// coordinates present and not the (0,0) sentinel.
func (r *Record) HasCoordinates() bool {
	if r.Latitude == nil || r.Longitude == nil {
		return false
	}
	return !(*r.Latitude == 0 && *r.Longitude == 0)
}

// Severity classifies the record by casualty outcome. Fatalities take
// precedence over injuries regardless of the injury count.
func (r *Record) Severity() Severity {
	switch {
	case r.Casualties.PersonsKilled > 0:
		return SeverityFatal
	case r.Casualties.PersonsInjured > 0:
		return SeverityInjury
	default:
		return SeverityNone
	}
}

// Category returns the value of a categorical field. It fails with
// *InvalidFieldError for fields that are not categorical.
func (r *Record) Category(f Field) (string, error) {
	info, ok := fieldInfo[f]
	if !ok || info.category == nil {
		return "", &InvalidFieldError{Field: string(f)}
	}
	return info.category(r), nil
}

// SetCategory overwrites the value of a categorical field.
func (r *Record) SetCategory(f Field, v string) error {
	switch f {
	case FieldBorough:
		r.Borough = Borough(v)
	case FieldZipCode:
		r.ZipCode = v
	case FieldOnStreet:
		r.OnStreet = v
	case FieldCrossStreet:
		r.CrossStreet = v
	case FieldOffStreet:
		r.OffStreet = v
	case FieldContributingFactor1, FieldContributingFactor2, FieldContributingFactor3,
		FieldContributingFactor4, FieldContributingFactor5:
		r.ContributingFactors[f.slot()] = v
	case FieldVehicleType1, FieldVehicleType2, FieldVehicleType3,
		FieldVehicleType4, FieldVehicleType5:
		r.VehicleTypes[f.slot()] = v
	default:
		return &InvalidFieldError{Field: string(f)}
	}
	return nil
}

func (r *Record) String() string {
	return fmt.Sprintf("collision %d at %s (%s)", r.ID, r.OccurredAt.Format(time.RFC3339), r.Borough)
}

// Severity is the FATAL / INJURY / NONE classification of a record.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityInjury
	SeverityFatal
)

// Severities lists every class from most to least severe.
var Severities = []Severity{SeverityFatal, SeverityInjury, SeverityNone}

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "FATAL"
	case SeverityInjury:
		return "INJURY"
	default:
		return "NONE"
	}
}
