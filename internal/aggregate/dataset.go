// Package aggregate turns an immutable set of collision records into the
// derived views behind every chart: missing values, top categories, role
// totals, hourly averages, monthly and daily series, borough counts and the
// geo-filtered subset.
//
// Every function here is a pure function of its Dataset argument.
package aggregate

import (
	"fmt"

	"github.com/banshee-data/collision.report/internal/collision"
)

// Dataset is a read-only view over a loaded record set. It is safe to share
// across aggregation calls and goroutines without synchronization.
type Dataset struct {
	records []collision.Record
}

// NewDataset deep-copies records into a new Dataset. Later changes to the
// caller's slice or to the coordinates it points at are not visible
// through the Dataset.
func NewDataset(records []collision.Record) *Dataset {
	return &Dataset{records: cloneRecords(records)}
}

// Len returns the number of records. A nil Dataset is empty.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Record returns a copy of the i-th record. Like a slice index it panics
// when i is outside [0, Len()), so every index panics on a nil Dataset.
func (d *Dataset) Record(i int) collision.Record {
	if i < 0 || i >= d.Len() {
		panic(fmt.Sprintf("aggregate: record index %d out of range [0:%d]", i, d.Len()))
	}
	return cloneRecord(d.records[i])
}

// Records returns a copy of every record in load order.
func (d *Dataset) Records() []collision.Record {
	if d == nil {
		return []collision.Record{}
	}
	return cloneRecords(d.records)
}

func cloneRecords(records []collision.Record) []collision.Record {
	cp := make([]collision.Record, len(records))
	for i := range records {
		cp[i] = cloneRecord(records[i])
	}
	return cp
}

// cloneRecord copies r including the coordinate values behind its
// pointers.
func cloneRecord(r collision.Record) collision.Record {
	if r.Latitude != nil {
		lat := *r.Latitude
		r.Latitude = &lat
	}
	if r.Longitude != nil {
		lon := *r.Longitude
		r.Longitude = &lon
	}
	return r
}

// each visits records in load order without copying them. fn must not
// modify the record.
func (d *Dataset) each(fn func(r *collision.Record)) {
	if d == nil {
		return
	}
	for i := range d.records {
		fn(&d.records[i])
	}
}
