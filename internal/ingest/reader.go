// Package ingest loads the NYC Motor Vehicle Collisions CSV export into
// collision records.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/collision.report/internal/collision"
	"github.com/banshee-data/collision.report/internal/fsutil"
	"github.com/banshee-data/collision.report/internal/monitoring"
)

// Options controls how rows are interpreted.
type Options struct {
	// Location is the zone CRASH DATE and CRASH TIME are recorded in.
	// Nil means UTC.
	Location *time.Location
	// SkipUnparseable drops rows with an unreadable timestamp and records
	// them in Result.Skipped. When false the first such row aborts the load.
	SkipUnparseable bool
}

// Result is the outcome of one load.
type Result struct {
	Records []collision.Record
	Skipped []*collision.TimestampParseError
	// Rows counts data rows read, skipped rows included.
	Rows int
	// UnknownBoroughs counts rows whose BOROUGH was outside the five known
	// boroughs. Those rows keep the value verbatim.
	UnknownBoroughs int
}

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

// cancelCheckInterval is how many rows are read between context checks.
const cancelCheckInterval = 4096

var countFields = []collision.Field{
	collision.FieldPersonsInjured,
	collision.FieldPersonsKilled,
	collision.FieldPedestriansInjured,
	collision.FieldPedestriansKilled,
	collision.FieldCyclistsInjured,
	collision.FieldCyclistsKilled,
	collision.FieldMotoristsInjured,
	collision.FieldMotoristsKilled,
}

var factorFields = [5]collision.Field{
	collision.FieldContributingFactor1,
	collision.FieldContributingFactor2,
	collision.FieldContributingFactor3,
	collision.FieldContributingFactor4,
	collision.FieldContributingFactor5,
}

var vehicleFields = [5]collision.Field{
	collision.FieldVehicleType1,
	collision.FieldVehicleType2,
	collision.FieldVehicleType3,
	collision.FieldVehicleType4,
	collision.FieldVehicleType5,
}

// ReadFile opens path on fsys and loads it with Read.
func ReadFile(ctx context.Context, fsys fsutil.FileSystem, path string, opts Options) (*Result, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	res, err := Read(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return res, nil
}

// Read parses a collision CSV stream. Columns are matched by header name,
// so column order and extra columns do not matter. Only CRASH DATE and
// CRASH TIME are required; any other absent column reads as empty.
func Read(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[collision.Field]int)
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if f, ok := collision.LookupField(name); ok {
			cols[f] = i
		}
	}
	for _, f := range []collision.Field{collision.FieldCrashDate, collision.FieldCrashTime} {
		if _, ok := cols[f]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, f.Column())
		}
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	res := &Result{}
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if res.Rows%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		res.Rows++

		cell := func(f collision.Field) string {
			i, ok := cols[f]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec, known, perr := parseRow(cell, line, loc)
		if perr != nil {
			if !opts.SkipUnparseable {
				return nil, perr
			}
			monitoring.Verbosef("skipping %v", perr)
			res.Skipped = append(res.Skipped, perr)
			continue
		}
		if !known {
			res.UnknownBoroughs++
		}
		res.Records = append(res.Records, rec)
	}

	if len(res.Skipped) > 0 {
		monitoring.Logf("ingest: skipped %d of %d rows with unparseable timestamps", len(res.Skipped), res.Rows)
	}
	return res, nil
}

func parseRow(cell func(collision.Field) string, line int, loc *time.Location) (collision.Record, bool, *collision.TimestampParseError) {
	var rec collision.Record

	id, ok := parseCount64(cell(collision.FieldCollisionID))
	if !ok {
		rec.Blank = rec.Blank.With(collision.FieldCollisionID)
	}
	rec.ID = id

	date, clock := cell(collision.FieldCrashDate), cell(collision.FieldCrashTime)
	wall, err := collision.ParseWallClock(date, clock)
	if err != nil {
		return rec, true, &collision.TimestampParseError{Line: line, RecordID: id, Date: date, Time: clock, Err: err}
	}
	rec.WallClock = wall
	rec.OccurredAt = collision.InLocation(wall, loc)

	borough, known := collision.ParseBorough(cell(collision.FieldBorough))
	rec.Borough = borough

	rec.ZipCode = cell(collision.FieldZipCode)
	rec.Latitude = parseCoord(cell(collision.FieldLatitude))
	rec.Longitude = parseCoord(cell(collision.FieldLongitude))
	rec.Location = cell(collision.FieldLocation)
	rec.OnStreet = cell(collision.FieldOnStreet)
	rec.CrossStreet = cell(collision.FieldCrossStreet)
	rec.OffStreet = cell(collision.FieldOffStreet)

	counts := [8]*int{
		&rec.Casualties.PersonsInjured,
		&rec.Casualties.PersonsKilled,
		&rec.Casualties.PedestriansInjured,
		&rec.Casualties.PedestriansKilled,
		&rec.Casualties.CyclistsInjured,
		&rec.Casualties.CyclistsKilled,
		&rec.Casualties.MotoristsInjured,
		&rec.Casualties.MotoristsKilled,
	}
	for i, f := range countFields {
		raw := cell(f)
		n, ok := parseCount64(raw)
		if !ok {
			if raw != "" {
				monitoring.Verbosef("line %d: %s %q is not a count, treating as missing", line, f.Column(), raw)
			}
			rec.Blank = rec.Blank.With(f)
			continue
		}
		*counts[i] = int(n)
	}

	for i := range factorFields {
		rec.ContributingFactors[i] = cell(factorFields[i])
		rec.VehicleTypes[i] = cell(vehicleFields[i])
	}
	return rec, known, nil
}

// parseCount64 accepts non-negative integers, including float-formatted
// ones such as "2.0" that some exports produce.
func parseCount64(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
