package collision

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// InvalidFieldError is returned when a caller names a field that is unknown
// or not usable for the requested operation.
type InvalidFieldError struct {
	Field string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %q: not a categorical collision field", e.Field)
}

// TimestampParseError describes a source row whose CRASH DATE / CRASH TIME
// could not be parsed. Ingestion collects these per row so the caller can
// skip the row or abort.
type TimestampParseError struct {
	// Line is the 1-based line in the source file, header included.
	Line     int
	RecordID int64
	Date     string
	Time     string
	Err      error
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("line %d (collision %d): cannot parse timestamp %q %q: %v", e.Line, e.RecordID, e.Date, e.Time, e.Err)
}

func (e *TimestampParseError) Unwrap() error {
	return e.Err
}

var errEmptyTimestamp = errors.New("empty date or time")

var dateLayouts = []string{
	"01/02/2006",
	"2006-01-02",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

var clockLayouts = []string{
	"15:04",
	"15:04:05",
}

// ParseWallClock combines a CRASH DATE and CRASH TIME cell into the wall
// clock as written, expressed in UTC so no zone rules can move it. Dates
// are accepted as MM/DD/YYYY or ISO 8601 (the time portion of an ISO date
// is ignored); times as H:MM or H:MM:SS.
func ParseWallClock(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, errEmptyTimestamp
	}

	var (
		day time.Time
		err error
	)
	for _, layout := range dateLayouts {
		if day, err = time.Parse(layout, date); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, err
	}

	var tod time.Time
	for _, layout := range clockLayouts {
		if tod, err = time.Parse(layout, clock); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, err
	}

	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC), nil
}

// ParseOccurredAt returns the instant of a CRASH DATE and CRASH TIME
// recorded in loc. A wall clock inside a spring-forward gap is normalised
// by time.Date, so its hour can differ from the written one; use
// ParseWallClock for calendar keys.
func ParseOccurredAt(date, clock string, loc *time.Location) (time.Time, error) {
	wall, err := ParseWallClock(date, clock)
	if err != nil {
		return time.Time{}, err
	}
	return InLocation(wall, loc), nil
}

// InLocation reads the wall clock of wall as a local time in loc.
func InLocation(wall time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)
}
