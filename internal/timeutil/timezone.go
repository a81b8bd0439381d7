package timeutil

import (
	"fmt"
	"time"
	// Embedded zone database so America/New_York resolves on hosts
	// without /usr/share/zoneinfo.
	_ "time/tzdata"
)

// DefaultTimezone is the zone the NYC collision export records local
// crash times in.
const DefaultTimezone = "America/New_York"

// IsTimezoneValid checks if the given timezone is valid by attempting to load it from the tz database
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// LoadLocation resolves tz, treating an empty name as DefaultTimezone.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	if tz == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return loc, nil
}
