package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("RealClock.Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2024, 10, 7, 9, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", clock.Now(), start)
	}

	clock.Advance(90 * time.Second)
	if got := clock.Since(start); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}

	later := start.Add(24 * time.Hour)
	clock.Set(later)
	if !clock.Now().Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", clock.Now(), later)
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("UTC")
	if err != nil || loc != time.UTC {
		t.Fatalf("LoadLocation(UTC) = %v, %v", loc, err)
	}

	if !IsTimezoneValid(DefaultTimezone) {
		t.Skip("tz database unavailable")
	}
	loc, err = LoadLocation("")
	if err != nil {
		t.Fatalf("LoadLocation(\"\") error: %v", err)
	}
	if loc.String() != DefaultTimezone {
		t.Errorf("LoadLocation(\"\") = %s, want %s", loc, DefaultTimezone)
	}

	if _, err := LoadLocation("Mars/Olympus_Mons"); err == nil {
		t.Error("expected error for unknown timezone")
	}
	if IsTimezoneValid("") {
		t.Error("empty timezone should be invalid")
	}
}
