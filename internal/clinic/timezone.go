package clinic

import (
	"fmt"
	"time"
)

// Location returns the *time.Location for a clinic timezone string.
// Falls back to UTC if the timezone is invalid or empty.
func Location(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MinutesOfDay converts an instant to clinic-local minutes since midnight.
func MinutesOfDay(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}

// AtMinutes builds the absolute instant for a clinic-local day at the given
// minutes since midnight.
func AtMinutes(day time.Time, minutes int, loc *time.Location) time.Time {
	local := day.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), minutes/60, minutes%60, 0, 0, loc)
}

// StartOfDay truncates an instant to clinic-local midnight.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// SameClinicDay reports whether two instants fall on the same clinic-local
// calendar date.
func SameClinicDay(a, b time.Time, loc *time.Location) bool {
	al, bl := a.In(loc), b.In(loc)
	return al.Year() == bl.Year() && al.YearDay() == bl.YearDay()
}

// ParseClinicDate parses a YYYY-MM-DD date as clinic-local midnight.
func ParseClinicDate(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("clinic: cannot parse date %q: %w", raw, err)
	}
	return t, nil
}

// ParseClinicTime parses an HH:MM wall-clock time into minutes since midnight.
func ParseClinicTime(raw string) (int, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("clinic: cannot parse time %q: %w", raw, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatMinutes renders minutes since midnight as HH:MM.
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
