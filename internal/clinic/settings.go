package clinic

import (
	"time"
)

// Settings is the singleton clinic configuration. It defines the universe of
// valid slot boundaries: open/close window, default appointment duration, and
// which weekdays the clinic operates.
type Settings struct {
	ClinicName  string
	Timezone    string
	OpenMin     int // minutes since midnight, clinic-local
	CloseMin    int
	SlotMinutes int
	WorkingDays []time.Weekday
	Services    []string
	DoctorLabel string // display string, e.g. "Dr." or "Dentist"
}

// DefaultSettings returns the configuration used when the settings row has
// not been created yet.
func DefaultSettings() *Settings {
	return &Settings{
		ClinicName:  "Nova Dental",
		Timezone:    "America/New_York",
		OpenMin:     9 * 60,
		CloseMin:    17 * 60,
		SlotMinutes: 30,
		WorkingDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		Services:    []string{"Checkup", "Cleaning", "Filling", "Root Canal", "Whitening"},
		DoctorLabel: "Dr.",
	}
}

// IsWorkingDay reports whether the clinic operates on the given weekday.
func (s *Settings) IsWorkingDay(day time.Weekday) bool {
	for _, d := range s.WorkingDays {
		if d == day {
			return true
		}
	}
	return false
}

// Location resolves the clinic timezone, falling back to UTC.
func (s *Settings) Location() *time.Location {
	return Location(s.Timezone)
}

// NextWorkingDays returns up to n upcoming working days starting from (and
// including) the given day.
func (s *Settings) NextWorkingDays(from time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	day := from
	// A clinic with an empty working-day set would loop forever.
	if len(s.WorkingDays) == 0 {
		return days
	}
	for len(days) < n {
		if s.IsWorkingDay(day.Weekday()) {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return days
}
