package clinic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Location(""))
	assert.Equal(t, time.UTC, Location("Not/AZone"))

	ny := Location("America/New_York")
	assert.Equal(t, "America/New_York", ny.String())
}

func TestMinutesOfDayRoundTrip(t *testing.T) {
	loc := Location("America/New_York")
	day, err := ParseClinicDate("2025-03-10", loc)
	require.NoError(t, err)

	at := AtMinutes(day, 14*60+30, loc)
	assert.Equal(t, 14*60+30, MinutesOfDay(at, loc))
	assert.True(t, SameClinicDay(day, at, loc))
}

func TestMinutesOfDayAcrossTimezones(t *testing.T) {
	loc := Location("America/New_York")
	// 19:00 UTC on a standard-time date is 14:00 in New York.
	utc := time.Date(2025, 3, 3, 19, 0, 0, 0, time.UTC)
	assert.Equal(t, 14*60, MinutesOfDay(utc, loc))
}

func TestParseClinicTime(t *testing.T) {
	min, err := ParseClinicTime("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*60+30, min)

	_, err = ParseClinicTime("half past nine")
	assert.Error(t, err)
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "09:00", FormatMinutes(9*60))
	assert.Equal(t, "16:30", FormatMinutes(16*60+30))
}

func TestSettingsWorkingDays(t *testing.T) {
	cfg := DefaultSettings()
	assert.True(t, cfg.IsWorkingDay(time.Monday))
	assert.False(t, cfg.IsWorkingDay(time.Sunday))
}

func TestNextWorkingDaysSkipsWeekend(t *testing.T) {
	cfg := DefaultSettings()
	loc := cfg.Location()
	// 2025-03-07 is a Friday.
	friday, err := ParseClinicDate("2025-03-07", loc)
	require.NoError(t, err)

	days := cfg.NextWorkingDays(friday, 3)
	require.Len(t, days, 3)
	assert.Equal(t, time.Friday, days[0].Weekday())
	assert.Equal(t, time.Monday, days[1].Weekday())
	assert.Equal(t, time.Tuesday, days[2].Weekday())
}

func TestNextWorkingDaysEmptySet(t *testing.T) {
	cfg := &Settings{}
	assert.Empty(t, cfg.NextWorkingDays(time.Now(), 3))
}
