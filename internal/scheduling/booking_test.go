package scheduling

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var referencePattern = regexp.MustCompile(`^APT-[23456789ABCDEFGHJKLMNPQRSTUVWXYZ]{4}$`)

func TestBookHappyPath(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	notifier := &fakeNotifier{}
	calendar := &fakeCalendar{}
	svc := newTestServiceWith(repo, notifier, calendar)
	ctx := context.Background()

	conf, err := svc.Book(ctx, BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "+1 (202) 555-0147",
		PatientEmail: "maria@example.com",
		Service:      "cleaning",
		Source:       "web",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     14 * 60,
	})
	require.NoError(t, err)

	assert.Regexp(t, referencePattern, conf.Appointment.ReferenceCode)
	assert.Equal(t, "Dr. Chen", conf.DoctorName)
	assert.Equal(t, StatusScheduled, conf.Appointment.Status)
	assert.Equal(t, TypeScheduled, conf.Appointment.Type)
	assert.Equal(t, 30, conf.Appointment.DurationMin)
	assert.Equal(t, 14, conf.Appointment.StartsAt.In(testLocation()).Hour())

	// Phone stored normalized to digits.
	assert.Equal(t, "12025550147", conf.Patient.Phone)
	assert.Equal(t, 1, repo.patientCount())

	assert.Equal(t, []string{conf.Appointment.ReferenceCode}, notifier.booked)
}

func TestBookReusesExistingPatientAndBackfillsEmail(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Book(ctx, BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     10 * 60,
	})
	require.NoError(t, err)
	assert.Empty(t, first.Patient.Email)

	second, err := svc.Book(ctx, BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		PatientEmail: "maria@example.com",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     11 * 60,
	})
	require.NoError(t, err)

	assert.Equal(t, first.Patient.ID, second.Patient.ID)
	assert.Equal(t, "maria@example.com", second.Patient.Email)
	assert.Equal(t, 1, repo.patientCount())
}

func TestBookRejectsPlaceholderIdentityBeforeAnyWrite(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	cases := []struct {
		name  string
		phone string
	}{
		{"test", "2025550147"},
		{"Pending Pending", "2025550147"},
		{"x", "2025550147"},
		{"Maria Lopez", "12345"},
		{"Maria Lopez", "1234567890"},
		{"Maria Lopez", "5555555555"},
		{"Maria Lopez", "9876543210"},
	}
	for _, tc := range cases {
		_, err := svc.Book(ctx, BookingRequest{
			PatientName:  tc.name,
			PatientPhone: tc.phone,
			DoctorID:     doctorID,
			Day:          fixedNow,
			StartMin:     10 * 60,
		})
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "name=%q phone=%q", tc.name, tc.phone)
	}

	assert.Zero(t, repo.appointmentCount())
	assert.Zero(t, repo.patientCount())
}

func TestBookRejectsPastAndOutOfHours(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	base := BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		DoctorID:     doctorID,
	}

	past := base
	past.Day = fixedNow.AddDate(0, 0, -1)
	past.StartMin = 10 * 60
	_, err := svc.Book(ctx, past)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "date", ve.Field)

	// Same-day start already behind the clock.
	lateSvc := newTestService(repo, WithClock(func() time.Time {
		return time.Date(2026, 3, 2, 11, 0, 0, 0, testLocation())
	}))
	earlier := base
	earlier.Day = fixedNow
	earlier.StartMin = 10 * 60
	_, err = lateSvc.Book(ctx, earlier)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "time", ve.Field)

	var sue *SlotUnavailableError

	tooEarly := base
	tooEarly.Day = fixedNow
	tooEarly.StartMin = 8 * 60
	_, err = svc.Book(ctx, tooEarly)
	assert.ErrorAs(t, err, &sue)

	// Ends past close: 16:45 + 30min > 17:00.
	spillsOver := base
	spillsOver.Day = fixedNow
	spillsOver.StartMin = 16*60 + 45
	_, err = svc.Book(ctx, spillsOver)
	assert.ErrorAs(t, err, &sue)

	weekend := base
	weekend.Day = fixedNow.AddDate(0, 0, 5)
	weekend.StartMin = 10 * 60
	_, err = svc.Book(ctx, weekend)
	assert.ErrorAs(t, err, &sue)

	// Boundary: the last slot ends exactly at close and is valid.
	lastSlot := base
	lastSlot.Day = fixedNow
	lastSlot.StartMin = 16*60 + 30
	_, err = svc.Book(ctx, lastSlot)
	assert.NoError(t, err)
}

func TestBookRejectsBlockedPeriod(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	require.NoError(t, repo.CreateBlockedPeriod(ctx, &BlockedPeriod{
		DoctorID: doctorID,
		Day:      clinicDay(fixedNow),
		StartMin: 12 * 60,
		EndMin:   13 * 60,
	}))

	_, err := svc.Book(ctx, BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     12 * 60,
	})
	var sue *SlotUnavailableError
	require.ErrorAs(t, err, &sue)
	// A blocked period is a hard rejection, no alternatives offered.
	assert.Empty(t, sue.Alternatives)
	assert.Zero(t, repo.appointmentCount())
}

func TestBookConflictOffersAlternatives(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	req := BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     14 * 60,
	}
	_, err := svc.Book(ctx, req)
	require.NoError(t, err)

	req.PatientName = "James Park"
	req.PatientPhone = "2025550193"
	_, err = svc.Book(ctx, req)

	var sue *SlotUnavailableError
	require.ErrorAs(t, err, &sue)
	require.NotEmpty(t, sue.Alternatives)
	assert.LessOrEqual(t, len(sue.Alternatives), 3)
	for _, alt := range sue.Alternatives {
		assert.False(t, alt.StartMin == 14*60 && alt.Day.Equal(clinicDay(fixedNow)),
			"alternatives must not include the conflicting slot")
	}
	assert.Equal(t, 1, repo.appointmentCount())
}

func TestCancelVerificationAndIdempotence(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	conf, err := svc.Book(ctx, BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     10 * 60,
	})
	require.NoError(t, err)
	ref := conf.Appointment.ReferenceCode

	// Wrong phone suffix fails vaguely and changes nothing.
	_, err = svc.Cancel(ctx, ref, "555-9999")
	assert.ErrorIs(t, err, ErrVerificationFailed)
	got, _, lookupErr := svc.Lookup(ctx, ref, "5550147")
	require.NoError(t, lookupErr)
	assert.Equal(t, StatusScheduled, got.Status)

	// Unknown reference fails with the same error.
	_, err = svc.Cancel(ctx, "APT-ZZZZ", "5550147")
	assert.ErrorIs(t, err, ErrVerificationFailed)

	cancelled, err := svc.Cancel(ctx, ref, "5550147")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, ref, "5550147")
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestRescheduleMovesSlot(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	notifier := &fakeNotifier{}
	svc := newTestServiceWith(repo, notifier, nil)
	ctx := context.Background()

	conf, err := svc.Book(ctx, BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		PatientEmail: "maria@example.com",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     10 * 60,
	})
	require.NoError(t, err)
	ref := conf.Appointment.ReferenceCode

	moved, err := svc.Reschedule(ctx, ref, "5550147", fixedNow.AddDate(0, 0, 1), 15*60)
	require.NoError(t, err)
	assert.Equal(t, 15, moved.Appointment.StartsAt.In(testLocation()).Hour())
	assert.Equal(t, ref, moved.Appointment.ReferenceCode, "reference survives a reschedule")
	assert.Contains(t, notifier.resched, ref)

	// Old slot is free again, new slot is taken.
	avail, err := svc.FreeSlots(ctx, doctorID, fixedNow)
	require.NoError(t, err)
	assert.Contains(t, avail.SlotStarts, 10*60)
	avail, err = svc.FreeSlots(ctx, doctorID, fixedNow.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.NotContains(t, avail.SlotStarts, 15*60)
}

func TestRescheduleDoesNotConflictWithItself(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	conf, err := svc.Book(ctx, BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     10 * 60,
	})
	require.NoError(t, err)

	// Rebooking the very same slot must not collide with the original row.
	_, err = svc.Reschedule(ctx, conf.Appointment.ReferenceCode, "5550147", fixedNow, 10*60)
	assert.NoError(t, err)
}

func TestRescheduleIntoOccupiedSlotFails(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Book(ctx, BookingRequest{
		PatientName:  "James Park",
		PatientPhone: "2025550193",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     11 * 60,
	})
	require.NoError(t, err)

	conf, err := svc.Book(ctx, BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     10 * 60,
	})
	require.NoError(t, err)

	_, err = svc.Reschedule(ctx, conf.Appointment.ReferenceCode, "5550147", fixedNow, 11*60)
	var sue *SlotUnavailableError
	require.ErrorAs(t, err, &sue)

	// Original slot untouched by the failed attempt.
	got, _, err := svc.Lookup(ctx, conf.Appointment.ReferenceCode, "5550147")
	require.NoError(t, err)
	assert.Equal(t, 10, got.StartsAt.In(testLocation()).Hour())
}

func TestRescheduleCancelledFails(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	conf, err := svc.Book(ctx, BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     10 * 60,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, conf.Appointment.ReferenceCode, "5550147")
	require.NoError(t, err)

	_, err = svc.Reschedule(ctx, conf.Appointment.ReferenceCode, "5550147", fixedNow, 11*60)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestWalkInBypassesConflicts(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	// Saturate every slot for the only doctor.
	day := clinicDay(fixedNow)
	require.NoError(t, repo.CreateBlockedPeriod(ctx, &BlockedPeriod{
		DoctorID: doctorID, Day: day, StartMin: 9 * 60, EndMin: 17 * 60,
	}))

	_, err := svc.Book(ctx, BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     10 * 60,
	})
	var sue *SlotUnavailableError
	require.ErrorAs(t, err, &sue)

	conf, err := svc.BookWalkIn(ctx, WalkInRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		Day:          fixedNow,
		Period:       PeriodAfternoon,
	})
	require.NoError(t, err)

	assert.Nil(t, conf.Appointment.DoctorID)
	assert.Equal(t, TypeWalkIn, conf.Appointment.Type)
	assert.Equal(t, PeriodAfternoon, conf.Appointment.TimePeriod)
	assert.Regexp(t, referencePattern, conf.Appointment.ReferenceCode)
	assert.Equal(t, 14, conf.Appointment.StartsAt.In(testLocation()).Hour())
}

func TestWalkInDoesNotOccupySlots(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.BookWalkIn(ctx, WalkInRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		Day:          fixedNow,
		Period:       PeriodMorning,
	})
	require.NoError(t, err)

	avail, err := svc.FreeSlots(ctx, doctorID, fixedNow)
	require.NoError(t, err)
	assert.Len(t, avail.SlotStarts, 16)
}

func TestWalkInValidation(t *testing.T) {
	repo := newMemRepo()
	repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.BookWalkIn(ctx, WalkInRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		Day:          fixedNow,
		Period:       TimePeriod("midnight"),
	})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.BookWalkIn(ctx, WalkInRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		Day:          fixedNow.AddDate(0, 0, 5),
		Period:       PeriodMorning,
	})
	var sue *SlotUnavailableError
	assert.ErrorAs(t, err, &sue)

	_, err = svc.BookWalkIn(ctx, WalkInRequest{
		PatientName:  "test",
		PatientPhone: "2025550147",
		Day:          fixedNow,
		Period:       PeriodMorning,
	})
	assert.ErrorAs(t, err, &ve)
}

func TestWalkInRejectsElapsedPeriodToday(t *testing.T) {
	repo := newMemRepo()
	repo.addDoctor("Dr. Chen")
	// 16:00 on the same Monday: morning (10:00) and afternoon (14:00) have
	// already passed, evening (17:00, clamped to 16:30) has not.
	svc := newTestService(repo, WithClock(func() time.Time { return fixedNow.Add(8 * time.Hour) }))
	ctx := context.Background()

	for _, period := range []TimePeriod{PeriodMorning, PeriodAfternoon} {
		_, err := svc.BookWalkIn(ctx, WalkInRequest{
			PatientName:  "Maria Lopez",
			PatientPhone: "2025550147",
			Day:          fixedNow,
			Period:       period,
		})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "period %s", period)
		assert.Equal(t, "timePeriod", ve.Field)
	}

	conf, err := svc.BookWalkIn(ctx, WalkInRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		Day:          fixedNow,
		Period:       PeriodEvening,
	})
	require.NoError(t, err)
	assert.Equal(t, TypeWalkIn, conf.Appointment.Type)
}

func TestCalendarEventCreatedWhenDoctorConfigured(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	repo.mu.Lock()
	repo.doctors[0].GCalCredJSON = `{"type":"service_account"}`
	repo.doctors[0].GCalID = "chairside@group.calendar.google.com"
	repo.mu.Unlock()

	calendar := &fakeCalendar{}
	svc := newTestServiceWith(repo, nil, calendar)

	_, err := svc.Book(context.Background(), BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		Service:      "cleaning",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     10 * 60,
	})
	require.NoError(t, err)

	require.Len(t, calendar.created, 1)
	assert.Equal(t, "Maria Lopez", calendar.created[0].PatientName)
	assert.Equal(t, "cleaning", calendar.created[0].Service)
}

func TestBookingSurvivesNotifierPanic(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestServiceWith(repo, panickyNotifier{}, nil)

	conf, err := svc.Book(context.Background(), BookingRequest{
		PatientName:  "Maria Lopez",
		PatientPhone: "2025550147",
		PatientEmail: "maria@example.com",
		DoctorID:     doctorID,
		Day:          fixedNow,
		StartMin:     10 * 60,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, conf.Appointment.Status)
}

type panickyNotifier struct{}

func (panickyNotifier) AppointmentBooked(ctx context.Context, patient *Patient, appt *Appointment, doctorName string) {
	panic("smtp exploded")
}

func (panickyNotifier) AppointmentCancelled(ctx context.Context, patient *Patient, appt *Appointment, doctorName string) {
}

func (panickyNotifier) AppointmentRescheduled(ctx context.Context, patient *Patient, appt *Appointment, doctorName string, previousStart time.Time) {
}

func TestReferenceCodesDistinct(t *testing.T) {
	repo := newMemRepo()
	doctorID := repo.addDoctor("Dr. Chen")
	svc := newTestService(repo)
	ctx := context.Background()

	// Distinct references across a batch of bookings.
	seen := map[string]bool{}
	for i, start := range []int{9 * 60, 10 * 60, 11 * 60, 13 * 60, 15 * 60} {
		conf, err := svc.Book(ctx, BookingRequest{
			PatientName:  "Maria Lopez",
			PatientPhone: "2025550147",
			DoctorID:     doctorID,
			Day:          fixedNow,
			StartMin:     start,
		})
		require.NoError(t, err, "booking %d", i)
		assert.False(t, seen[conf.Appointment.ReferenceCode])
		seen[conf.Appointment.ReferenceCode] = true
	}
}
