package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus tracks the appointment lifecycle. Cancelled appointments
// are soft-deleted: the row stays, the status flips, and conflict checks
// ignore it.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// AppointmentType distinguishes exact-slot bookings from walk-ins.
type AppointmentType string

const (
	TypeScheduled AppointmentType = "scheduled"
	TypeWalkIn    AppointmentType = "walk_in"
)

// TimePeriod is the coarse slot a walk-in targets instead of an exact time.
type TimePeriod string

const (
	PeriodMorning   TimePeriod = "morning"
	PeriodAfternoon TimePeriod = "afternoon"
	PeriodEvening   TimePeriod = "evening"
)

// Doctor is the bookable resource. Working hours inherit clinic settings
// unless overridden per doctor. Doctors are deactivated, never deleted, while
// appointments reference them.
type Doctor struct {
	ID           uuid.UUID
	Name         string
	Specialty    string
	Active       bool
	WorkStartMin *int // nil = inherit clinic open
	WorkEndMin   *int // nil = inherit clinic close
	GCalCredJSON string
	GCalID       string
	CreatedAt    time.Time
}

// Patient identity. Phone is the unique lookup key; at most one patient
// record per phone number.
type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	Email     string
	CreatedAt time.Time
}

// BlockedPeriod marks doctor-specific unavailability on one calendar day.
// Overlapping blocked rows are allowed; any blocking window touching a
// requested interval wins.
type BlockedPeriod struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	Day      time.Time // clinic-local midnight
	StartMin int
	EndMin   int
	Reason   string
}

// Appointment is a committed booking. DoctorID is nil for walk-ins, which
// never participate in per-slot conflict detection.
type Appointment struct {
	ID            uuid.UUID
	DoctorID      *uuid.UUID
	PatientID     uuid.UUID
	StartsAt      time.Time
	DurationMin   int
	Status        AppointmentStatus
	Service       string
	Source        string
	ReferenceCode string
	GCalEventID   string
	Type          AppointmentType
	TimePeriod    TimePeriod
	CreatedAt     time.Time
}

// EndsAt returns the exclusive end instant of the appointment interval.
func (a *Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMin) * time.Minute)
}

// Slot is one bookable candidate: a doctor, a clinic-local day, and a start
// offset in minutes since midnight.
type Slot struct {
	DoctorID   uuid.UUID
	DoctorName string
	Day        time.Time
	StartMin   int
}
