package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/novadental/chairside/internal/clinic"
)

// slotGranularityMin is the spacing between candidate slot starts.
const slotGranularityMin = 30

// emergencyBufferMin is the minimum lead time before an emergency slot.
const emergencyBufferMin = 15

// DayAvailability is the result of a single-day availability computation.
type DayAvailability struct {
	Day        time.Time
	SlotStarts []int // minutes since midnight, ascending
	Blocked    []BlockedPeriod
}

// FreeSlots computes the bookable slot starts for a doctor on one clinic-local
// day. Blocked periods and existing bookings are read fresh on every call;
// correctness over latency.
func (s *Service) FreeSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) (*DayAvailability, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.free_slots")
	defer span.End()

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	doctor, err := s.repo.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return s.freeSlotsForDoctor(ctx, cfg, doctor, day, uuid.Nil)
}

// freeSlotsForDoctor is the shared core. excludeAppt removes one appointment
// from the conflict set (a reschedule must not collide with itself).
func (s *Service) freeSlotsForDoctor(ctx context.Context, cfg *clinic.Settings, doctor *Doctor, day time.Time, excludeAppt uuid.UUID) (*DayAvailability, error) {
	loc := cfg.Location()
	day = clinic.StartOfDay(day, loc)

	avail := &DayAvailability{Day: day}
	if !cfg.IsWorkingDay(day.Weekday()) {
		return avail, nil
	}

	openMin, closeMin := doctorHours(cfg, doctor)
	duration := cfg.SlotMinutes
	if duration <= 0 {
		return nil, fmt.Errorf("scheduling: invalid slot duration %d", duration)
	}

	blockedRows, blocked, booked, err := s.dayConflicts(ctx, doctor.ID, day, loc, excludeAppt)
	if err != nil {
		return nil, err
	}
	avail.Blocked = blockedRows

	for start := openMin; start+duration <= closeMin; start += slotGranularityMin {
		candidate := NewInterval(start, duration)
		if overlapsAny(candidate, blocked) || overlapsAny(candidate, booked) {
			continue
		}
		avail.SlotStarts = append(avail.SlotStarts, start)
	}
	return avail, nil
}

// NextSlots searches forward from the given day for up to max free slots
// within the horizon, skipping non-working days. Same-day slots already in
// the past are excluded.
func (s *Service) NextSlots(ctx context.Context, doctorID uuid.UUID, from time.Time, max, horizonDays int) ([]Slot, error) {
	if max <= 0 {
		max = 3
	}
	if horizonDays <= 0 {
		horizonDays = 7
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	doctor, err := s.repo.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location()
	now := s.now().In(loc)
	nowMin := clinic.MinutesOfDay(now, loc)

	var slots []Slot
	for offset := 0; offset < horizonDays && len(slots) < max; offset++ {
		day := clinic.StartOfDay(from, loc).AddDate(0, 0, offset)
		if !cfg.IsWorkingDay(day.Weekday()) {
			continue
		}
		avail, err := s.freeSlotsForDoctor(ctx, cfg, doctor, day, uuid.Nil)
		if err != nil {
			return nil, err
		}
		sameDay := clinic.SameClinicDay(day, now, loc)
		for _, start := range avail.SlotStarts {
			if sameDay && start <= nowMin {
				continue
			}
			slots = append(slots, Slot{DoctorID: doctor.ID, DoctorName: doctor.Name, Day: day, StartMin: start})
			if len(slots) == max {
				break
			}
		}
	}
	return slots, nil
}

// EmergencySlot finds the single earliest slot today across all active
// doctors, at least 15 minutes out, rounded up to the next half-hour
// boundary. Doctors are scanned in repository order and the first doctor
// holding the earliest time wins ties; this is deliberately not load-balanced.
func (s *Service) EmergencySlot(ctx context.Context) (*Slot, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.emergency_slot")
	defer span.End()

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()
	now := s.now().In(loc)
	today := clinic.StartOfDay(now, loc)

	if !cfg.IsWorkingDay(today.Weekday()) {
		return nil, ErrNoSlotAvailable
	}

	earliestMin := roundUpToGranularity(clinic.MinutesOfDay(now, loc) + emergencyBufferMin)

	doctors, err := s.repo.ListActiveDoctors(ctx)
	if err != nil {
		return nil, err
	}

	var best *Slot
	for i := range doctors {
		doctor := &doctors[i]
		avail, err := s.freeSlotsForDoctor(ctx, cfg, doctor, today, uuid.Nil)
		if err != nil {
			return nil, err
		}
		for _, start := range avail.SlotStarts {
			if start < earliestMin {
				continue
			}
			// Strict comparison keeps the first doctor on ties.
			if best == nil || start < best.StartMin {
				best = &Slot{DoctorID: doctor.ID, DoctorName: doctor.Name, Day: today, StartMin: start}
			}
			break
		}
	}
	if best == nil {
		return nil, ErrNoSlotAvailable
	}
	return best, nil
}

// dayConflicts loads the blocked and booked intervals for a doctor/day in
// clinic-local minutes, together with the raw blocked-period rows.
func (s *Service) dayConflicts(ctx context.Context, doctorID uuid.UUID, day time.Time, loc *time.Location, excludeAppt uuid.UUID) (blockedRows []BlockedPeriod, blocked, booked []Interval, err error) {
	blockedRows, err = s.repo.ListBlockedPeriods(ctx, doctorID, day)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, bp := range blockedRows {
		blocked = append(blocked, Interval{StartMin: bp.StartMin, EndMin: bp.EndMin})
	}

	dayEnd := day.AddDate(0, 0, 1)
	appts, err := s.repo.ListDayAppointments(ctx, doctorID, day, dayEnd)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, a := range appts {
		if excludeAppt != uuid.Nil && a.ID == excludeAppt {
			continue
		}
		startMin := clinic.MinutesOfDay(a.StartsAt, loc)
		booked = append(booked, NewInterval(startMin, a.DurationMin))
	}
	return blockedRows, blocked, booked, nil
}

func doctorHours(cfg *clinic.Settings, doctor *Doctor) (openMin, closeMin int) {
	openMin, closeMin = cfg.OpenMin, cfg.CloseMin
	if doctor.WorkStartMin != nil {
		openMin = *doctor.WorkStartMin
	}
	if doctor.WorkEndMin != nil {
		closeMin = *doctor.WorkEndMin
	}
	return openMin, closeMin
}

func roundUpToGranularity(minutes int) int {
	remainder := minutes % slotGranularityMin
	if remainder == 0 {
		return minutes
	}
	return minutes + slotGranularityMin - remainder
}
