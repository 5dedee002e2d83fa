package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/novadental/chairside/internal/clinic"
)

// BookingRequest carries a fully resolved booking attempt: the day is
// clinic-local midnight and the start is minutes since midnight.
type BookingRequest struct {
	PatientName  string
	PatientPhone string
	PatientEmail string
	Service      string
	Notes        string
	Source       string
	DoctorID     uuid.UUID
	Day          time.Time
	StartMin     int
}

// WalkInRequest books an unassigned visit for a coarse period of the day.
type WalkInRequest struct {
	PatientName  string
	PatientPhone string
	PatientEmail string
	Service      string
	Source       string
	Day          time.Time
	Period       TimePeriod
}

// BookingConfirmation is the successful outcome of a booking transaction.
type BookingConfirmation struct {
	Appointment *Appointment
	Patient     *Patient
	DoctorName  string
}

// Book validates and commits a scheduled appointment.
//
// Validation is fail-fast in this order: patient identity plausibility,
// temporal validity, clinic envelope and working day, doctor blocked periods,
// peer-booking conflict. The peer conflict check here is the authoritative
// one; any earlier availability check was advisory and may be stale.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*BookingConfirmation, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.book")
	defer span.End()
	span.SetAttributes(attribute.String("chairside.doctor_id", req.DoctorID.String()))

	if err := validateIdentity(req.PatientName, req.PatientPhone); err != nil {
		return nil, err
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	doctor, err := s.repo.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location()
	day := clinic.StartOfDay(req.Day, loc)
	startsAt := clinic.AtMinutes(day, req.StartMin, loc)

	if err := s.validateSlot(ctx, cfg, doctor, day, req.StartMin, startsAt, uuid.Nil); err != nil {
		return nil, err
	}

	patient, err := s.findOrCreatePatient(ctx, req.PatientName, req.PatientPhone, req.PatientEmail)
	if err != nil {
		return nil, err
	}

	doctorID := doctor.ID
	appt := &Appointment{
		DoctorID:    &doctorID,
		PatientID:   patient.ID,
		StartsAt:    startsAt,
		DurationMin: cfg.SlotMinutes,
		Status:      StatusScheduled,
		Service:     req.Service,
		Source:      req.Source,
		Type:        TypeScheduled,
	}
	if err := s.insertWithFreshReference(ctx, appt); err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		"reference", appt.ReferenceCode,
		"doctor_id", doctor.ID,
		"starts_at", startsAt,
	)

	s.dispatchBookedEffects(patient, appt, doctor, req.Notes, cfg.Timezone)

	return &BookingConfirmation{Appointment: appt, Patient: patient, DoctorName: doctor.Name}, nil
}

// BookWalkIn commits a walk-in visit. Identity and day-level validation
// apply, but a walk-in carries no doctor and a representative time only, so
// blocked-period and peer-conflict checks are skipped entirely: a walk-in
// never blocks, and is never blocked by, slot conflict detection.
func (s *Service) BookWalkIn(ctx context.Context, req WalkInRequest) (*BookingConfirmation, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.book_walkin")
	defer span.End()

	if err := validateIdentity(req.PatientName, req.PatientPhone); err != nil {
		return nil, err
	}
	switch req.Period {
	case PeriodMorning, PeriodAfternoon, PeriodEvening:
	default:
		return nil, &ValidationError{Field: "timePeriod", Reason: "must be morning, afternoon or evening"}
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()
	day := clinic.StartOfDay(req.Day, loc)

	now := s.now()
	if day.Before(clinic.StartOfDay(now, loc)) {
		return nil, &ValidationError{Field: "date", Reason: "requested date is in the past"}
	}
	if !cfg.IsWorkingDay(day.Weekday()) {
		return nil, &SlotUnavailableError{Reason: fmt.Sprintf("the clinic is closed on %s", day.Weekday())}
	}
	startsAt := clinic.AtMinutes(day, representativeMinute(cfg, req.Period), loc)
	if clinic.SameClinicDay(day, now, loc) && !startsAt.After(now) {
		return nil, &ValidationError{Field: "timePeriod", Reason: "that period has already passed today"}
	}

	patient, err := s.findOrCreatePatient(ctx, req.PatientName, req.PatientPhone, req.PatientEmail)
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		PatientID:   patient.ID,
		StartsAt:    startsAt,
		DurationMin: cfg.SlotMinutes,
		Status:      StatusScheduled,
		Service:     req.Service,
		Source:      req.Source,
		Type:        TypeWalkIn,
		TimePeriod:  req.Period,
	}
	if err := s.insertWithFreshReference(ctx, appt); err != nil {
		return nil, err
	}

	s.logger.Info("walk-in booked", "reference", appt.ReferenceCode, "period", req.Period)

	s.dispatchBookedEffects(patient, appt, nil, "", cfg.Timezone)

	return &BookingConfirmation{Appointment: appt, Patient: patient}, nil
}

// Lookup verifies reference code + phone suffix and returns the appointment
// snapshot with its patient.
func (s *Service) Lookup(ctx context.Context, referenceCode, phoneSuffix string) (*Appointment, *Patient, error) {
	appt, patient, err := s.verify(ctx, referenceCode, phoneSuffix)
	if err != nil {
		return nil, nil, err
	}
	return appt, patient, nil
}

// Cancel soft-deletes an appointment after two-factor verification.
// Cancelling an already-cancelled appointment fails without changing state.
func (s *Service) Cancel(ctx context.Context, referenceCode, phoneSuffix string) (*Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.cancel")
	defer span.End()

	appt, patient, err := s.verify(ctx, referenceCode, phoneSuffix)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if appt.Status != StatusScheduled {
		return nil, fmt.Errorf("scheduling: cannot cancel a %s appointment", appt.Status)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with a concurrent cancel.
			return nil, ErrAlreadyCancelled
		}
		return nil, err
	}

	s.logger.Info("appointment cancelled", "reference", updated.ReferenceCode)

	doctor := s.doctorForAppointment(ctx, updated)
	s.runSideEffect("cancel_calendar_event", func(ctx context.Context) {
		s.removeCalendarEvent(ctx, doctor, updated.GCalEventID)
	})
	if s.notifier != nil && patient.Email != "" {
		appt := *updated
		s.runSideEffect("cancel_email", func(ctx context.Context) {
			s.notifier.AppointmentCancelled(ctx, patient, &appt, doctorName(doctor))
		})
	}
	return updated, nil
}

// Reschedule moves a verified appointment to a new slot. Temporal, envelope,
// blocked-period, and peer-conflict checks are re-run against the new slot
// (the original appointment is excluded from the conflict set); patient
// identity is not re-validated because verification already proved it. The
// external calendar event is deleted and recreated rather than updated.
func (s *Service) Reschedule(ctx context.Context, referenceCode, phoneSuffix string, newDay time.Time, newStartMin int) (*BookingConfirmation, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.reschedule")
	defer span.End()

	appt, patient, err := s.verify(ctx, referenceCode, phoneSuffix)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if appt.DoctorID == nil {
		return nil, &ValidationError{Field: "referenceCode", Reason: "walk-in visits cannot be rescheduled to an exact slot"}
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	doctor, err := s.repo.GetDoctor(ctx, *appt.DoctorID)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location()
	day := clinic.StartOfDay(newDay, loc)
	startsAt := clinic.AtMinutes(day, newStartMin, loc)
	previousStart := appt.StartsAt

	if err := s.validateSlot(ctx, cfg, doctor, day, newStartMin, startsAt, appt.ID); err != nil {
		return nil, err
	}

	// Delete + recreate, not update-in-place.
	s.removeCalendarEventSync(ctx, doctor, appt.GCalEventID)

	newEventID := ""
	if s.calendar != nil && doctor.GCalCredJSON != "" && doctor.GCalID != "" {
		id, err := s.calendar.CreateEvent(ctx, doctor.GCalCredJSON, doctor.GCalID, CalendarEvent{
			PatientName: patient.Name,
			DoctorName:  doctor.Name,
			Service:     appt.Service,
			StartsAt:    startsAt,
			DurationMin: appt.DurationMin,
			Timezone:    cfg.Timezone,
		})
		if err != nil {
			s.logger.Error("calendar recreate failed during reschedule", "error", err, "reference", appt.ReferenceCode)
		} else {
			newEventID = id
		}
	}

	if err := s.repo.RescheduleAppointment(ctx, appt.ID, startsAt, newEventID); err != nil {
		return nil, err
	}
	appt.StartsAt = startsAt
	appt.GCalEventID = newEventID

	s.logger.Info("appointment rescheduled", "reference", appt.ReferenceCode, "starts_at", startsAt)

	if s.notifier != nil && patient.Email != "" {
		apptCopy := *appt
		s.runSideEffect("reschedule_email", func(ctx context.Context) {
			s.notifier.AppointmentRescheduled(ctx, patient, &apptCopy, doctor.Name, previousStart)
		})
	}
	return &BookingConfirmation{Appointment: appt, Patient: patient, DoctorName: doctor.Name}, nil
}

// validateSlot runs validation steps 2-5: temporal, envelope, working day,
// blocked periods, peer conflict. On a peer conflict it embeds up to three
// alternative slots in the returned error.
func (s *Service) validateSlot(ctx context.Context, cfg *clinic.Settings, doctor *Doctor, day time.Time, startMin int, startsAt time.Time, excludeAppt uuid.UUID) error {
	loc := cfg.Location()
	now := s.now().In(loc)

	if day.Before(clinic.StartOfDay(now, loc)) {
		return &ValidationError{Field: "date", Reason: "requested date is in the past"}
	}
	if clinic.SameClinicDay(day, now, loc) && !startsAt.After(now) {
		return &ValidationError{Field: "time", Reason: "requested time has already passed today"}
	}

	openMin, closeMin := doctorHours(cfg, doctor)
	requested := NewInterval(startMin, cfg.SlotMinutes)
	if !requested.Within(Interval{StartMin: openMin, EndMin: closeMin}) {
		return &SlotUnavailableError{Reason: fmt.Sprintf("outside clinic hours (%s-%s)",
			clinic.FormatMinutes(openMin), clinic.FormatMinutes(closeMin))}
	}
	if !cfg.IsWorkingDay(day.Weekday()) {
		return &SlotUnavailableError{Reason: fmt.Sprintf("the clinic is closed on %s", day.Weekday())}
	}

	_, blocked, booked, err := s.dayConflicts(ctx, doctor.ID, day, loc, excludeAppt)
	if err != nil {
		return err
	}
	if overlapsAny(requested, blocked) {
		return &SlotUnavailableError{Reason: fmt.Sprintf("%s is unavailable at that time", doctor.Name)}
	}
	if overlapsAny(requested, booked) {
		alternatives, altErr := s.NextSlots(ctx, doctor.ID, day, 3, 7)
		if altErr != nil {
			s.logger.Error("failed to compute alternatives", "error", altErr, "doctor_id", doctor.ID)
			alternatives = nil
		}
		return &SlotUnavailableError{Reason: "that slot was just taken", Alternatives: alternatives}
	}
	return nil
}

// insertWithFreshReference assigns reference codes and retries on the unique
// index, bounded, rather than pre-checking for collisions.
func (s *Service) insertWithFreshReference(ctx context.Context, appt *Appointment) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := NewReferenceCode()
		if err != nil {
			return err
		}
		appt.ReferenceCode = code
		err = s.repo.CreateAppointment(ctx, appt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateReference) {
			return err
		}
	}
	return fmt.Errorf("scheduling: exhausted %d reference code attempts: %w", maxCodeAttempts, ErrDuplicateReference)
}

func (s *Service) findOrCreatePatient(ctx context.Context, name, phone, email string) (*Patient, error) {
	normalized := digitsOnly(phone)

	existing, err := s.repo.GetPatientByPhone(ctx, normalized)
	if err == nil {
		if email != "" && existing.Email == "" {
			if err := s.repo.SetPatientEmail(ctx, existing.ID, email); err != nil {
				return nil, err
			}
			existing.Email = email
		}
		return existing, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, err
	}

	patient := &Patient{Name: name, Phone: normalized, Email: email}
	if err := s.repo.CreatePatient(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// verify is the two-factor gate on lookup/cancel/reschedule. It returns the
// same vague ErrVerificationFailed whether the reference is unknown or the
// phone suffix does not match.
func (s *Service) verify(ctx context.Context, referenceCode, phoneSuffix string) (*Appointment, *Patient, error) {
	appt, err := s.repo.GetAppointmentByReference(ctx, referenceCode)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, nil, ErrVerificationFailed
		}
		return nil, nil, err
	}
	patient, err := s.repo.GetPatient(ctx, appt.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, nil, ErrVerificationFailed
		}
		return nil, nil, err
	}
	if !PhoneSuffixMatches(patient.Phone, phoneSuffix) {
		return nil, nil, ErrVerificationFailed
	}
	return appt, patient, nil
}

func (s *Service) dispatchBookedEffects(patient *Patient, appt *Appointment, doctor *Doctor, notes, timezone string) {
	apptCopy := *appt

	if s.calendar != nil && doctor != nil && doctor.GCalCredJSON != "" && doctor.GCalID != "" {
		doc := *doctor
		s.runSideEffect("create_calendar_event", func(ctx context.Context) {
			eventID, err := s.calendar.CreateEvent(ctx, doc.GCalCredJSON, doc.GCalID, CalendarEvent{
				PatientName: patient.Name,
				DoctorName:  doc.Name,
				Service:     apptCopy.Service,
				Notes:       notes,
				StartsAt:    apptCopy.StartsAt,
				DurationMin: apptCopy.DurationMin,
				Timezone:    timezone,
			})
			if err != nil {
				s.logger.Error("calendar event creation failed", "error", err, "reference", apptCopy.ReferenceCode)
				return
			}
			if err := s.repo.RescheduleAppointment(ctx, apptCopy.ID, apptCopy.StartsAt, eventID); err != nil {
				s.logger.Error("failed to store calendar event id", "error", err, "reference", apptCopy.ReferenceCode)
			}
		})
	}

	if s.notifier != nil && patient.Email != "" {
		s.runSideEffect("confirmation_email", func(ctx context.Context) {
			s.notifier.AppointmentBooked(ctx, patient, &apptCopy, doctorName(doctor))
		})
	}
}

func (s *Service) doctorForAppointment(ctx context.Context, appt *Appointment) *Doctor {
	if appt.DoctorID == nil {
		return nil
	}
	doctor, err := s.repo.GetDoctor(ctx, *appt.DoctorID)
	if err != nil {
		s.logger.Error("failed to load doctor for side effects", "error", err, "doctor_id", *appt.DoctorID)
		return nil
	}
	return doctor
}

func (s *Service) removeCalendarEvent(ctx context.Context, doctor *Doctor, eventID string) {
	if s.calendar == nil || doctor == nil || eventID == "" || doctor.GCalCredJSON == "" || doctor.GCalID == "" {
		return
	}
	if err := s.calendar.DeleteEvent(ctx, doctor.GCalCredJSON, doctor.GCalID, eventID); err != nil {
		s.logger.Error("calendar event deletion failed", "error", err, "event_id", eventID)
	}
}

// removeCalendarEventSync is the inline variant used mid-reschedule, where
// the old event must go before the replacement is created.
func (s *Service) removeCalendarEventSync(ctx context.Context, doctor *Doctor, eventID string) {
	s.removeCalendarEvent(ctx, doctor, eventID)
}

func validateIdentity(name, phone string) error {
	if err := ValidatePatientName(name); err != nil {
		return err
	}
	return ValidatePatientPhone(phone)
}

func doctorName(doctor *Doctor) string {
	if doctor == nil {
		return ""
	}
	return doctor.Name
}

func representativeMinute(cfg *clinic.Settings, period TimePeriod) int {
	var minute int
	switch period {
	case PeriodMorning:
		minute = 10 * 60
	case PeriodAfternoon:
		minute = 14 * 60
	case PeriodEvening:
		minute = 17 * 60
	}
	// Clamp into the bookable window so a synthetic walk-in time never lands
	// outside clinic hours.
	if max := cfg.CloseMin - cfg.SlotMinutes; minute > max {
		minute = max
	}
	if minute < cfg.OpenMin {
		minute = cfg.OpenMin
	}
	return minute
}
