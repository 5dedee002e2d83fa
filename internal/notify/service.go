package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/novadental/chairside/internal/clinic"
	"github.com/novadental/chairside/internal/scheduling"
	"github.com/novadental/chairside/pkg/logging"
)

// SettingsSource retrieves the clinic settings used for message formatting.
type SettingsSource interface {
	Get(ctx context.Context) (*clinic.Settings, error)
}

// Service renders and delivers patient-facing appointment emails. Delivery
// failures are logged, never propagated; the booking already happened.
type Service struct {
	email    EmailSender
	settings SettingsSource
	logger   *logging.Logger
}

// NewService creates the notification service. email may be nil, in which
// case every notification is skipped.
func NewService(email EmailSender, settings SettingsSource, logger *logging.Logger) *Service {
	if settings == nil {
		panic("notify: settings source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, settings: settings, logger: logger.Component("notify")}
}

var _ scheduling.Notifier = (*Service)(nil)

// AppointmentBooked sends the booking confirmation.
func (s *Service) AppointmentBooked(ctx context.Context, patient *scheduling.Patient, appt *scheduling.Appointment, doctorName string) {
	cfg, loc, ok := s.prepare(ctx, patient)
	if !ok {
		return
	}

	when := s.formatWhen(appt, loc)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour appointment at %s is confirmed.\n\n%s%s\nReference code: %s\n\nKeep this code; you will need it together with your phone number to change or cancel the appointment.\n",
		patient.Name, cfg.ClinicName, when, doctorLine(doctorName), appt.ReferenceCode)

	s.deliver(ctx, patient, EmailMessage{
		To:      patient.Email,
		ToName:  patient.Name,
		Subject: fmt.Sprintf("%s: appointment confirmed (%s)", cfg.ClinicName, appt.ReferenceCode),
		Body:    body,
	})
}

// AppointmentCancelled sends the cancellation notice.
func (s *Service) AppointmentCancelled(ctx context.Context, patient *scheduling.Patient, appt *scheduling.Appointment, doctorName string) {
	cfg, loc, ok := s.prepare(ctx, patient)
	if !ok {
		return
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nYour appointment at %s has been cancelled.\n\n%s%s\nReference code: %s\n\nIf this was a mistake, just start a new booking.\n",
		patient.Name, cfg.ClinicName, s.formatWhen(appt, loc), doctorLine(doctorName), appt.ReferenceCode)

	s.deliver(ctx, patient, EmailMessage{
		To:      patient.Email,
		ToName:  patient.Name,
		Subject: fmt.Sprintf("%s: appointment cancelled (%s)", cfg.ClinicName, appt.ReferenceCode),
		Body:    body,
	})
}

// AppointmentRescheduled sends the new time along with the old one.
func (s *Service) AppointmentRescheduled(ctx context.Context, patient *scheduling.Patient, appt *scheduling.Appointment, doctorName string, previousStart time.Time) {
	cfg, loc, ok := s.prepare(ctx, patient)
	if !ok {
		return
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nYour appointment at %s has been moved.\n\nPreviously: %s\nNow: %s%s\nReference code: %s\n",
		patient.Name, cfg.ClinicName,
		previousStart.In(loc).Format(timeLayout),
		appt.StartsAt.In(loc).Format(timeLayout),
		doctorLine(doctorName), appt.ReferenceCode)

	s.deliver(ctx, patient, EmailMessage{
		To:      patient.Email,
		ToName:  patient.Name,
		Subject: fmt.Sprintf("%s: appointment rescheduled (%s)", cfg.ClinicName, appt.ReferenceCode),
		Body:    body,
	})
}

// AppointmentReminder sends the pre-visit reminder used by the reminder
// worker.
func (s *Service) AppointmentReminder(ctx context.Context, patient *scheduling.Patient, appt *scheduling.Appointment, doctorName string) {
	cfg, loc, ok := s.prepare(ctx, patient)
	if !ok {
		return
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nThis is a reminder of your upcoming appointment at %s.\n\n%s%s\nReference code: %s\n",
		patient.Name, cfg.ClinicName, s.formatWhen(appt, loc), doctorLine(doctorName), appt.ReferenceCode)

	s.deliver(ctx, patient, EmailMessage{
		To:      patient.Email,
		ToName:  patient.Name,
		Subject: fmt.Sprintf("%s: appointment reminder (%s)", cfg.ClinicName, appt.ReferenceCode),
		Body:    body,
	})
}

const timeLayout = "Monday, January 2 at 3:04 PM"

func (s *Service) prepare(ctx context.Context, patient *scheduling.Patient) (*clinic.Settings, *time.Location, bool) {
	if s.email == nil || patient == nil || patient.Email == "" {
		return nil, nil, false
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Error("failed to load settings for notification", "error", err)
		return nil, nil, false
	}
	return cfg, cfg.Location(), true
}

func (s *Service) formatWhen(appt *scheduling.Appointment, loc *time.Location) string {
	if appt.Type == scheduling.TypeWalkIn {
		return fmt.Sprintf("When: %s (%s walk-in)\n",
			appt.StartsAt.In(loc).Format("Monday, January 2"), appt.TimePeriod)
	}
	return fmt.Sprintf("When: %s\n", appt.StartsAt.In(loc).Format(timeLayout))
}

func (s *Service) deliver(ctx context.Context, patient *scheduling.Patient, msg EmailMessage) {
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notification delivery failed", "error", err, "to", patient.Email)
	}
}

func doctorLine(doctorName string) string {
	if doctorName == "" {
		return ""
	}
	return fmt.Sprintf("With: %s\n", doctorName)
}
