package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novadental/chairside/internal/scheduling"
	"github.com/novadental/chairside/pkg/logging"
)

// ReminderRepo is the slice of the scheduling repository the reminder worker
// reads from.
type ReminderRepo interface {
	ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]scheduling.Appointment, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*scheduling.Patient, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*scheduling.Doctor, error)
}

// ReminderWorker periodically scans for appointments entering the reminder
// window and emails the patient once per appointment.
type ReminderWorker struct {
	repo     ReminderRepo
	notifier *Service
	logger   *logging.Logger

	interval time.Duration
	leadTime time.Duration
	now      func() time.Time

	mu   sync.Mutex
	sent map[uuid.UUID]time.Time
}

// NewReminderWorker builds the worker. interval controls the scan cadence and
// leadTime how far before the appointment the reminder fires.
func NewReminderWorker(repo ReminderRepo, notifier *Service, interval, leadTime time.Duration, logger *logging.Logger) *ReminderWorker {
	if repo == nil {
		panic("notify: reminder repo required")
	}
	if notifier == nil {
		panic("notify: notifier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if leadTime <= 0 {
		leadTime = 24 * time.Hour
	}
	return &ReminderWorker{
		repo:     repo,
		notifier: notifier,
		logger:   logger.Component("reminder"),
		interval: interval,
		leadTime: leadTime,
		now:      time.Now,
		sent:     make(map[uuid.UUID]time.Time),
	}
}

// Run blocks until ctx is cancelled, scanning on every tick.
func (w *ReminderWorker) Run(ctx context.Context) {
	w.logger.Info("reminder worker started", "interval", w.interval, "lead_time", w.leadTime)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker stopped")
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

// scan sends reminders for scheduled appointments whose start falls within
// [now, now+leadTime] and that have not been reminded yet.
func (w *ReminderWorker) scan(ctx context.Context) {
	now := w.now()
	appts, err := w.repo.ListAppointmentsBetween(ctx, now, now.Add(w.leadTime))
	if err != nil {
		w.logger.Error("reminder scan failed", "error", err)
		return
	}

	for i := range appts {
		appt := &appts[i]
		if !w.markSent(appt.ID, now) {
			continue
		}
		patient, err := w.repo.GetPatient(ctx, appt.PatientID)
		if err != nil {
			w.logger.Error("reminder patient lookup failed", "error", err, "appointment_id", appt.ID)
			continue
		}
		if patient.Email == "" {
			continue
		}
		doctorName := ""
		if appt.DoctorID != nil {
			if doctor, err := w.repo.GetDoctor(ctx, *appt.DoctorID); err == nil {
				doctorName = doctor.Name
			}
		}
		w.notifier.AppointmentReminder(ctx, patient, appt, doctorName)
	}

	w.prune(now)
}

// markSent records the reminder; returns false if one was already sent.
func (w *ReminderWorker) markSent(id uuid.UUID, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.sent[id]; ok {
		return false
	}
	w.sent[id] = now
	return true
}

// prune drops bookkeeping for reminders older than twice the lead time.
func (w *ReminderWorker) prune(now time.Time) {
	cutoff := now.Add(-2 * w.leadTime)
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, at := range w.sent {
		if at.Before(cutoff) {
			delete(w.sent, id)
		}
	}
}
