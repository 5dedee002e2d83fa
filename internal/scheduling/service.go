package scheduling

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/novadental/chairside/internal/clinic"
	"github.com/novadental/chairside/pkg/logging"
)

var schedulingTracer = otel.Tracer("chairside.internal.scheduling")

// SettingsSource provides the clinic settings that define the slot universe.
type SettingsSource interface {
	Get(ctx context.Context) (*clinic.Settings, error)
}

// CalendarEvent is the payload pushed to a doctor's external calendar.
type CalendarEvent struct {
	PatientName string
	DoctorName  string
	Service     string
	Notes       string
	StartsAt    time.Time
	DurationMin int
	Timezone    string
}

// CalendarSync mirrors appointments to an external calendar. All calls are
// best-effort; the booking flow never blocks on them.
type CalendarSync interface {
	CreateEvent(ctx context.Context, credJSON, calendarID string, ev CalendarEvent) (string, error)
	DeleteEvent(ctx context.Context, credJSON, calendarID, eventID string) error
}

// Notifier delivers patient-facing emails. Errors are logged by the
// implementation, never propagated into the booking result.
type Notifier interface {
	AppointmentBooked(ctx context.Context, patient *Patient, appt *Appointment, doctorName string)
	AppointmentCancelled(ctx context.Context, patient *Patient, appt *Appointment, doctorName string)
	AppointmentRescheduled(ctx context.Context, patient *Patient, appt *Appointment, doctorName string, previousStart time.Time)
}

// Service is the scheduling engine: availability calculation, conflict
// detection, and the booking transaction.
//
// Concurrency model: availability checks are advisory; the commit-time
// conflict re-check in Book/Reschedule is authoritative. There is no lock
// between check and commit.
type Service struct {
	repo     Repository
	settings SettingsSource
	calendar CalendarSync
	notifier Notifier
	logger   *logging.Logger

	now               func() time.Time
	syncSideEffects   bool
	sideEffectTimeout time.Duration
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSynchronousSideEffects runs calendar/email side effects inline instead
// of on a background goroutine. Used in tests.
func WithSynchronousSideEffects() Option {
	return func(s *Service) {
		s.syncSideEffects = true
	}
}

// NewService constructs the scheduling engine. calendar and notifier may be
// nil; the corresponding side effects are then skipped.
func NewService(repo Repository, settings SettingsSource, calendar CalendarSync, notifier Notifier, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil {
		panic("scheduling: repository required")
	}
	if settings == nil {
		panic("scheduling: settings source required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	s := &Service{
		repo:              repo,
		settings:          settings,
		calendar:          calendar,
		notifier:          notifier,
		logger:            logger,
		now:               time.Now,
		sideEffectTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings exposes the current clinic settings to callers that render
// clinic data (tool results, quick-reply buttons).
func (s *Service) Settings(ctx context.Context) (*clinic.Settings, error) {
	return s.settings.Get(ctx)
}

// Doctors lists active doctors in stable iteration order.
func (s *Service) Doctors(ctx context.Context) ([]Doctor, error) {
	return s.repo.ListActiveDoctors(ctx)
}

// PatientByEmail finds a returning patient by email address.
func (s *Service) PatientByEmail(ctx context.Context, email string) (*Patient, error) {
	return s.repo.GetPatientByEmail(ctx, email)
}

// runSideEffect dispatches fn fire-and-forget with its own timeout so a slow
// external API never blocks the patient-facing confirmation.
func (s *Service) runSideEffect(name string, fn func(ctx context.Context)) {
	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.sideEffectTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("side effect panicked", "side_effect", name, "panic", r)
			}
		}()
		fn(ctx)
	}
	if s.syncSideEffects {
		run()
		return
	}
	go run()
}
