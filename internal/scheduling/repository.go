package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence surface the scheduling engine needs. The
// "non-cancelled appointments for doctor X on day D" query backs every
// availability check and every booking attempt, so implementations should
// index for it.
type Repository interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListActiveDoctors(ctx context.Context) ([]Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)

	ListBlockedPeriods(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]BlockedPeriod, error)
	CreateBlockedPeriod(ctx context.Context, bp *BlockedPeriod) error

	// ListDayAppointments returns non-cancelled, doctor-assigned appointments
	// starting within [dayStart, dayEnd).
	ListDayAppointments(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]Appointment, error)
	ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)
	GetAppointmentByReference(ctx context.Context, code string) (*Appointment, error)
	CreateAppointment(ctx context.Context, appt *Appointment) error
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, startsAt time.Time, gcalEventID string) error

	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPatientByPhone(ctx context.Context, phone string) (*Patient, error)
	GetPatientByEmail(ctx context.Context, email string) (*Patient, error)
	CreatePatient(ctx context.Context, p *Patient) error
	SetPatientEmail(ctx context.Context, id uuid.UUID, email string) error
}
