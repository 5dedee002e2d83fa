package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novadental/chairside/internal/clinic"
	"github.com/novadental/chairside/internal/scheduling"
	"github.com/novadental/chairside/pkg/logging"
)

type mockEmailSender struct {
	sent    []EmailMessage
	callErr error
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type staticSettings struct{}

func (staticSettings) Get(ctx context.Context) (*clinic.Settings, error) {
	return clinic.DefaultSettings(), nil
}

func testAppointment() (*scheduling.Patient, *scheduling.Appointment) {
	patient := &scheduling.Patient{
		ID:    uuid.New(),
		Name:  "Maria Lopez",
		Phone: "12025550147",
		Email: "maria@example.com",
	}
	appt := &scheduling.Appointment{
		ID:            uuid.New(),
		PatientID:     patient.ID,
		StartsAt:      time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
		DurationMin:   30,
		Status:        scheduling.StatusScheduled,
		Service:       "cleaning",
		ReferenceCode: "APT-K7M2",
		Type:          scheduling.TypeScheduled,
	}
	return patient, appt
}

func TestAppointmentBookedEmail(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, staticSettings{}, logging.New("error"))
	patient, appt := testAppointment()

	svc.AppointmentBooked(context.Background(), patient, appt, "Dr. Chen")

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "maria@example.com", msg.To)
	assert.Contains(t, msg.Subject, "APT-K7M2")
	assert.Contains(t, msg.Body, "APT-K7M2")
	assert.Contains(t, msg.Body, "Dr. Chen")
	assert.Contains(t, msg.Body, "Nova Dental")
}

func TestNoEmailWithoutAddress(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, staticSettings{}, logging.New("error"))
	patient, appt := testAppointment()
	patient.Email = ""

	svc.AppointmentBooked(context.Background(), patient, appt, "Dr. Chen")
	svc.AppointmentCancelled(context.Background(), patient, appt, "Dr. Chen")

	assert.Empty(t, sender.sent)
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	sender := &mockEmailSender{callErr: errors.New("smtp down")}
	svc := NewService(sender, staticSettings{}, logging.New("error"))
	patient, appt := testAppointment()

	// Must not panic or propagate.
	svc.AppointmentBooked(context.Background(), patient, appt, "Dr. Chen")
	assert.Empty(t, sender.sent)
}

func TestWalkInEmailMentionsPeriod(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, staticSettings{}, logging.New("error"))
	patient, appt := testAppointment()
	appt.Type = scheduling.TypeWalkIn
	appt.TimePeriod = scheduling.PeriodAfternoon

	svc.AppointmentBooked(context.Background(), patient, appt, "")

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "afternoon walk-in")
	assert.NotContains(t, sender.sent[0].Body, "With:")
}

type mockReminderRepo struct {
	appts    []scheduling.Appointment
	patients map[uuid.UUID]*scheduling.Patient
}

func (m *mockReminderRepo) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]scheduling.Appointment, error) {
	return m.appts, nil
}

func (m *mockReminderRepo) GetPatient(ctx context.Context, id uuid.UUID) (*scheduling.Patient, error) {
	if p, ok := m.patients[id]; ok {
		return p, nil
	}
	return nil, scheduling.ErrPatientNotFound
}

func (m *mockReminderRepo) GetDoctor(ctx context.Context, id uuid.UUID) (*scheduling.Doctor, error) {
	return &scheduling.Doctor{ID: id, Name: "Dr. Chen"}, nil
}

func TestReminderSentOncePerAppointment(t *testing.T) {
	patient, appt := testAppointment()
	repo := &mockReminderRepo{
		appts:    []scheduling.Appointment{*appt},
		patients: map[uuid.UUID]*scheduling.Patient{patient.ID: patient},
	}
	sender := &mockEmailSender{}
	svc := NewService(sender, staticSettings{}, logging.New("error"))
	worker := NewReminderWorker(repo, svc, time.Minute, 24*time.Hour, logging.New("error"))

	worker.scan(context.Background())
	worker.scan(context.Background())

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Subject, "reminder")
}
