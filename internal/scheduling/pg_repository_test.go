package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

func TestGetAppointmentByReferenceNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("APT-ZZZZ").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "doctor_id", "patient_id", "starts_at", "duration_min", "status",
			"service", "source", "reference_code", "gcal_event_id", "appointment_type",
			"time_period", "created_at",
		}))

	_, err := repo.GetAppointmentByReference(context.Background(), "APT-ZZZZ")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentDuplicateReference(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	doctorID := uuid.New()
	err := repo.CreateAppointment(context.Background(), &Appointment{
		DoctorID:      &doctorID,
		PatientID:     uuid.New(),
		StartsAt:      time.Now(),
		DurationMin:   30,
		Status:        StatusScheduled,
		ReferenceCode: "APT-K7M2",
		Type:          TypeScheduled,
	})
	assert.ErrorIs(t, err, ErrDuplicateReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatusReturnsUpdatedRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	id := uuid.New()
	doctorID := uuid.New()
	patientID := uuid.New()
	startsAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StatusCancelled, StatusScheduled).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "doctor_id", "patient_id", "starts_at", "duration_min", "status",
			"service", "source", "reference_code", "gcal_event_id", "appointment_type",
			"time_period", "created_at",
		}).AddRow(
			id, &doctorID, patientID, startsAt, 30, StatusCancelled,
			"Cleaning", "chat", "APT-K7M2", (*string)(nil), TypeScheduled,
			(*string)(nil), startsAt,
		))

	appt, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusScheduled, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, appt.Status)
	assert.Equal(t, "APT-K7M2", appt.ReferenceCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBlockedPeriodsScansRows(t *testing.T) {
	repo, mock := newMockRepo(t)

	doctorID := uuid.New()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	reason := "lunch"

	mock.ExpectQuery("SELECT (.+) FROM blocked_periods").
		WithArgs(doctorID, day).
		WillReturnRows(pgxmock.NewRows([]string{"id", "doctor_id", "day", "start_min", "end_min", "reason"}).
			AddRow(uuid.New(), doctorID, day, 12*60, 13*60, &reason).
			AddRow(uuid.New(), doctorID, day, 15*60, 16*60, (*string)(nil)))

	periods, err := repo.ListBlockedPeriods(context.Background(), doctorID, day)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "lunch", periods[0].Reason)
	assert.Empty(t, periods[1].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}
