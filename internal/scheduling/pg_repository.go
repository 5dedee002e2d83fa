package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository uses. pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	if db == nil {
		panic("scheduling: db required")
	}
	return &PgRepository{db: db}
}

var _ Repository = (*PgRepository)(nil)

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty, credJSON, calID *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.Active,
		&d.WorkStartMin,
		&d.WorkEndMin,
		&credJSON,
		&calID,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	if specialty != nil {
		d.Specialty = *specialty
	}
	if credJSON != nil {
		d.GCalCredJSON = *credJSON
	}
	if calID != nil {
		d.GCalID = *calID
	}
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var gcalEventID, timePeriod *string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.StartsAt,
		&a.DurationMin,
		&a.Status,
		&a.Service,
		&a.Source,
		&a.ReferenceCode,
		&gcalEventID,
		&a.Type,
		&timePeriod,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if gcalEventID != nil {
		a.GCalEventID = *gcalEventID
	}
	if timePeriod != nil {
		a.TimePeriod = TimePeriod(*timePeriod)
	}
	return &a, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(&p.ID, &p.Name, &p.Phone, &email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	if email != nil {
		p.Email = *email
	}
	return &p, nil
}

const doctorColumns = "id, name, specialty, active, work_start_min, work_end_min, gcal_credential_json, gcal_calendar_id, created_at"
const appointmentColumns = "id, doctor_id, patient_id, starts_at, duration_min, status, service, source, reference_code, gcal_event_id, appointment_type, time_period, created_at"

// Interface methods

func (r *PgRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListActiveDoctors(ctx context.Context) ([]Doctor, error) {
	return r.listDoctors(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE active
		ORDER BY created_at, id
	`)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return r.listDoctors(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		ORDER BY created_at, id
	`)
}

func (r *PgRepository) listDoctors(ctx context.Context, query string) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListBlockedPeriods(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]BlockedPeriod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, day, start_min, end_min, reason
		FROM blocked_periods
		WHERE doctor_id = $1 AND day = $2
		ORDER BY start_min
	`, doctorID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlockedPeriod
	for rows.Next() {
		var bp BlockedPeriod
		var reason *string
		if err := rows.Scan(&bp.ID, &bp.DoctorID, &bp.Day, &bp.StartMin, &bp.EndMin, &reason); err != nil {
			return nil, err
		}
		if reason != nil {
			bp.Reason = *reason
		}
		result = append(result, bp)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateBlockedPeriod(ctx context.Context, bp *BlockedPeriod) error {
	if bp.ID == uuid.Nil {
		bp.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO blocked_periods (id, doctor_id, day, start_min, end_min, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, bp.ID, bp.DoctorID, bp.Day, bp.StartMin, bp.EndMin, bp.Reason)
	if err != nil {
		return fmt.Errorf("scheduling: insert blocked period: %w", err)
	}
	return nil
}

func (r *PgRepository) ListDayAppointments(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND starts_at >= $2
		  AND starts_at < $3
		  AND status <> 'cancelled'
		ORDER BY starts_at
	`, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE starts_at >= $1
		  AND starts_at < $2
		  AND status = 'scheduled'
		ORDER BY starts_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetAppointmentByReference(ctx context.Context, code string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE reference_code = $1
	`, code)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, starts_at, duration_min, status, service, source, reference_code, gcal_event_id, appointment_type, time_period, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, NULLIF($12, ''), now())
	`, appt.ID, appt.DoctorID, appt.PatientID, appt.StartsAt, appt.DurationMin, appt.Status,
		appt.Service, appt.Source, appt.ReferenceCode, appt.GCalEventID, appt.Type, string(appt.TimePeriod))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("scheduling: insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) RescheduleAppointment(ctx context.Context, id uuid.UUID, startsAt time.Time, gcalEventID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET starts_at = $2,
		    gcal_event_id = NULLIF($3, '')
		WHERE id = $1
	`, id, startsAt, gcalEventID)
	if err != nil {
		return fmt.Errorf("scheduling: reschedule appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, phone, email, created_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, phone, email, created_at
		FROM patients
		WHERE phone = $1
	`, phone)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, phone, email, created_at
		FROM patients
		WHERE lower(email) = lower($1)
	`, email)
	return scanPatient(row)
}

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO patients (id, name, phone, email, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), now())
	`, p.ID, p.Name, p.Phone, p.Email)
	if err != nil {
		return fmt.Errorf("scheduling: insert patient: %w", err)
	}
	return nil
}

func (r *PgRepository) SetPatientEmail(ctx context.Context, id uuid.UUID, email string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE patients
		SET email = $2
		WHERE id = $1
	`, id, email)
	if err != nil {
		return fmt.Errorf("scheduling: update patient email: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
