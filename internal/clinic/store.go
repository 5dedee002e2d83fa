package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/novadental/chairside/pkg/logging"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes the singleton clinic settings row. Settings are
// read-mostly; every availability check and booking loads them fresh.
type Store struct {
	db     DB
	logger *logging.Logger
}

// NewStore creates a settings store backed by pgx.
func NewStore(db DB, logger *logging.Logger) *Store {
	if db == nil {
		panic("clinic: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

// Get loads the clinic settings, returning defaults when no row exists yet.
func (s *Store) Get(ctx context.Context) (*Settings, error) {
	row := s.db.QueryRow(ctx, `
		SELECT clinic_name, timezone, open_min, close_min, slot_minutes, working_days, services, doctor_label
		FROM clinic_settings
		WHERE id = 1
	`)

	var (
		cfg      Settings
		weekdays []int32
	)
	err := row.Scan(
		&cfg.ClinicName,
		&cfg.Timezone,
		&cfg.OpenMin,
		&cfg.CloseMin,
		&cfg.SlotMinutes,
		&weekdays,
		&cfg.Services,
		&cfg.DoctorLabel,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("clinic settings row missing, using defaults")
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("clinic: load settings: %w", err)
	}

	cfg.WorkingDays = make([]time.Weekday, 0, len(weekdays))
	for _, d := range weekdays {
		cfg.WorkingDays = append(cfg.WorkingDays, time.Weekday(d))
	}
	return &cfg, nil
}

// Save upserts the singleton settings row.
func (s *Store) Save(ctx context.Context, cfg *Settings) error {
	weekdays := make([]int32, 0, len(cfg.WorkingDays))
	for _, d := range cfg.WorkingDays {
		weekdays = append(weekdays, int32(d))
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO clinic_settings (id, clinic_name, timezone, open_min, close_min, slot_minutes, working_days, services, doctor_label)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			clinic_name = EXCLUDED.clinic_name,
			timezone = EXCLUDED.timezone,
			open_min = EXCLUDED.open_min,
			close_min = EXCLUDED.close_min,
			slot_minutes = EXCLUDED.slot_minutes,
			working_days = EXCLUDED.working_days,
			services = EXCLUDED.services,
			doctor_label = EXCLUDED.doctor_label
	`, cfg.ClinicName, cfg.Timezone, cfg.OpenMin, cfg.CloseMin, cfg.SlotMinutes, weekdays, cfg.Services, cfg.DoctorLabel)
	if err != nil {
		return fmt.Errorf("clinic: save settings: %w", err)
	}
	return nil
}
