package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novadental/chairside/internal/clinic"
	"github.com/novadental/chairside/pkg/logging"
)

// fixedNow is a Monday, 08:00 clinic time.
var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, testLocation())

func testLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}

type staticSettings struct {
	cfg *clinic.Settings
}

func (s *staticSettings) Get(ctx context.Context) (*clinic.Settings, error) {
	return s.cfg, nil
}

// memRepo is an in-memory Repository for service tests.
type memRepo struct {
	mu           sync.Mutex
	doctors      []Doctor
	blocked      []BlockedPeriod
	appointments map[uuid.UUID]*Appointment
	patients     map[uuid.UUID]*Patient
}

func newMemRepo() *memRepo {
	return &memRepo{
		appointments: make(map[uuid.UUID]*Appointment),
		patients:     make(map[uuid.UUID]*Patient),
	}
}

func (r *memRepo) addDoctor(name string) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := Doctor{ID: uuid.New(), Name: name, Active: true, CreatedAt: time.Now()}
	r.doctors = append(r.doctors, d)
	return d.ID
}

func (r *memRepo) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.doctors {
		if r.doctors[i].ID == id {
			d := r.doctors[i]
			return &d, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (r *memRepo) ListActiveDoctors(ctx context.Context) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Doctor
	for _, d := range r.doctors {
		if d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memRepo) ListDoctors(ctx context.Context) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Doctor(nil), r.doctors...), nil
}

func (r *memRepo) ListBlockedPeriods(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]BlockedPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []BlockedPeriod
	for _, bp := range r.blocked {
		if bp.DoctorID == doctorID && bp.Day.Equal(day) {
			out = append(out, bp)
		}
	}
	return out, nil
}

func (r *memRepo) CreateBlockedPeriod(ctx context.Context, bp *BlockedPeriod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bp.ID == uuid.Nil {
		bp.ID = uuid.New()
	}
	r.blocked = append(r.blocked, *bp)
	return nil
}

func (r *memRepo) ListDayAppointments(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.DoctorID == nil || *a.DoctorID != doctorID {
			continue
		}
		if a.Status == StatusCancelled {
			continue
		}
		if a.StartsAt.Before(dayStart) || !a.StartsAt.Before(dayEnd) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *memRepo) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.Status != StatusScheduled {
			continue
		}
		if a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *memRepo) GetAppointmentByReference(ctx context.Context, code string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.ReferenceCode == code {
			copy := *a
			return &copy, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *memRepo) CreateAppointment(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appointments {
		if existing.ReferenceCode == appt.ReferenceCode {
			return ErrDuplicateReference
		}
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.CreatedAt = time.Now()
	copy := *appt
	r.appointments[appt.ID] = &copy
	return nil
}

func (r *memRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	copy := *a
	return &copy, nil
}

func (r *memRepo) RescheduleAppointment(ctx context.Context, id uuid.UUID, startsAt time.Time, gcalEventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.StartsAt = startsAt
	a.GCalEventID = gcalEventID
	return nil
}

func (r *memRepo) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	copy := *p
	return &copy, nil
}

func (r *memRepo) GetPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.patients {
		if p.Phone == phone {
			copy := *p
			return &copy, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (r *memRepo) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.patients {
		if p.Email == email {
			copy := *p
			return &copy, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (r *memRepo) CreatePatient(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	copy := *p
	r.patients[p.ID] = &copy
	return nil
}

func (r *memRepo) SetPatientEmail(ctx context.Context, id uuid.UUID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return ErrPatientNotFound
	}
	p.Email = email
	return nil
}

func (r *memRepo) appointmentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appointments)
}

func (r *memRepo) patientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.patients)
}

// fakeNotifier records delivered notifications.
type fakeNotifier struct {
	mu        sync.Mutex
	booked    []string
	cancelled []string
	resched   []string
}

func (n *fakeNotifier) AppointmentBooked(ctx context.Context, patient *Patient, appt *Appointment, doctorName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked = append(n.booked, appt.ReferenceCode)
}

func (n *fakeNotifier) AppointmentCancelled(ctx context.Context, patient *Patient, appt *Appointment, doctorName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, appt.ReferenceCode)
}

func (n *fakeNotifier) AppointmentRescheduled(ctx context.Context, patient *Patient, appt *Appointment, doctorName string, previousStart time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resched = append(n.resched, appt.ReferenceCode)
}

// fakeCalendar records created and deleted events.
type fakeCalendar struct {
	mu      sync.Mutex
	created []CalendarEvent
	deleted []string
	nextID  int
}

func (c *fakeCalendar) CreateEvent(ctx context.Context, credJSON, calendarID string, ev CalendarEvent) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.created = append(c.created, ev)
	return uuid.NewString(), nil
}

func (c *fakeCalendar) DeleteEvent(ctx context.Context, credJSON, calendarID, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, eventID)
	return nil
}

func newTestService(repo *memRepo, opts ...Option) *Service {
	cfg := clinic.DefaultSettings()
	all := append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithSynchronousSideEffects(),
	}, opts...)
	return NewService(repo, &staticSettings{cfg: cfg}, nil, nil, logging.New("error"), all...)
}

func newTestServiceWith(repo *memRepo, notifier Notifier, calendar CalendarSync, opts ...Option) *Service {
	cfg := clinic.DefaultSettings()
	all := append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithSynchronousSideEffects(),
	}, opts...)
	return NewService(repo, &staticSettings{cfg: cfg}, calendar, notifier, logging.New("error"), all...)
}

func clinicDay(t time.Time) time.Time {
	return clinic.StartOfDay(t, testLocation())
}
