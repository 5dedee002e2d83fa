package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/novadental/chairside/internal/clinic"
	"github.com/novadental/chairside/internal/scheduling"
	"github.com/novadental/chairside/pkg/logging"
)

// SettingsSource provides the clinic settings for date parsing.
type SettingsSource interface {
	Get(ctx context.Context) (*clinic.Settings, error)
}

// CalendarLister enumerates the calendars a doctor's credential can see.
type CalendarLister interface {
	ListCalendars(ctx context.Context, credJSON string) ([]string, error)
}

// Handler exposes the minimal staff-facing surface: doctors, blocked periods
// and the day's appointment list. The chat assistant never touches these.
type Handler struct {
	repo      scheduling.Repository
	settings  SettingsSource
	calendars CalendarLister
	logger    *logging.Logger
}

func NewHandler(repo scheduling.Repository, settings SettingsSource, calendars CalendarLister, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("admin: repository cannot be nil")
	}
	if settings == nil {
		panic("admin: settings source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, settings: settings, calendars: calendars, logger: logger.Component("admin")}
}

// Routes mounts the admin endpoints. Callers wrap them in the admin JWT
// middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/doctors", h.listDoctors)
	r.Get("/doctors/{doctorID}/calendars", h.listDoctorCalendars)
	r.Get("/blocked-periods", h.listBlockedPeriods)
	r.Post("/blocked-periods", h.createBlockedPeriod)
	r.Get("/appointments", h.listAppointments)
}

type doctorView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty,omitempty"`
	Active    bool      `json:"active"`
}

func (h *Handler) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.repo.ListDoctors(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list doctors")
		return
	}
	views := make([]doctorView, 0, len(doctors))
	for _, d := range doctors {
		views = append(views, doctorView{ID: d.ID, Name: d.Name, Specialty: d.Specialty, Active: d.Active})
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) listDoctorCalendars(w http.ResponseWriter, r *http.Request) {
	if h.calendars == nil {
		h.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "calendar sync not configured"})
		return
	}
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		h.badRequest(w, "invalid doctor id")
		return
	}
	doctor, err := h.repo.GetDoctor(r.Context(), doctorID)
	if err != nil {
		if errors.Is(err, scheduling.ErrDoctorNotFound) {
			h.badRequest(w, "unknown doctor")
			return
		}
		h.fail(w, err, "failed to load doctor")
		return
	}
	if doctor.GCalCredJSON == "" {
		h.badRequest(w, "doctor has no calendar credential")
		return
	}

	ids, err := h.calendars.ListCalendars(r.Context(), doctor.GCalCredJSON)
	if err != nil {
		h.fail(w, err, "failed to list calendars")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"calendars": ids})
}

type blockedPeriodPayload struct {
	DoctorID uuid.UUID `json:"doctorId"`
	Date     string    `json:"date"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	Reason   string    `json:"reason"`
}

func (h *Handler) createBlockedPeriod(w http.ResponseWriter, r *http.Request) {
	var payload blockedPeriodPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if payload.DoctorID == uuid.Nil {
		h.badRequest(w, "doctorId is required")
		return
	}

	cfg, err := h.settings.Get(r.Context())
	if err != nil {
		h.fail(w, err, "failed to load settings")
		return
	}
	loc := cfg.Location()

	day, err := clinic.ParseClinicDate(payload.Date, loc)
	if err != nil {
		h.badRequest(w, "date must be YYYY-MM-DD")
		return
	}
	startMin, err := clinic.ParseClinicTime(payload.Start)
	if err != nil {
		h.badRequest(w, "start must be HH:MM")
		return
	}
	endMin, err := clinic.ParseClinicTime(payload.End)
	if err != nil {
		h.badRequest(w, "end must be HH:MM")
		return
	}
	if endMin <= startMin {
		h.badRequest(w, "end must be after start")
		return
	}

	if _, err := h.repo.GetDoctor(r.Context(), payload.DoctorID); err != nil {
		if errors.Is(err, scheduling.ErrDoctorNotFound) {
			h.badRequest(w, "unknown doctor")
			return
		}
		h.fail(w, err, "failed to load doctor")
		return
	}

	bp := &scheduling.BlockedPeriod{
		DoctorID: payload.DoctorID,
		Day:      day,
		StartMin: startMin,
		EndMin:   endMin,
		Reason:   payload.Reason,
	}
	if err := h.repo.CreateBlockedPeriod(r.Context(), bp); err != nil {
		h.fail(w, err, "failed to create blocked period")
		return
	}

	h.logger.Info("blocked period created", "doctor_id", bp.DoctorID, "day", payload.Date)
	h.writeJSON(w, http.StatusCreated, map[string]any{"id": bp.ID})
}

func (h *Handler) listBlockedPeriods(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(r.URL.Query().Get("doctorId"))
	if err != nil {
		h.badRequest(w, "doctorId query parameter is required")
		return
	}

	cfg, err := h.settings.Get(r.Context())
	if err != nil {
		h.fail(w, err, "failed to load settings")
		return
	}
	day, err := clinic.ParseClinicDate(r.URL.Query().Get("date"), cfg.Location())
	if err != nil {
		h.badRequest(w, "date query parameter must be YYYY-MM-DD")
		return
	}

	periods, err := h.repo.ListBlockedPeriods(r.Context(), doctorID, day)
	if err != nil {
		h.fail(w, err, "failed to list blocked periods")
		return
	}

	type view struct {
		ID     uuid.UUID `json:"id"`
		Start  string    `json:"start"`
		End    string    `json:"end"`
		Reason string    `json:"reason,omitempty"`
	}
	views := make([]view, 0, len(periods))
	for _, bp := range periods {
		views = append(views, view{
			ID:     bp.ID,
			Start:  clinic.FormatMinutes(bp.StartMin),
			End:    clinic.FormatMinutes(bp.EndMin),
			Reason: bp.Reason,
		})
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Get(r.Context())
	if err != nil {
		h.fail(w, err, "failed to load settings")
		return
	}
	loc := cfg.Location()

	day, err := clinic.ParseClinicDate(r.URL.Query().Get("date"), loc)
	if err != nil {
		h.badRequest(w, "date query parameter must be YYYY-MM-DD")
		return
	}

	appts, err := h.repo.ListAppointmentsBetween(r.Context(), day, day.AddDate(0, 0, 1))
	if err != nil {
		h.fail(w, err, "failed to list appointments")
		return
	}

	type view struct {
		ID            uuid.UUID `json:"id"`
		ReferenceCode string    `json:"referenceCode"`
		Time          string    `json:"time"`
		Service       string    `json:"service,omitempty"`
		Status        string    `json:"status"`
		Type          string    `json:"type"`
		TimePeriod    string    `json:"timePeriod,omitempty"`
	}
	views := make([]view, 0, len(appts))
	for _, a := range appts {
		views = append(views, view{
			ID:            a.ID,
			ReferenceCode: a.ReferenceCode,
			Time:          a.StartsAt.In(loc).Format("15:04"),
			Service:       a.Service,
			Status:        string(a.Status),
			Type:          string(a.Type),
			TimePeriod:    string(a.TimePeriod),
		})
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

func (h *Handler) fail(w http.ResponseWriter, err error, message string) {
	h.logger.Error(message, "error", err)
	h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": message})
}
