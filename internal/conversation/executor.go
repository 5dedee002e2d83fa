package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novadental/chairside/internal/clinic"
	"github.com/novadental/chairside/internal/observability/metrics"
	"github.com/novadental/chairside/internal/scheduling"
	"github.com/novadental/chairside/pkg/logging"
)

// SchedulingEngine is the slice of the scheduling service the tool executor
// drives.
type SchedulingEngine interface {
	Settings(ctx context.Context) (*clinic.Settings, error)
	Doctors(ctx context.Context) ([]scheduling.Doctor, error)
	FreeSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) (*scheduling.DayAvailability, error)
	EmergencySlot(ctx context.Context) (*scheduling.Slot, error)
	Book(ctx context.Context, req scheduling.BookingRequest) (*scheduling.BookingConfirmation, error)
	BookWalkIn(ctx context.Context, req scheduling.WalkInRequest) (*scheduling.BookingConfirmation, error)
	Cancel(ctx context.Context, referenceCode, phoneSuffix string) (*scheduling.Appointment, error)
	Reschedule(ctx context.Context, referenceCode, phoneSuffix string, newDay time.Time, newStartMin int) (*scheduling.BookingConfirmation, error)
	Lookup(ctx context.Context, referenceCode, phoneSuffix string) (*scheduling.Appointment, *scheduling.Patient, error)
	PatientByEmail(ctx context.Context, email string) (*scheduling.Patient, error)
}

// BookingOutcome is the structured side-channel a committed terminal tool
// produces for the chat response, alongside the model's confirmation text.
type BookingOutcome struct {
	Action        string `json:"action"` // booked, walkin_booked, cancelled, rescheduled
	ReferenceCode string `json:"referenceCode"`
	DoctorName    string `json:"doctorName,omitempty"`
	StartsAt      string `json:"startsAt,omitempty"`
}

// toolExecutor maps model tool calls onto the scheduling engine and folds
// every domain error into a structured payload the model can recover from
// conversationally.
type toolExecutor struct {
	engine SchedulingEngine
	source string
	logger *logging.Logger
}

func newToolExecutor(engine SchedulingEngine, source string, logger *logging.Logger) *toolExecutor {
	return &toolExecutor{engine: engine, source: source, logger: logger}
}

// execute runs one tool call. The ToolResult always correlates to the call;
// outcome is non-nil only when a terminal tool committed state.
func (e *toolExecutor) execute(ctx context.Context, call ToolCall) (ToolResult, *BookingOutcome) {
	result := ToolResult{CallID: call.ID, Name: call.Name}

	var (
		content map[string]any
		outcome *BookingOutcome
		err     error
	)
	switch call.Name {
	case toolCheckAvailability:
		content, err = e.checkAvailability(ctx, call.Arguments)
	case toolLookupAppointment:
		content, err = e.lookupAppointment(ctx, call.Arguments)
	case toolLookupPatientByEmail:
		content, err = e.lookupPatientByEmail(ctx, call.Arguments)
	case toolFindEmergencySlot:
		content, err = e.findEmergencySlot(ctx)
	case toolSuggestQuickReplies:
		content, err = e.clinicOptions(ctx)
	case toolBookAppointment:
		content, outcome, err = e.bookAppointment(ctx, call.Arguments)
	case toolBookWalkIn:
		content, outcome, err = e.bookWalkIn(ctx, call.Arguments)
	case toolCancelAppointment:
		content, outcome, err = e.cancelAppointment(ctx, call.Arguments)
	case toolRescheduleAppointment:
		content, outcome, err = e.rescheduleAppointment(ctx, call.Arguments)
	default:
		result.IsError = true
		result.Content = map[string]any{
			"error":   "unknown_tool",
			"message": fmt.Sprintf("no tool named %q", call.Name),
		}
		metrics.ToolInvocations.WithLabelValues(call.Name, "unknown").Inc()
		return result, nil
	}

	if err != nil {
		result.Content, result.IsError = e.errorPayload(call.Name, err)
		metrics.ToolInvocations.WithLabelValues(call.Name, "error").Inc()
		return result, nil
	}
	result.Content = content
	metrics.ToolInvocations.WithLabelValues(call.Name, "ok").Inc()
	return result, outcome
}

// errorPayload translates domain errors into the conversational taxonomy.
// Recoverable conditions are plain payloads the model rephrases; only
// unexpected failures are flagged as tool errors.
func (e *toolExecutor) errorPayload(tool string, err error) (map[string]any, bool) {
	var ve *scheduling.ValidationError
	if errors.As(err, &ve) {
		return map[string]any{
			"error":  "missing_info",
			"field":  ve.Field,
			"reason": ve.Reason,
		}, false
	}

	var sue *scheduling.SlotUnavailableError
	if errors.As(err, &sue) {
		payload := map[string]any{
			"error":  "slot_unavailable",
			"reason": sue.Reason,
		}
		if len(sue.Alternatives) > 0 {
			alts := make([]map[string]any, 0, len(sue.Alternatives))
			for _, alt := range sue.Alternatives {
				alts = append(alts, map[string]any{
					"doctorName": alt.DoctorName,
					"date":       alt.Day.Format("2006-01-02"),
					"time":       clinic.FormatMinutes(alt.StartMin),
				})
			}
			payload["alternatives"] = alts
		}
		return payload, false
	}

	switch {
	case errors.Is(err, scheduling.ErrVerificationFailed):
		return map[string]any{
			"error":   "verification_failed",
			"message": "reference code and phone number do not match any appointment",
		}, false
	case errors.Is(err, scheduling.ErrAlreadyCancelled):
		return map[string]any{
			"error":   "already_cancelled",
			"message": "this appointment is already cancelled",
		}, false
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		return map[string]any{
			"error":  "missing_info",
			"field":  "doctorName",
			"reason": "no doctor by that name",
		}, false
	case errors.Is(err, scheduling.ErrNoSlotAvailable):
		return map[string]any{
			"error":  "slot_unavailable",
			"reason": "no slot available today",
		}, false
	}

	e.logger.Error("tool execution failed", "tool", tool, "error", err)
	return map[string]any{
		"error":   "tool_execution_failed",
		"message": "an internal error occurred, apologize and suggest trying again",
	}, true
}

func (e *toolExecutor) checkAvailability(ctx context.Context, args map[string]any) (map[string]any, error) {
	doctor, err := e.resolveDoctor(ctx, stringArg(args, "doctorName"))
	if err != nil {
		return nil, err
	}
	day, err := e.parseDate(ctx, stringArg(args, "date"))
	if err != nil {
		return nil, err
	}

	avail, err := e.engine.FreeSlots(ctx, doctor.ID, day)
	if err != nil {
		return nil, err
	}

	slots := make([]string, 0, len(avail.SlotStarts))
	for _, start := range avail.SlotStarts {
		slots = append(slots, clinic.FormatMinutes(start))
	}
	payload := map[string]any{
		"doctorName": doctor.Name,
		"date":       avail.Day.Format("2006-01-02"),
		"freeSlots":  slots,
	}
	if summary := blockedSummary(avail.Blocked); summary != "" {
		payload["blockedPeriods"] = summary
	}
	if len(slots) == 0 {
		payload["note"] = "no free slots on this date"
	}
	return payload, nil
}

// blockedSummary renders blocked periods as a short human-readable line the
// model can relay, e.g. "12:00-13:00 (lunch), 15:00-15:30".
func blockedSummary(blocked []scheduling.BlockedPeriod) string {
	if len(blocked) == 0 {
		return ""
	}
	parts := make([]string, 0, len(blocked))
	for _, bp := range blocked {
		window := clinic.FormatMinutes(bp.StartMin) + "-" + clinic.FormatMinutes(bp.EndMin)
		if bp.Reason != "" {
			window += " (" + bp.Reason + ")"
		}
		parts = append(parts, window)
	}
	return strings.Join(parts, ", ")
}

func (e *toolExecutor) bookAppointment(ctx context.Context, args map[string]any) (map[string]any, *BookingOutcome, error) {
	doctor, err := e.resolveDoctor(ctx, stringArg(args, "doctorName"))
	if err != nil {
		return nil, nil, err
	}
	day, err := e.parseDate(ctx, stringArg(args, "date"))
	if err != nil {
		return nil, nil, err
	}
	startMin, err := parseTimeArg(stringArg(args, "time"))
	if err != nil {
		return nil, nil, err
	}

	conf, err := e.engine.Book(ctx, scheduling.BookingRequest{
		PatientName:  stringArg(args, "patientName"),
		PatientPhone: stringArg(args, "patientPhone"),
		PatientEmail: stringArg(args, "patientEmail"),
		Service:      stringArg(args, "service"),
		Notes:        stringArg(args, "notes"),
		Source:       e.source,
		DoctorID:     doctor.ID,
		Day:          day,
		StartMin:     startMin,
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.Bookings.WithLabelValues("booked").Inc()
	payload := map[string]any{
		"status":        "booked",
		"referenceCode": conf.Appointment.ReferenceCode,
		"doctorName":    conf.DoctorName,
		"date":          stringArg(args, "date"),
		"time":          stringArg(args, "time"),
		"patientName":   conf.Patient.Name,
	}
	outcome := &BookingOutcome{
		Action:        "booked",
		ReferenceCode: conf.Appointment.ReferenceCode,
		DoctorName:    conf.DoctorName,
		StartsAt:      conf.Appointment.StartsAt.Format(time.RFC3339),
	}
	return payload, outcome, nil
}

func (e *toolExecutor) bookWalkIn(ctx context.Context, args map[string]any) (map[string]any, *BookingOutcome, error) {
	day, err := e.parseDate(ctx, stringArg(args, "date"))
	if err != nil {
		return nil, nil, err
	}

	conf, err := e.engine.BookWalkIn(ctx, scheduling.WalkInRequest{
		PatientName:  stringArg(args, "patientName"),
		PatientPhone: stringArg(args, "patientPhone"),
		PatientEmail: stringArg(args, "patientEmail"),
		Service:      stringArg(args, "service"),
		Source:       e.source,
		Day:          day,
		Period:       scheduling.TimePeriod(stringArg(args, "timePeriod")),
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.Bookings.WithLabelValues("walkin").Inc()
	payload := map[string]any{
		"status":        "walkin_booked",
		"referenceCode": conf.Appointment.ReferenceCode,
		"date":          stringArg(args, "date"),
		"timePeriod":    string(conf.Appointment.TimePeriod),
		"patientName":   conf.Patient.Name,
		"note":          "walk-in patients are seen by the next free doctor; exact time is not guaranteed",
	}
	outcome := &BookingOutcome{
		Action:        "walkin_booked",
		ReferenceCode: conf.Appointment.ReferenceCode,
		StartsAt:      conf.Appointment.StartsAt.Format(time.RFC3339),
	}
	return payload, outcome, nil
}

func (e *toolExecutor) cancelAppointment(ctx context.Context, args map[string]any) (map[string]any, *BookingOutcome, error) {
	appt, err := e.engine.Cancel(ctx, stringArg(args, "referenceCode"), stringArg(args, "patientPhone"))
	if err != nil {
		return nil, nil, err
	}

	metrics.Bookings.WithLabelValues("cancelled").Inc()
	payload := map[string]any{
		"status":        "cancelled",
		"referenceCode": appt.ReferenceCode,
	}
	outcome := &BookingOutcome{Action: "cancelled", ReferenceCode: appt.ReferenceCode}
	return payload, outcome, nil
}

func (e *toolExecutor) rescheduleAppointment(ctx context.Context, args map[string]any) (map[string]any, *BookingOutcome, error) {
	day, err := e.parseDate(ctx, stringArg(args, "newDate"))
	if err != nil {
		return nil, nil, err
	}
	startMin, err := parseTimeArg(stringArg(args, "newTime"))
	if err != nil {
		return nil, nil, err
	}

	conf, err := e.engine.Reschedule(ctx, stringArg(args, "referenceCode"), stringArg(args, "patientPhone"), day, startMin)
	if err != nil {
		return nil, nil, err
	}

	metrics.Bookings.WithLabelValues("rescheduled").Inc()
	payload := map[string]any{
		"status":        "rescheduled",
		"referenceCode": conf.Appointment.ReferenceCode,
		"doctorName":    conf.DoctorName,
		"newDate":       stringArg(args, "newDate"),
		"newTime":       stringArg(args, "newTime"),
	}
	outcome := &BookingOutcome{
		Action:        "rescheduled",
		ReferenceCode: conf.Appointment.ReferenceCode,
		DoctorName:    conf.DoctorName,
		StartsAt:      conf.Appointment.StartsAt.Format(time.RFC3339),
	}
	return payload, outcome, nil
}

func (e *toolExecutor) lookupAppointment(ctx context.Context, args map[string]any) (map[string]any, error) {
	appt, patient, err := e.engine.Lookup(ctx, stringArg(args, "referenceCode"), stringArg(args, "patientPhone"))
	if err != nil {
		return nil, err
	}

	cfg, err := e.engine.Settings(ctx)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()

	payload := map[string]any{
		"referenceCode": appt.ReferenceCode,
		"status":        string(appt.Status),
		"date":          appt.StartsAt.In(loc).Format("2006-01-02"),
		"time":          appt.StartsAt.In(loc).Format("15:04"),
		"service":       appt.Service,
		"patientName":   patient.Name,
	}
	if appt.Type == scheduling.TypeWalkIn {
		payload["timePeriod"] = string(appt.TimePeriod)
		payload["walkIn"] = true
	}
	return payload, nil
}

func (e *toolExecutor) lookupPatientByEmail(ctx context.Context, args map[string]any) (map[string]any, error) {
	email := strings.TrimSpace(stringArg(args, "email"))
	if email == "" {
		return nil, &scheduling.ValidationError{Field: "email", Reason: "email is required"}
	}

	patient, err := e.engine.PatientByEmail(ctx, email)
	if errors.Is(err, scheduling.ErrPatientNotFound) {
		return map[string]any{"found": false}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"found":       true,
		"patientName": patient.Name,
		"phoneHint":   phoneHint(patient.Phone),
	}, nil
}

func (e *toolExecutor) findEmergencySlot(ctx context.Context) (map[string]any, error) {
	slot, err := e.engine.EmergencySlot(ctx)
	if errors.Is(err, scheduling.ErrNoSlotAvailable) {
		return map[string]any{
			"available": false,
			"note":      "no emergency slot left today; advise the patient to call the clinic directly",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"available":  true,
		"doctorName": slot.DoctorName,
		"date":       slot.Day.Format("2006-01-02"),
		"time":       clinic.FormatMinutes(slot.StartMin),
	}, nil
}

// clinicOptions serves both the suggest_quick_replies tool and the quick-reply
// renderer: the current services, doctors and upcoming working days.
func (e *toolExecutor) clinicOptions(ctx context.Context) (map[string]any, error) {
	cfg, err := e.engine.Settings(ctx)
	if err != nil {
		return nil, err
	}
	doctors, err := e.engine.Doctors(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(doctors))
	for _, d := range doctors {
		names = append(names, d.Name)
	}
	days := make([]string, 0, 5)
	for _, day := range cfg.NextWorkingDays(time.Now().In(cfg.Location()), 5) {
		days = append(days, day.Format("2006-01-02"))
	}
	return map[string]any{
		"services":        cfg.Services,
		"doctors":         names,
		"nextWorkingDays": days,
	}, nil
}

func (e *toolExecutor) resolveDoctor(ctx context.Context, name string) (*scheduling.Doctor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &scheduling.ValidationError{Field: "doctorName", Reason: "doctor name is required"}
	}

	doctors, err := e.engine.Doctors(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(name)
	for i := range doctors {
		if strings.ToLower(doctors[i].Name) == needle {
			return &doctors[i], nil
		}
	}
	// Tolerate partial forms like "Chen" for "Dr. Chen".
	for i := range doctors {
		if strings.Contains(strings.ToLower(doctors[i].Name), needle) {
			return &doctors[i], nil
		}
	}
	return nil, scheduling.ErrDoctorNotFound
}

func (e *toolExecutor) parseDate(ctx context.Context, raw string) (time.Time, error) {
	cfg, err := e.engine.Settings(ctx)
	if err != nil {
		return time.Time{}, err
	}
	day, err := clinic.ParseClinicDate(raw, cfg.Location())
	if err != nil {
		return time.Time{}, &scheduling.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	return day, nil
}

func parseTimeArg(raw string) (int, error) {
	startMin, err := clinic.ParseClinicTime(raw)
	if err != nil {
		return 0, &scheduling.ValidationError{Field: "time", Reason: "expected HH:MM"}
	}
	return startMin, nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// phoneHint masks all but the last two digits.
func phoneHint(phone string) string {
	if len(phone) <= 2 {
		return phone
	}
	return strings.Repeat("*", len(phone)-2) + phone[len(phone)-2:]
}
