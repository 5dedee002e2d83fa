package scheduling

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDoctorNotFound      = errors.New("scheduling: doctor not found")
	ErrPatientNotFound     = errors.New("scheduling: patient not found")
	ErrAppointmentNotFound = errors.New("scheduling: appointment not found")

	// ErrDuplicateReference surfaces the reference-code unique index; the
	// generator retries on it rather than pre-checking.
	ErrDuplicateReference = errors.New("scheduling: duplicate reference code")

	// ErrVerificationFailed is deliberately vague: it does not reveal whether
	// the reference code exists but the phone is wrong, or the code does not
	// exist at all.
	ErrVerificationFailed = errors.New("scheduling: appointment verification failed")

	ErrAlreadyCancelled = errors.New("scheduling: appointment already cancelled")
	ErrNoSlotAvailable  = errors.New("scheduling: no slot available")
)

// ValidationError rejects implausible patient-supplied fields before any
// persistence write. It is recovered conversationally, never as an HTTP
// failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scheduling: invalid %s: %s", e.Field, e.Reason)
}

// SlotUnavailableError reports a booking conflict, optionally carrying up to
// three alternative slots so the assistant can offer a same-turn rebooking.
type SlotUnavailableError struct {
	Reason       string
	Alternatives []Slot
}

func (e *SlotUnavailableError) Error() string {
	if len(e.Alternatives) == 0 {
		return fmt.Sprintf("scheduling: slot unavailable: %s", e.Reason)
	}
	names := make([]string, 0, len(e.Alternatives))
	for _, alt := range e.Alternatives {
		names = append(names, alt.Day.Format("2006-01-02")+" "+formatMinutes(alt.StartMin))
	}
	return fmt.Sprintf("scheduling: slot unavailable: %s (alternatives: %s)", e.Reason, strings.Join(names, ", "))
}

func formatMinutes(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}
