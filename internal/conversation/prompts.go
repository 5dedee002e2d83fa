package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/novadental/chairside/internal/clinic"
	"github.com/novadental/chairside/internal/scheduling"
)

// languagePack carries every fixed patient-facing string for one language.
// All language handling goes through this table; call sites never branch on
// the language code.
type languagePack struct {
	Name           string
	Apology        string
	ReplyDirective string
}

var languagePacks = map[string]languagePack{
	"en": {
		Name:           "English",
		Apology:        "I'm sorry, something went wrong on my end. Could you try that again, or call the clinic directly?",
		ReplyDirective: "Reply in English.",
	},
	"es": {
		Name:           "Spanish",
		Apology:        "Lo siento, algo salió mal. ¿Podría intentarlo de nuevo o llamar directamente a la clínica?",
		ReplyDirective: "Responde en español.",
	},
	"pt": {
		Name:           "Portuguese",
		Apology:        "Desculpe, algo deu errado. Pode tentar novamente ou ligar diretamente para a clínica?",
		ReplyDirective: "Responda em português.",
	},
	"de": {
		Name:           "German",
		Apology:        "Entschuldigung, da ist etwas schiefgelaufen. Bitte versuchen Sie es erneut oder rufen Sie die Praxis direkt an.",
		ReplyDirective: "Antworte auf Deutsch.",
	},
}

const defaultLanguage = "en"

func packFor(language string) languagePack {
	if pack, ok := languagePacks[strings.ToLower(language)]; ok {
		return pack
	}
	return languagePacks[defaultLanguage]
}

// systemPrompt renders the assistant instructions from live clinic data so
// the model never has to guess hours, doctors or services.
func systemPrompt(cfg *clinic.Settings, doctors []scheduling.Doctor, now time.Time, language string) string {
	pack := packFor(language)
	loc := cfg.Location()

	var doctorLines []string
	for _, d := range doctors {
		line := "- " + d.Name
		if d.Specialty != "" {
			line += " (" + d.Specialty + ")"
		}
		doctorLines = append(doctorLines, line)
	}

	var days []string
	for _, wd := range cfg.WorkingDays {
		days = append(days, wd.String())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the virtual receptionist for %s, a dental clinic.\n\n", cfg.ClinicName)
	fmt.Fprintf(&b, "Today is %s (clinic time).\n", now.In(loc).Format("Monday, 2006-01-02"))
	fmt.Fprintf(&b, "Opening hours: %s-%s on %s. Appointments last %d minutes.\n\n",
		clinic.FormatMinutes(cfg.OpenMin), clinic.FormatMinutes(cfg.CloseMin),
		strings.Join(days, ", "), cfg.SlotMinutes)
	fmt.Fprintf(&b, "Doctors:\n%s\n\n", strings.Join(doctorLines, "\n"))
	fmt.Fprintf(&b, "Services: %s.\n\n", strings.Join(cfg.Services, ", "))
	b.WriteString(`Rules:
- Use the tools for every factual answer about availability, bookings and patients. Never invent slots, reference codes or doctor names.
- Before booking, you must have the patient's real full name and phone number, the doctor, the date and the time. Ask for whatever is missing; never fill in placeholders.
- Check availability before proposing times.
- For cancellations, reschedules and lookups, ask for the reference code and the phone number the booking was made under.
- If a patient reports pain or an urgent problem, use the emergency slot tool.
- When a slot is taken, offer the returned alternatives.
- Be warm and concise. One question at a time.
`)
	b.WriteString("\n" + pack.ReplyDirective + "\n")
	return b.String()
}
