package conversation

// Tool names the model can call. Terminal tools commit state; after one runs,
// the loop grants the model exactly one closing call and stops.
const (
	toolCheckAvailability     = "check_availability"
	toolLookupAppointment     = "lookup_appointment"
	toolLookupPatientByEmail  = "lookup_patient_by_email"
	toolFindEmergencySlot     = "find_emergency_slot"
	toolSuggestQuickReplies   = "suggest_quick_replies"
	toolBookAppointment       = "book_appointment"
	toolBookWalkIn            = "book_walkin"
	toolCancelAppointment     = "cancel_appointment"
	toolRescheduleAppointment = "reschedule_appointment"
)

var terminalTools = map[string]bool{
	toolBookAppointment:       true,
	toolBookWalkIn:            true,
	toolCancelAppointment:     true,
	toolRescheduleAppointment: true,
}

func dateProperty(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description + " in YYYY-MM-DD format, clinic-local",
	}
}

func timeProperty(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description + " in HH:MM 24-hour format, clinic-local",
	}
}

var checkAvailabilityTool = ToolSpec{
	Name:        toolCheckAvailability,
	Description: "List the free appointment slots for a doctor on a specific date. Always call this before proposing times.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"doctorName": map[string]any{
				"type":        "string",
				"description": "Doctor's name as listed by the clinic",
			},
			"date": dateProperty("Date to check"),
		},
		"required": []string{"doctorName", "date"},
	},
}

var bookAppointmentTool = ToolSpec{
	Name:        toolBookAppointment,
	Description: "Book an exact-slot appointment. Only call once the patient has confirmed doctor, date, time, name and phone number. Never invent missing values.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"doctorName": map[string]any{
				"type":        "string",
				"description": "Doctor's name",
			},
			"date": dateProperty("Appointment date"),
			"time": timeProperty("Appointment start time"),
			"patientName": map[string]any{
				"type":        "string",
				"description": "Patient's full name exactly as given by the patient",
			},
			"patientPhone": map[string]any{
				"type":        "string",
				"description": "Patient's phone number exactly as given by the patient",
			},
			"patientEmail": map[string]any{
				"type":        "string",
				"description": "Patient's email address, if offered",
			},
			"service": map[string]any{
				"type":        "string",
				"description": "Requested service, e.g. cleaning or checkup",
			},
			"notes": map[string]any{
				"type":        "string",
				"description": "Free-form notes from the patient",
			},
		},
		"required": []string{"doctorName", "date", "time", "patientName", "patientPhone"},
	},
}

var bookWalkInTool = ToolSpec{
	Name:        toolBookWalkIn,
	Description: "Register a walk-in visit for a rough period of a day instead of an exact slot. The patient will be seen by whichever doctor is free.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"date": dateProperty("Visit date"),
			"timePeriod": map[string]any{
				"type":        "string",
				"description": "Rough period of the day",
				"enum":        []string{"morning", "afternoon", "evening"},
			},
			"patientName": map[string]any{
				"type":        "string",
				"description": "Patient's full name exactly as given",
			},
			"patientPhone": map[string]any{
				"type":        "string",
				"description": "Patient's phone number exactly as given",
			},
			"patientEmail": map[string]any{
				"type":        "string",
				"description": "Patient's email address, if offered",
			},
			"service": map[string]any{
				"type":        "string",
				"description": "Requested service",
			},
		},
		"required": []string{"date", "timePeriod", "patientName", "patientPhone"},
	},
}

var cancelAppointmentTool = ToolSpec{
	Name:        toolCancelAppointment,
	Description: "Cancel an appointment. Requires the reference code and the patient's phone number for verification.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"referenceCode": map[string]any{
				"type":        "string",
				"description": "Reference code like APT-X2M9",
			},
			"patientPhone": map[string]any{
				"type":        "string",
				"description": "Phone number the appointment was booked under",
			},
		},
		"required": []string{"referenceCode", "patientPhone"},
	},
}

var rescheduleAppointmentTool = ToolSpec{
	Name:        toolRescheduleAppointment,
	Description: "Move an existing appointment to a new date and time. Requires the reference code and the patient's phone number for verification.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"referenceCode": map[string]any{
				"type":        "string",
				"description": "Reference code like APT-X2M9",
			},
			"patientPhone": map[string]any{
				"type":        "string",
				"description": "Phone number the appointment was booked under",
			},
			"newDate": dateProperty("New appointment date"),
			"newTime": timeProperty("New appointment start time"),
		},
		"required": []string{"referenceCode", "patientPhone", "newDate", "newTime"},
	},
}

var lookupAppointmentTool = ToolSpec{
	Name:        toolLookupAppointment,
	Description: "Look up an existing appointment. Requires the reference code and the patient's phone number for verification.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"referenceCode": map[string]any{
				"type":        "string",
				"description": "Reference code like APT-X2M9",
			},
			"patientPhone": map[string]any{
				"type":        "string",
				"description": "Phone number the appointment was booked under",
			},
		},
		"required": []string{"referenceCode", "patientPhone"},
	},
}

var lookupPatientByEmailTool = ToolSpec{
	Name:        toolLookupPatientByEmail,
	Description: "Check whether a patient record exists for an email address, for returning patients who do not remember their details.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"email": map[string]any{
				"type":        "string",
				"description": "Patient's email address",
			},
		},
		"required": []string{"email"},
	},
}

var findEmergencySlotTool = ToolSpec{
	Name:        toolFindEmergencySlot,
	Description: "Find the earliest available slot today across all doctors for a patient in pain or with an urgent problem.",
	InputSchema: map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	},
}

var suggestQuickRepliesTool = ToolSpec{
	Name:        toolSuggestQuickReplies,
	Description: "Fetch the clinic's current option lists (services, doctors, upcoming working days) to enumerate choices for the patient.",
	InputSchema: map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	},
}

func allTools() []ToolSpec {
	return []ToolSpec{
		checkAvailabilityTool,
		lookupAppointmentTool,
		lookupPatientByEmailTool,
		findEmergencySlotTool,
		suggestQuickRepliesTool,
		bookAppointmentTool,
		bookWalkInTool,
		cancelAppointmentTool,
		rescheduleAppointmentTool,
	}
}
