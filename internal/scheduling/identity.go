package scheduling

import (
	"strings"
	"unicode"
)

// placeholderTokens are values language models invent under required-parameter
// pressure. A booking carrying one is rejected before any persistence write.
var placeholderTokens = map[string]bool{
	"pending":     true,
	"unknown":     true,
	"test":        true,
	"testing":     true,
	"n/a":         true,
	"na":          true,
	"none":        true,
	"null":        true,
	"nil":         true,
	"tbd":         true,
	"placeholder": true,
	"patient":     true,
	"name":        true,
	"user":        true,
	"customer":    true,
	"anonymous":   true,
	"john doe":    true,
	"jane doe":    true,
}

var placeholderPhones = map[string]bool{
	"000000":     true,
	"111111":     true,
	"123456":     true,
	"1234567":    true,
	"12345678":   true,
	"123456789":  true,
	"1234567890": true,
	"0000000000": true,
	"5555555555": true,
	"9999999999": true,
}

// ValidatePatientName rejects absent, too-short, placeholder, or
// single-word-repeated names.
func ValidatePatientName(name string) error {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 2 {
		return &ValidationError{Field: "patientName", Reason: "name is required"}
	}
	lower := strings.ToLower(trimmed)
	if placeholderTokens[lower] {
		return &ValidationError{Field: "patientName", Reason: "name looks like a placeholder"}
	}
	words := strings.Fields(lower)
	if placeholderTokens[words[0]] {
		return &ValidationError{Field: "patientName", Reason: "name looks like a placeholder"}
	}
	if len(words) > 1 && allSameWord(words) {
		return &ValidationError{Field: "patientName", Reason: "name repeats a single word"}
	}
	return nil
}

// ValidatePatientPhone rejects absent, too-short, or obviously fabricated
// phone numbers.
func ValidatePatientPhone(phone string) error {
	digits := digitsOnly(phone)
	if len(digits) < 6 {
		return &ValidationError{Field: "patientPhone", Reason: "phone number is required"}
	}
	if placeholderPhones[digits] {
		return &ValidationError{Field: "patientPhone", Reason: "phone number looks like a placeholder"}
	}
	if allSameDigit(digits) || isSequentialDigits(digits) {
		return &ValidationError{Field: "patientPhone", Reason: "phone number looks like a placeholder"}
	}
	return nil
}

// PhoneSuffixMatches compares the last six digits of a stored phone against a
// caller-supplied suffix. Used as the second factor on cancel/reschedule.
func PhoneSuffixMatches(storedPhone, suffix string) bool {
	stored := digitsOnly(storedPhone)
	given := digitsOnly(suffix)
	if len(stored) < 6 || len(given) < 6 {
		return false
	}
	return stored[len(stored)-6:] == given[len(given)-6:]
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allSameWord(words []string) bool {
	for _, w := range words[1:] {
		if w != words[0] {
			return false
		}
	}
	return true
}

func allSameDigit(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}

func isSequentialDigits(digits string) bool {
	ascending, descending := true, true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[i-1]+1 {
			ascending = false
		}
		if digits[i] != digits[i-1]-1 {
			descending = false
		}
	}
	return ascending || descending
}
