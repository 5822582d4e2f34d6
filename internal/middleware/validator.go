package middleware

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
)

// Input validation and sanitization utilities

var (
	contactIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
	ownerIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_.@+-]{1,191}$`)
)

// ValidateContactID checks the call-center contact id format
func ValidateContactID(id string) error {
	if id == "" {
		return audits.Required("contact_id")
	}
	if !contactIDPattern.MatchString(id) {
		return &audits.ValidationError{Field: "contact_id", Reason: "letters, digits and . _ : - only, max 128 chars"}
	}
	return nil
}

// ValidateOwnerID validates principal ids coming from config or users
func ValidateOwnerID(owner string) error {
	if owner == "" {
		return fmt.Errorf("owner ID cannot be empty")
	}
	if !ownerIDPattern.MatchString(owner) {
		return fmt.Errorf("invalid owner ID format")
	}
	return nil
}

// ParseCallDate parses an optional YYYY-MM-DD query value; "" yields zero time.
func ParseCallDate(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(audits.CallDateLayout, v)
	if err != nil {
		return time.Time{}, &audits.ValidationError{Field: field, Reason: "must be YYYY-MM-DD"}
	}
	return d, nil
}

// ParseDateRange parses from/to and rejects inverted ranges
func ParseDateRange(from, to string) (time.Time, time.Time, error) {
	f, err := ParseCallDate("from", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := ParseCallDate("to", to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !f.IsZero() && !t.IsZero() && t.Before(f) {
		return time.Time{}, time.Time{}, &audits.ValidationError{Field: "to", Reason: "must not be before from"}
	}
	return f, t, nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
