package audits

import (
	"errors"
	"fmt"
)

// ErrDuplicateContact blocks saving a second audit for the same contact id.
var ErrDuplicateContact = errors.New("contact id already audited")

// ValidationError reports a required field missing before a save or relay.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

// Required builds a ValidationError for a missing field.
func Required(field string) error { return &ValidationError{Field: field} }
