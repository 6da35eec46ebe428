package model

import (
	"fmt"
	"net/mail"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError `json:"fields"`
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first field error. Renderers focus this field.
func (e *ValidationError) First() (FieldError, bool) {
	if len(e.Errors) == 0 {
		return FieldError{}, false
	}
	return e.Errors[0], true
}

// For returns the errors recorded against the given field.
func (e *ValidationError) For(field string) []FieldError {
	var out []FieldError
	for _, fe := range e.Errors {
		if fe.Field == field {
			out = append(out, fe)
		}
	}
	return out
}

// Add appends a field error.
func (e *ValidationError) Add(field, kind, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Kind: kind, Message: message})
}

// Err returns e when it carries errors, nil otherwise.
func (e *ValidationError) Err() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return e
}

// ValidateBooking checks a Booking for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the booking is valid.
func ValidateBooking(b *Booking) error {
	var ve ValidationError

	if strings.TrimSpace(b.EventID) == "" {
		ve.Add("event_id", "required", "is required")
	}
	if b.StartTime.IsZero() {
		ve.Add("start_date", "required", "is required")
	}
	if strings.TrimSpace(b.Timezone) == "" {
		ve.Add("timezone", "required", "is required")
	}
	if b.Duration <= 0 {
		ve.Add("duration", "range", fmt.Sprintf("must be positive, got %d", b.Duration))
	}
	if !b.Status.IsValid() {
		ve.Add("status", "pattern", fmt.Sprintf("invalid value %q", b.Status))
	}

	// Invitees: at least one, each with a name and a parseable email.
	if len(b.Invitees) == 0 {
		ve.Add("invitees", "required", "at least one invitee is required")
	}
	for i, inv := range b.Invitees {
		if strings.TrimSpace(inv.Name) == "" {
			ve.Add(fmt.Sprintf("invitees[%d].name", i), "required", "is required")
		}
		if _, err := mail.ParseAddress(inv.Email); err != nil {
			ve.Add(fmt.Sprintf("invitees[%d].email", i), "pattern", "must be a valid email address")
		}
	}

	return ve.Err()
}

// ValidateEventMeta checks event meta for constraint violations.
func ValidateEventMeta(m *EventMeta) error {
	var ve ValidationError

	if m.Duration < 0 {
		ve.Add("duration", "range", "must not be negative")
	}
	for i, d := range m.Durations {
		if d <= 0 {
			ve.Add(fmt.Sprintf("durations[%d]", i), "range", "must be positive")
		}
	}
	seen := make(map[string]struct{}, len(m.Locations))
	for i, l := range m.Locations {
		if strings.TrimSpace(l.Type) == "" {
			ve.Add(fmt.Sprintf("locations[%d].type", i), "required", "is required")
			continue
		}
		if _, dup := seen[l.Type]; dup {
			ve.Add(fmt.Sprintf("locations[%d].type", i), "pattern", fmt.Sprintf("duplicate location %q", l.Type))
		}
		seen[l.Type] = struct{}{}
	}

	return ve.Err()
}
