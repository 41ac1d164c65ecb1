package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldValidator checks one payload field. It receives the whole payload so
// cross-field rules (date ordering) can be expressed. A nil return means the
// value is acceptable.
type FieldValidator func(field string, value any, payload map[string]any) error

// FieldSpec declares one required or optional input field of a form step.
type FieldSpec struct {
	Name       string           `json:"name"`
	Required   bool             `json:"required"`
	Validators []FieldValidator `json:"-"`
}

// FieldError carries field-level validation detail.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every failed field of one validation pass so the
// caller can correct all of them at once.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}

	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// ParseDate accepts the date formats requests carry: a bare ISO date or a
// full RFC 3339 timestamp.
func ParseDate(value any) (time.Time, error) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected a date string, got %T", value)
	}

	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format %q", s)
}

// ToNumber coerces the numeric representations JSON payloads carry.
func ToNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// PositiveNumber requires a numeric value strictly greater than zero.
func PositiveNumber() FieldValidator {
	return func(field string, value any, _ map[string]any) error {
		n, ok := ToNumber(value)
		if !ok {
			return fmt.Errorf("invalid number format")
		}

		if n <= 0 {
			return fmt.Errorf("must be greater than 0")
		}

		return nil
	}
}

// OneOf requires the value to be a member of the given enumeration.
func OneOf(allowed ...string) FieldValidator {
	return func(field string, value any, _ map[string]any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected a string")
		}

		for _, a := range allowed {
			if s == a {
				return nil
			}
		}

		return fmt.Errorf("must be one of: %s", strings.Join(allowed, ", "))
	}
}

// MinLength requires a trimmed string of at least n characters.
func MinLength(n int) FieldValidator {
	return func(field string, value any, _ map[string]any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected a string")
		}

		if len(strings.TrimSpace(s)) < n {
			return fmt.Errorf("must be at least %d characters", n)
		}

		return nil
	}
}

// EmailAddress requires a minimally well-formed email address.
func EmailAddress() FieldValidator {
	return func(field string, value any, _ map[string]any) error {
		s, ok := value.(string)
		if !ok || !strings.Contains(s, "@") {
			return fmt.Errorf("invalid email address")
		}

		return nil
	}
}

// ISODate requires a parseable date.
func ISODate() FieldValidator {
	return func(field string, value any, _ map[string]any) error {
		if _, err := ParseDate(value); err != nil {
			return fmt.Errorf("invalid date format")
		}

		return nil
	}
}

// DateNotBefore requires the field's date to be on or after the one produced
// by now. Pass time.Now to reject past dates.
func DateNotBefore(now func() time.Time) FieldValidator {
	return func(field string, value any, _ map[string]any) error {
		t, err := ParseDate(value)
		if err != nil {
			return fmt.Errorf("invalid date format")
		}

		if t.Before(now().Truncate(24 * time.Hour)) {
			return fmt.Errorf("cannot be in the past")
		}

		return nil
	}
}

// DateNotEarlierThan requires the field's date to be on or after the date in
// otherField.
func DateNotEarlierThan(otherField string) FieldValidator {
	return func(field string, value any, payload map[string]any) error {
		t, err := ParseDate(value)
		if err != nil {
			return fmt.Errorf("invalid date format")
		}

		other, ok := payload[otherField]
		if !ok {
			return nil // The other field's own spec reports the absence
		}

		o, err := ParseDate(other)
		if err != nil {
			return nil
		}

		if t.Before(o) {
			return fmt.Errorf("must not be before %s", otherField)
		}

		return nil
	}
}
