package engine

import (
	"errors"
	"fmt"

	"campaignline/internal/lifecycle"
)

// ErrConflict marks a retryable collision with a concurrent writer.
var ErrConflict = errors.New("conflict")

// ValidationError rejects a request before any mutation. Field names the offending
// input, Reason the unmet requirement.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func invalid(field, reason string, args ...any) error {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &ValidationError{Field: field, Reason: reason}
}

func required(field string) error {
	return &ValidationError{Field: field, Reason: "required"}
}

// IsValidation reports whether err rejects the request without side effects,
// including illegal lifecycle transitions.
func IsValidation(err error) bool {
	var ve *ValidationError
	var te *lifecycle.TransitionError
	return errors.As(err, &ve) || errors.As(err, &te)
}
