package habit

import (
	"errors"
	"fmt"
)

// ValidationError reports a business-rule violation detected before any write
// reached storage. Reads that find nothing do not produce errors; they return
// absent results instead, so ownership failures stay indistinguishable from
// missing rows.
type ValidationError struct {
	Op     string // operation being validated, e.g. "create habit"
	Reason string
	Err    error // underlying field errors, if any
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError with a literal reason.
func NewValidationError(op, reason string) *ValidationError {
	return &ValidationError{Op: op, Reason: reason}
}

// WrapValidation wraps field-level validation output. It is nil-safe so call
// sites can pass a Validate() result straight through.
func WrapValidation(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Op: op, Reason: "invalid input", Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
