package breadth

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed input or configuration field.
// It is always surfaced; nothing partially valid is ever persisted.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CalculationError reports an unexpected numeric failure during scoring.
// Batch callers record it per record; single-record callers treat it as fatal.
type CalculationError struct {
	Date string
	Err  error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculation failed for %s: %v", e.Date, e.Err)
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}
