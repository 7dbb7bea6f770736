package service

import (
	"errors"
	"fmt"
)

// ErrUnknownWorker is returned when an authenticated identity has no worker
// record
var ErrUnknownWorker = errors.New("unknown worker identity")

// ValidationError reports malformed input. No side effects have happened when
// it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is or wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
