package params

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a validation failure.
type ErrorKind string

const (
	// KindMissingField indicates a required field was absent or null.
	KindMissingField ErrorKind = "MissingField"
	// KindInvalidType indicates a field had the wrong JSON type or could not be coerced.
	KindInvalidType ErrorKind = "InvalidType"
	// KindInvalidEnum indicates a value outside the global set of accepted values.
	KindInvalidEnum ErrorKind = "InvalidEnum"
	// KindOutOfRange indicates a length or numeric bound was violated.
	KindOutOfRange ErrorKind = "OutOfRange"
	// KindUnsupported indicates a globally valid value the resolved model does not accept.
	KindUnsupported ErrorKind = "Unsupported"
)

// ValidationError is a field-attributed rejection of a generation request.
type ValidationError struct {
	Field   string    `json:"field"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// AsValidationError unwraps err to a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func newError(field string, kind ErrorKind, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}
