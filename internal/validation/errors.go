package validation

import "errors"

// Error is a user-facing validation failure.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &Error{Field: field, Message: message}
}

// IsValidationError reports whether err wraps a validation failure.
func IsValidationError(err error) bool {
	var verr *Error
	return errors.As(err, &verr)
}
