package validation

import (
	"strings"
)

// ValidateName validates a first or last name
func ValidateName(field, name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return invalid(field, field+" is required")
	}

	if len(trimmed) > 100 {
		return invalid(field, field+" is too long (max 100 characters)")
	}

	return nil
}
