package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a key is absent.
	ErrNotFound = errors.New("not found")
	// ErrGeometry wraps failures of the polygon computation.
	ErrGeometry = errors.New("geometry computation failed")
)

// ValidationError is a rejected request input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
