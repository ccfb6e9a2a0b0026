package documents

import (
	"errors"
	"fmt"
)

// ErrDoctorSignatureRequired is returned when a finalize request arrives
// without doctor ink. Nothing is written when this is returned.
var ErrDoctorSignatureRequired = errors.New("doctor signature is required")

// ErrNotFound is returned when a document record does not exist.
var ErrNotFound = errors.New("document not found")

// ValidationError marks caller input that cannot be processed.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalidf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// RegistryError wraps persistence failures from the document registry.
type RegistryError struct {
	Op  string
	Err error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }
