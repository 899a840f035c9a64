package core

import "github.com/pkg/errors"

// FieldError reports an invalid input field, by its JSON name.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned when input fails boundary validation:
// malformed payloads, incomplete submissions or edits on locked records.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	switch {
	case err.Err != nil:
		return err.Err.Error()
	case len(err.Fields) > 0:
		return err.Fields[0].Field + ": " + err.Fields[0].Error
	}
	return ""
}

// FieldMap maps each invalid field to its message; nil when no field is named.
func (err ValidationError) FieldMap() map[string]string {
	if len(err.Fields) == 0 {
		return nil
	}
	flds := make(map[string]string, len(err.Fields))
	for _, fe := range err.Fields {
		flds[fe.Field] = fe.Error
	}
	return flds
}

// shutdownError marks a broken invariant the process cannot recover from,
// e.g. a record store acknowledging writes it did not apply.
type shutdownError struct {
	reason string
}

func NewShutdownError(reason string) error {
	return &shutdownError{reason: reason}
}

func (s shutdownError) Error() string {
	return "shutdown: " + s.reason
}

// IsShutdown reports whether `err` (or its cause) asks for the process to stop.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdownError)
	return ok
}
