package workflow

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a record is absent from the loaded set or the store.
	ErrNotFound = errors.New("workflow record not found")

	// ErrNotEditable is returned when the payload of a record can no longer be modified.
	ErrNotEditable = errors.New("record can no longer be modified")

	errUnvalidated = errors.New("transition was not validated")
)

// ValidationKind tells why a transition was refused.
type ValidationKind string

const (
	CommentRequired   ValidationKind = "comment_required"
	IllegalTransition ValidationKind = "illegal_transition"
	Unauthorized      ValidationKind = "unauthorized"
)

// ValidationError is a pre-flight transition refusal. It is never retried.
type ValidationError struct {
	Kind   ValidationKind
	State  Status
	Action Action
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case CommentRequired:
		return fmt.Sprintf("a comment is required to %s", e.Action)
	case IllegalTransition:
		return fmt.Sprintf("cannot %s a record in state %q", e.Action, e.State)
	case Unauthorized:
		if e.State == "" {
			return fmt.Sprintf("not allowed to %s this record", e.Action)
		}
		return fmt.Sprintf("not allowed to %s a record in state %q", e.Action, e.State)
	}
	return string(e.Kind)
}

// IsValidationKind reports whether `err` is a ValidationError of the given kind.
func IsValidationKind(err error, kind ValidationKind) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr) && vErr.Kind == kind
}

// StoreError wraps a failure of the record store (network, permission, serialization...).
type StoreError struct {
	Op  string
	Err error
}

func newStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
