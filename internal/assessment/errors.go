package assessment

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState matches every *InvalidStateError via errors.Is.
	ErrInvalidState = errors.New("invalid session state")
)

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidStateError reports an operation attempted on a session that is no
// longer active.
type InvalidStateError struct {
	SessionID string
	Status    Status
	Op        string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s session %s: status is %s", e.Op, e.SessionID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
