package queue

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAllocation        = errors.New("sequence allocation failed")
	ErrNotAlertable      = errors.New("ticket not alertable")
	ErrIntegrity         = errors.New("timestamp integrity violation")
	ErrDependency        = errors.New("dependency failure")
)

// TransitionError reports the status a ticket was actually in when a trigger
// was rejected. It unwraps to ErrInvalidTransition.
type TransitionError struct {
	Current string
	Trigger Trigger
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: trigger %q not allowed from status %q", e.Trigger, e.Current)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// NotAlertableError carries the current status so callers can render a useful
// message. Unwraps to ErrNotAlertable.
type NotAlertableError struct {
	Status string
}

func (e *NotAlertableError) Error() string {
	return fmt.Sprintf("ticket in status %q is not alertable", e.Status)
}

func (e *NotAlertableError) Unwrap() error { return ErrNotAlertable }

// DependencyError wraps a failure from a collaborator (store, notifier). The
// underlying cause is preserved but never interpreted as a business-state
// failure by the core.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

func (e *DependencyError) Is(target error) bool { return target == ErrDependency }
