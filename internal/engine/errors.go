package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/toglayer/internal/ir"
)

// RuntimeError represents an event the engine could not route.
//
// Policy no-ops (quick-tap suppression, repeated presses, stale deferred
// actions) are not errors; they are journaled as transitions.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Instance identifies the behavior instance, if any.
	Instance ir.InstanceID

	// Kind is the event kind that failed.
	Kind ir.EventKind
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownInstance indicates an event named an instance that is not configured.
	ErrCodeUnknownInstance RuntimeErrorCode = "UNKNOWN_INSTANCE"

	// ErrCodeInvalidEvent indicates the payload does not match the event kind.
	ErrCodeInvalidEvent RuntimeErrorCode = "INVALID_EVENT"

	// ErrCodeUnknownEventKind indicates an event kind the engine does not route.
	ErrCodeUnknownEventKind RuntimeErrorCode = "UNKNOWN_EVENT_KIND"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Instance != "" {
		return fmt.Sprintf("%s: %s (instance=%s)", e.Code, e.Message, e.Instance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownInstance returns true if err is, or wraps, an unknown-instance error.
func IsUnknownInstance(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnknownInstance
	}
	return false
}

// IsInvalidEvent returns true if err is, or wraps, an invalid-event error.
func IsInvalidEvent(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidEvent || re.Code == ErrCodeUnknownEventKind
	}
	return false
}

func newUnknownInstanceError(kind ir.EventKind, instance ir.InstanceID) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeUnknownInstance,
		Message:  "no behavior instance with this name",
		Instance: instance,
		Kind:     kind,
	}
}

func newInvalidEventError(kind ir.EventKind) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidEvent,
		Message: fmt.Sprintf("%s event missing payload", kind),
		Kind:    kind,
	}
}
