package controller

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// Fatal to the controller instance.
	KindConfiguration  ErrorKind = "configuration"
	KindInitialization ErrorKind = "initialization"
	KindDisposed       ErrorKind = "disposed"

	// Recoverable; the controller returns to a usable state.
	KindPermission ErrorKind = "permission"
	KindNotReady   ErrorKind = "not_ready"
	KindStart      ErrorKind = "start"
	KindStop       ErrorKind = "stop"
)

// Error is the one error type surfaced through the error callback.
// Recoverable reports whether this controller instance can still serve
// requests after the failure.
type Error struct {
	Kind        ErrorKind
	Recoverable bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("voice session: %s error", e.Kind)
	}
	return fmt.Sprintf("voice session: %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, recoverable bool, err error) *Error {
	return &Error{Kind: kind, Recoverable: recoverable, Err: err}
}

// KindOf extracts the error kind, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRecoverable reports whether the failure left the controller usable.
// Foreign errors are treated as not recoverable.
func IsRecoverable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Recoverable
}
