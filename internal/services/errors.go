package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an orchestration failure.
type ErrorKind string

const (
	KindPermissionDenied    ErrorKind = "PermissionDenied"
	KindLocationUnavailable ErrorKind = "LocationUnavailable"
	KindNoContacts          ErrorKind = "NoContacts"
	KindSmsUnavailable      ErrorKind = "SmsUnavailable"
	KindCannotDial          ErrorKind = "CannotDial"
	KindRemoteStore         ErrorKind = "RemoteStoreError"
	KindUnknown             ErrorKind = "Unknown"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
// Store and unknown failures are told apart with KindOf.
var (
	ErrPermissionDenied    = &Error{Kind: KindPermissionDenied}
	ErrLocationUnavailable = &Error{Kind: KindLocationUnavailable}
	ErrNoContacts          = &Error{Kind: KindNoContacts}
	ErrSmsUnavailable      = &Error{Kind: KindSmsUnavailable}
	ErrCannotDial          = &Error{Kind: KindCannotDial}
)

// Error is the single typed failure an orchestration reports. Message is
// user-facing and keeps the substrings the app keys its guidance on.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind, so errors.Is(err, ErrNoContacts) works for any NoContacts error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func permissionDenied() *Error {
	return newError(KindPermissionDenied, nil, "Location permission not granted")
}

func locationUnavailable(err error) *Error {
	return newError(KindLocationUnavailable, err, "Failed to get location: %v", err)
}

func noContacts() *Error {
	return newError(KindNoContacts, nil, "No emergency contacts found. Please add contacts in Settings.")
}

func smsUnavailable() *Error {
	return newError(KindSmsUnavailable, nil, "SMS not available on this device")
}

func cannotDial(err error) *Error {
	if err == nil {
		return newError(KindCannotDial, nil, "Cannot make phone calls on this device")
	}
	return newError(KindCannotDial, err, "Cannot make phone calls on this device: %v", err)
}

func remoteStore(op string, err error) *Error {
	return newError(KindRemoteStore, err, "Failed to %s: %v", op, err)
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// asError passes *Error values through and wraps anything else as Unknown.
func asError(prefix string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(KindUnknown, err, "%s: %v", prefix, err)
}
