package core

import (
	"fmt"
)

// Error is the canonical error for VoxForm session and extraction failures.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
	Code    string    `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrInvalidRequest covers caller mistakes: bad mode, nil request,
	// a send while another send is in flight.
	ErrInvalidRequest ErrorType = "invalid_request_error"
	// ErrPermissionDenied is a refused microphone grant.
	ErrPermissionDenied ErrorType = "permission_denied"
	// ErrDeviceUnavailable is a missing or busy audio device.
	ErrDeviceUnavailable ErrorType = "device_unavailable"
	// ErrConnectionFailed is a transport failure opening or holding the
	// duplex session.
	ErrConnectionFailed ErrorType = "connection_failed"
	// ErrMalformedEvent is a server frame whose payload shape is unexpected.
	ErrMalformedEvent ErrorType = "malformed_event"
	// ErrAPI is a remote model error surfaced through the connection.
	ErrAPI ErrorType = "api_error"
	// ErrApplication is any other failure during send/receive processing.
	ErrApplication ErrorType = "application_fault"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewPermissionDeniedError creates a microphone permission error.
func NewPermissionDeniedError(message string) *Error {
	return &Error{Type: ErrPermissionDenied, Message: message}
}

// NewDeviceUnavailableError creates an audio device error.
func NewDeviceUnavailableError(message string) *Error {
	return &Error{Type: ErrDeviceUnavailable, Message: message}
}

// NewConnectionFailedError creates a transport-level session error.
func NewConnectionFailedError(message string, underlying error) *Error {
	e := &Error{Type: ErrConnectionFailed, Message: message}
	if underlying != nil {
		e.Message = fmt.Sprintf("%s: %v", message, underlying)
	}
	return e
}

// NewMalformedEventError creates an unexpected-payload error.
func NewMalformedEventError(message string) *Error {
	return &Error{Type: ErrMalformedEvent, Message: message}
}

// NewAPIError creates a generic remote API error.
func NewAPIError(message string) *Error {
	return &Error{Type: ErrAPI, Message: message}
}

// NewApplicationError wraps an unexpected processing failure.
func NewApplicationError(underlying error) *Error {
	return &Error{Type: ErrApplication, Message: fmt.Sprintf("%v", underlying)}
}

// IsFatalToSession reports whether the error forces the live session back
// to idle. Malformed events are skipped, everything else tears down.
func (e *Error) IsFatalToSession() bool {
	switch e.Type {
	case ErrMalformedEvent:
		return false
	default:
		return true
	}
}
