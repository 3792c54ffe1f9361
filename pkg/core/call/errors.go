package call

import (
	"errors"
	"fmt"
)

// ErrorType categorizes session and adapter errors.
type ErrorType string

const (
	// ErrDuplicateSession means a session already exists for the call ID.
	ErrDuplicateSession ErrorType = "duplicate_session"
	// ErrUnknownSession means no live session exists for the call ID.
	ErrUnknownSession ErrorType = "unknown_session"
	// ErrOutOfOrderFrame means an audio frame arrived with a stale sequence number.
	ErrOutOfOrderFrame ErrorType = "out_of_order_frame"
	// ErrEngineUnavailable means the speech engine could not be reached.
	ErrEngineUnavailable ErrorType = "engine_unavailable"
	// ErrTimeout means an adapter call exceeded its deadline.
	ErrTimeout ErrorType = "timeout"
	// ErrUnintelligibleAudio means the speech engine could not extract speech.
	ErrUnintelligibleAudio ErrorType = "unintelligible_audio"
	// ErrServiceUnavailable means the reasoning service could not be reached.
	ErrServiceUnavailable ErrorType = "service_unavailable"
	// ErrRateLimited means the reasoning service rejected the request for quota.
	ErrRateLimited ErrorType = "rate_limited"
)

// Error is a typed session or adapter error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	CallID  string    `json:"call_id,omitempty"`
	wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.CallID != "" {
		return fmt.Sprintf("%s: %s (call: %s)", e.Type, e.Message, e.CallID)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error { return e.wrapped }

// NewError creates a typed error.
func NewError(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// WrapError creates a typed error wrapping an underlying cause.
func WrapError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, wrapped: cause}
}

// TypeOf extracts the ErrorType from err, or "" if err is not a *Error.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsType reports whether err is a *Error of the given type.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}
