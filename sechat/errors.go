package sechat

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// Authentication errors
	ErrorNotAuthenticated
	ErrorBadCredentials
	ErrorCaptchaRequired
	ErrorLoginFailed

	// Request errors
	ErrorRateLimited
	ErrorBadResponse
	ErrorTransport

	// Event errors
	ErrorExpectedPostedEvent
	ErrorDecode
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorNotAuthenticated:
		return "not_authenticated"
	case ErrorBadCredentials:
		return "bad_credentials"
	case ErrorCaptchaRequired:
		return "captcha_required"
	case ErrorLoginFailed:
		return "login_failed"
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorBadResponse:
		return "bad_response"
	case ErrorTransport:
		return "transport_error"
	case ErrorExpectedPostedEvent:
		return "expected_posted_event"
	case ErrorDecode:
		return "decode_error"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ChatError is a structured error with code and context.
type ChatError struct {
	Code    ErrorCode
	Message string
	// Status is the HTTP status that produced the error, when one exists.
	Status  int
	Wrapped error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *ChatError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is comparison by code.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new ChatError with the given code and message.
func NewError(code ErrorCode, message string) *ChatError {
	return &ChatError{Code: code, Message: message}
}

// WrapError wraps an existing error with a ChatError.
func WrapError(code ErrorCode, message string, err error) *ChatError {
	return &ChatError{Code: code, Message: message, Wrapped: err}
}

func errorCode(err error) ErrorCode {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrorUnknown
}

// IsRateLimited reports whether err is a rate-limit rejection. Callers
// should back off before retrying the operation.
func IsRateLimited(err error) bool {
	return errorCode(err) == ErrorRateLimited
}

// IsNotAuthenticated reports whether err means login has not completed.
func IsNotAuthenticated(err error) bool {
	return errorCode(err) == ErrorNotAuthenticated
}

// IsAuthError reports whether err is any failure of the login handshake.
func IsAuthError(err error) bool {
	switch errorCode(err) {
	case ErrorNotAuthenticated, ErrorBadCredentials, ErrorCaptchaRequired, ErrorLoginFailed:
		return true
	default:
		return false
	}
}
