package models

import (
	"errors"
	"fmt"
)

// Error codes used across the traversal pipeline. Consumers branch on the
// code, never on the message text.
const (
	ErrCodeTimeout            = "FETCH_TIMEOUT"
	ErrCodeTransport          = "TRANSPORT_FAILED"
	ErrCodeHTTPStatus         = "HTTP_STATUS"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodePermissionDenied   = "PERMISSION_DENIED"
	ErrCodeNotJSON            = "RESPONSE_NOT_JSON"
	ErrCodeNavigation         = "NAVIGATION_FAILED"
	ErrCodeBrowserUnavailable = "BROWSER_UNAVAILABLE"
	ErrCodeBrowserCrash       = "BROWSER_CRASH"
	ErrCodeInvalidInput       = "INVALID_INPUT"
)

// TraversalError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type TraversalError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *TraversalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TraversalError) Unwrap() error {
	return e.Err
}

// NewTraversalError creates a new TraversalError.
func NewTraversalError(code, message string, err error) *TraversalError {
	return &TraversalError{Code: code, Message: message, Err: err}
}

// CodeOf returns the traversal error code carried by err, or "" when err
// has none.
func CodeOf(err error) string {
	var te *TraversalError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
