package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	// KindTimeout means the request did not finish within its budget.
	KindTimeout ErrorKind = "timeout"

	// KindHTTPStatus means the catalog answered with a non-2xx status.
	KindHTTPStatus ErrorKind = "http_status"

	// KindUnknown covers every other transport failure.
	KindUnknown ErrorKind = "unknown"

	// KindOffline means no request was made because the catalog is unreachable.
	KindOffline ErrorKind = "offline"
)

// User-facing messages per kind.
const (
	MessageTimeout = "Request timeout - Connection too slow"
	MessageUnknown = "Unable to fetch data"
	MessageOffline = "No network connection"
)

var (
	// ErrNoConnection is wrapped by offline errors.
	ErrNoConnection = errors.New("no network connection")

	// ErrRetryExhausted is wrapped when every retry attempt failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// Error is the typed failure returned in a Result.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("petstore %s error", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown in place of the pet list.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindTimeout:
		return MessageTimeout
	case KindHTTPStatus:
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	case KindOffline:
		return MessageOffline
	default:
		return MessageUnknown
	}
}

// NewOfflineError returns the error used when a fetch is skipped while offline.
func NewOfflineError() *Error {
	return &Error{Kind: KindOffline, Err: ErrNoConnection}
}

// NewHTTPError returns an error for a non-2xx response.
func NewHTTPError(statusCode int, status string) *Error {
	return &Error{Kind: KindHTTPStatus, StatusCode: statusCode, Message: status}
}

// classifyError maps a transport error to a typed Error.
func classifyError(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}

	return &Error{Kind: KindUnknown, Err: err}
}

// shouldRetry reports whether a failure may succeed on another attempt.
// 4xx, timeouts and cancellation are final.
func shouldRetry(err *Error) bool {
	switch err.Kind {
	case KindHTTPStatus:
		return err.StatusCode >= 500
	case KindUnknown:
		return !errors.Is(err, context.Canceled)
	default:
		return false
	}
}
