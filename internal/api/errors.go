package api

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates input was rejected locally before any request was sent.
	ErrValidation = errors.New("validation failed")
	// ErrAuth indicates the backend rejected submitted credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrSessionExpired indicates an authenticated call returned 401. The
	// credential store has already been cleared when this is returned.
	ErrSessionExpired = errors.New("session expired")
	// ErrNetwork indicates a timeout or connectivity failure.
	ErrNetwork = errors.New("network unavailable")
	// ErrServer indicates a 5xx response or a malformed payload.
	ErrServer = errors.New("server error")
	// ErrRequest indicates any other 4xx rejection.
	ErrRequest = errors.New("request rejected")
)

// DefaultErrorMessage is shown when the backend did not supply a message.
const DefaultErrorMessage = "Something went wrong. Please try again."

// Error carries a classified failure together with the message to show the user.
type Error struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = DefaultErrorMessage
	}
	if e.Status != 0 {
		return fmt.Sprintf("%v (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%v: %s", e.Kind, msg)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether offering a manual retry makes sense.
func (e *Error) Retryable() bool {
	return errors.Is(e.Kind, ErrNetwork) || errors.Is(e.Kind, ErrServer)
}

// ValidationError builds a local validation failure.
func ValidationError(message string) *Error {
	return &Error{Kind: ErrValidation, Message: message}
}

// Message returns the user-visible text for err, falling back to fallback
// when err carries none.
func Message(err error, fallback string) string {
	if fallback == "" {
		fallback = DefaultErrorMessage
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// IsRetryable reports whether err should be offered a manual retry.
func IsRetryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}
