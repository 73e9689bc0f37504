// Package apperr defines the client-side error taxonomy: transport failures
// from the remote gateway, local validation failures, and the suppressed-action
// signal used for tier gating.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is a network or HTTP failure reported by the gateway.
// Status is 0 when no response was received.
type TransportError struct {
	Status  int
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transport: %s", e.Message)
	}
	return fmt.Sprintf("transport (%d): %s", e.Status, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// NewTransportError builds a TransportError, falling back to "HTTP <status>"
// when the remote side gave no message.
func NewTransportError(status int, message string, cause error) *TransportError {
	if message == "" {
		if status > 0 {
			message = fmt.Sprintf("HTTP %d", status)
		} else {
			message = "network error"
		}
	}
	return &TransportError{Status: status, Message: message, Cause: cause}
}

// ValidationError is a client-side precondition failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

var (
	// ErrNotAuthenticated is returned by intents that need a session.
	ErrNotAuthenticated = &ValidationError{Message: "please sign in to continue"}

	// ErrActionDisabled means the viewer's tier hides the action. It is not
	// reported as a failure; the view renders the action as disabled.
	ErrActionDisabled = errors.New("action unavailable for this subscription tier")
)

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StatusOf returns the HTTP status carried by a TransportError, or 0.
func StatusOf(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

// IsUnauthorized reports a 401 from the remote side.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// UserMessage picks the text shown to the user for err.
func UserMessage(err error, fallback string) string {
	var te *TransportError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if fallback != "" {
		return fallback
	}
	if err != nil {
		return err.Error()
	}
	return "An error occurred"
}
