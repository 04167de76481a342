// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values wrapping one of the sentinels below.
// The HTTP layer (handler.writeError) is the only place that maps a
// sentinel to a status code; everything else just wraps with %w.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotConnected means the user has no usable external-device linkage.
	ErrNotConnected = errors.New("not connected")
	// ErrProvider covers non-success responses and timeouts from a third-party API.
	ErrProvider = errors.New("provider error")
)

type AppError struct {
	Err     error  // sentinel, matched with errors.Is
	Message string // human-readable, safe to show to clients
	Field   string // optional: request field that failed validation
	Cause   error  // optional: underlying error, never shown in production
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists: %s", resource, key),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned for bad credentials or a missing/invalid token.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func NotConnected(message string) *AppError {
	return &AppError{
		Err:     ErrNotConnected,
		Message: message,
	}
}

// Provider wraps a failed third-party call. provider names the remote
// system ("dexcom", "openai") and cause is kept for logs only.
func Provider(provider string, cause error) *AppError {
	return &AppError{
		Err:     ErrProvider,
		Message: fmt.Sprintf("%s request failed", provider),
		Cause:   cause,
	}
}
