package handler

// RESPONSE HELPERS:
// Every endpoint answers with the same envelope:
//
//	success: {"success": true, ...payload fields}
//	failure: {"success": false, "error": "<message>", "code": "<kind>"}
//
// Clients branch on "success" and, for failures, on the machine-readable
// "code". The HTTP status carries the same information for proxies and logs.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
)

// Error codes returned in the "code" field.
const (
	codeValidation   = "validation_error"
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeNotConnected = "not_connected"
	codeProvider     = "provider_error"
	codeInternal     = "internal_error"
)

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Detail  string `json:"detail,omitempty"` // development only
}

// envelope is a success body. writeOK adds "success": true.
type envelope map[string]any

// Responder writes response envelopes. Every handler embeds one.
//
// With Debug set (APP_ENV=development) the internal error text of 5xx
// responses is copied into "detail". It is never sent in production because
// it may contain SQL, file paths or provider responses.
type Responder struct {
	Logger *slog.Logger
	Debug  bool
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS: headers and status must be set before the body is
// written; once Encode writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeOK(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, status, body)
}

// statusFor maps a domain error to its HTTP status and error code.
//
// errors.Is walks the whole chain, so a service error such as
//
//	fmt.Errorf("recording reading: %w", apperror.ValidationFailed(...))
//
// still matches apperror.ErrValidation here.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, codeConflict
	case errors.Is(err, apperror.ErrNotConnected):
		return http.StatusBadRequest, codeNotConnected
	case errors.Is(err, apperror.ErrProvider):
		return http.StatusBadGateway, codeProvider
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// writeError is the only place that turns an error into an HTTP response.
func (rs Responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	body := ErrorResponse{Success: false, Code: code, Error: "An internal error occurred"}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		body.Error = appErr.Message
		body.Field = appErr.Field
	}

	if status >= http.StatusInternalServerError {
		if rs.Debug {
			body.Detail = err.Error()
		}
		rs.logger().Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, body)
}

func (rs Responder) logger() *slog.Logger {
	if rs.Logger == nil {
		return slog.Default()
	}
	return rs.Logger
}
