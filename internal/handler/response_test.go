package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.ValidationFailed("value", "bad"), http.StatusBadRequest, codeValidation},
		{apperror.Unauthorized("no"), http.StatusUnauthorized, codeUnauthorized},
		{apperror.Forbidden("no"), http.StatusForbidden, codeForbidden},
		{apperror.NotFound("user", "u1"), http.StatusNotFound, codeNotFound},
		{apperror.Conflict("user", "a@b.c"), http.StatusConflict, codeConflict},
		{apperror.NotConnected("Dexcom not connected"), http.StatusBadRequest, codeNotConnected},
		{apperror.Provider("dexcom", errors.New("status 500")), http.StatusBadGateway, codeProvider},
		{fmt.Errorf("recording reading: %w", apperror.NotFound("user", "u1")), http.StatusNotFound, codeNotFound},
		{errors.New("disk I/O error"), http.StatusInternalServerError, codeInternal},
	}

	for _, tt := range tests {
		status, code := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestWriteError_ClientErrorCarriesMessageAndField(t *testing.T) {
	rs := Responder{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rr := httptest.NewRecorder()

	rs.writeError(rr, httptest.NewRequest(http.MethodPost, "/api/readings", nil),
		apperror.ValidationFailed("value", "value must be a finite number"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	body := decodeError(t, rr)
	assert.False(t, body.Success)
	assert.Equal(t, codeValidation, body.Code)
	assert.Equal(t, "value", body.Field)
	assert.Equal(t, "value must be a finite number", body.Error)
	assert.Empty(t, body.Detail)
}

func TestWriteError_InternalErrorsAreMasked(t *testing.T) {
	cause := errors.New("sqlite: inserting reading: database is locked")

	t.Run("production", func(t *testing.T) {
		var logs bytes.Buffer
		rs := Responder{Logger: slog.New(slog.NewTextHandler(&logs, nil))}
		rr := httptest.NewRecorder()

		rs.writeError(rr, httptest.NewRequest(http.MethodGet, "/api/readings", nil), cause)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, "An internal error occurred", body.Error)
		assert.Equal(t, codeInternal, body.Code)
		assert.Empty(t, body.Detail)
		assert.Contains(t, logs.String(), "database is locked")
	})

	t.Run("development", func(t *testing.T) {
		rs := Responder{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Debug: true}
		rr := httptest.NewRecorder()

		rs.writeError(rr, httptest.NewRequest(http.MethodGet, "/api/readings", nil), cause)

		body := decodeError(t, rr)
		assert.Equal(t, "An internal error occurred", body.Error)
		assert.Equal(t, cause.Error(), body.Detail)
	})
}

func TestWriteOK(t *testing.T) {
	rr := httptest.NewRecorder()
	writeOK(rr, http.StatusCreated, envelope{"reading_id": "r1"})

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"success":true,"reading_id":"r1"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	writeOK(rr, http.StatusOK, nil)
	assert.JSONEq(t, `{"success":true}`, rr.Body.String())
}

type sampleRequest struct {
	Name  string `json:"full_name" validate:"required,max=10"`
	Email string `json:"email"     validate:"required,email"`
	Role  string `json:"role"      validate:"omitempty,oneof=patient doctor"`
	Age   *int   `json:"age"       validate:"omitempty,gte=0"`
	Born  string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		field   string
		message string
	}{
		{"empty body", "", "body", "request body is required"},
		{"malformed", `{"full_name":`, "body", "request body must be valid JSON"},
		{"wrong type", `{"full_name":7}`, "body", "request body must be valid JSON"},
		{"missing required", `{"email":"a@b.co"}`, "full_name", "full_name is required"},
		{"bad email", `{"full_name":"Pat","email":"nope"}`, "email", "email must be a valid email address"},
		{"too long", `{"full_name":"Patricia Long","email":"a@b.co"}`, "full_name", "full_name must be at most 10"},
		{"bad role", `{"full_name":"Pat","email":"a@b.co","role":"admin"}`, "role", "role must be one of: patient doctor"},
		{"negative", `{"full_name":"Pat","email":"a@b.co","age":-1}`, "age", "age must be 0 or greater"},
		{"bad date", `{"full_name":"Pat","email":"a@b.co","date_of_birth":"05/06/1990"}`, "date_of_birth", "date_of_birth must match 2006-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst sampleRequest

			err := decodeJSON(httptest.NewRecorder(), req, &dst)

			require.ErrorIs(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestDecodeJSON_Valid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"full_name":"Pat","email":"a@b.co","role":"doctor","age":40,"date_of_birth":"1985-02-03"}`))
	var dst sampleRequest

	require.NoError(t, decodeJSON(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "Pat", dst.Name)
	require.NotNil(t, dst.Age)
	assert.Equal(t, 40, *dst.Age)
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	big := `{"full_name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	var dst sampleRequest

	err := decodeJSON(httptest.NewRecorder(), req, &dst)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "request body is too large", appErr.Message)
}

func TestQueryInt(t *testing.T) {
	n, err := queryInt(httptest.NewRequest(http.MethodGet, "/?days=14", nil), "days")
	require.NoError(t, err)
	assert.Equal(t, 14, n)

	n, err = queryInt(httptest.NewRequest(http.MethodGet, "/", nil), "days")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = queryInt(httptest.NewRequest(http.MethodGet, "/?days=two", nil), "days")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
