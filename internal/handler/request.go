package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/auth"
	"github.com/geniesugar/glucose-monitor/internal/service"
)

// maxBodyBytes caps request bodies. The largest legitimate body is a
// comment of a few KB.
const maxBodyBytes = 1 << 20

// validate checks request structs before they reach a service. Field names
// in error messages come from the json tag, so clients see "full_name"
// rather than "FullName".
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads the body into dst and runs struct validation.
//
// Decode errors and validation failures come back as apperror validation
// errors, so callers can pass them straight to writeError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is required")
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", "request body is too large")
		default:
			return apperror.ValidationFailed("body", "request body must be valid JSON")
		}
	}

	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError reports the first failing field.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("body", "request body is invalid")
	}

	fe := fieldErrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		msg = fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		msg = fmt.Sprintf("%s must be %s or greater", field, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "datetime":
		msg = fmt.Sprintf("%s must match %s", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return apperror.ValidationFailed(field, msg)
}

// queryInt parses an optional integer query parameter. A missing parameter
// returns 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

// callerFrom reads the identity RequireAuth put on the context.
func callerFrom(r *http.Request) (service.Caller, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return service.Caller{}, apperror.Unauthorized("Authentication required")
	}
	role, _ := auth.RoleFromContext(r.Context())
	return service.Caller{ID: id, Role: role}, nil
}
