// Package apperr holds the error kinds shared by the domain services and the
// mapping from those kinds to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("validation failed")
	ErrConflict = errors.New("conflict")
)

// NotFoundError reports a referenced record that does not exist.
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

func NotFound(resource string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every invalid field of a request, not just the
// first one found.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Add records a field error.
func (e *ValidationError) Add(field, format string, args ...interface{}) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Has reports whether field already has an error recorded.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Err returns nil when no field errors were recorded.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Response is the JSON body written for domain errors.
type Response struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// HTTPError translates a service error into an echo error. Errors the
// caller has not classified become a 500 with the cause attached for the
// request logger.
func HTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, Response{
			Error:   "validation_failed",
			Message: "one or more fields are invalid",
			Fields:  ve.Fields,
		})
	}

	var nf *NotFoundError
	if errors.As(err, &nf) {
		return echo.NewHTTPError(http.StatusNotFound, Response{Error: "not_found", Message: nf.Error()})
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, Response{Error: "not_found", Message: err.Error()})
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, Response{Error: "conflict", Message: err.Error()})
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, Response{Error: "validation_failed", Message: err.Error()})
	}

	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
