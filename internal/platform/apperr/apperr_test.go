package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestNotFoundError_Is(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFound("patient", uuid.New()))
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected wrapped NotFoundError to match ErrNotFound")
	}
	if !strings.Contains(err.Error(), "patient") {
		t.Errorf("expected resource in message, got %q", err.Error())
	}
}

func TestValidationError_CollectsAll(t *testing.T) {
	ve := &ValidationError{}
	if ve.Err() != nil {
		t.Fatal("expected nil error with no fields")
	}
	ve.Add("first_name", "is required")
	ve.Add("gender", "must be one of %s", "M, F, O")
	err := ve.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if len(ve.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(ve.Fields))
	}
	if !ve.Has("gender") || ve.Has("email") {
		t.Error("Has reported the wrong fields")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Error("expected ValidationError to match ErrInvalid")
	}
	if !strings.Contains(err.Error(), "first_name: is required") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestValidationError_NilErr(t *testing.T) {
	var ve *ValidationError
	if ve.Err() != nil {
		t.Error("expected nil receiver to yield nil error")
	}
}

func TestHTTPError(t *testing.T) {
	ve := &ValidationError{}
	ve.Add("phone_number", "is required")

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", NotFound("doctor", uuid.New()), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("x: %w", ErrNotFound), http.StatusNotFound},
		{"validation", ve, http.StatusUnprocessableEntity},
		{"conflict", fmt.Errorf("x: %w", ErrConflict), http.StatusConflict},
		{"echo error passthrough", echo.NewHTTPError(http.StatusTeapot, "tea"), http.StatusTeapot},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := HTTPError(tt.err)
			if he.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, he.Code)
			}
		})
	}
}

func TestHTTPError_ValidationBody(t *testing.T) {
	ve := &ValidationError{}
	ve.Add("email", "is not a valid address")
	he := HTTPError(ve)
	body, ok := he.Message.(Response)
	if !ok {
		t.Fatalf("expected Response body, got %T", he.Message)
	}
	if len(body.Fields) != 1 || body.Fields[0].Field != "email" {
		t.Errorf("unexpected fields: %+v", body.Fields)
	}
}

func TestHTTPError_InternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	he := HTTPError(cause)
	if he.Internal != cause {
		t.Errorf("expected internal cause to be kept, got %v", he.Internal)
	}
}
