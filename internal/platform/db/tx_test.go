package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: UniqueViolation, ConstraintName: "appointment_active_slot_uniq"}
	wrapped := fmt.Errorf("insert appointment: %w", pgErr)

	if !IsUniqueViolation(wrapped, "") {
		t.Error("expected any-constraint match")
	}
	if !IsUniqueViolation(wrapped, "appointment_active_slot_uniq") {
		t.Error("expected named constraint match")
	}
	if IsUniqueViolation(wrapped, "app_user_username_key") {
		t.Error("expected mismatch on other constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation must not match")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Error("plain error must not match")
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected no transaction in a bare context")
	}
}
