package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/clinic/clinic/internal/platform/apperr"
)

func validRegister() RegisterInput {
	return RegisterInput{
		Username:        "frontdesk",
		Email:           "desk@clinic.example",
		Password:        "correct-horse",
		PasswordConfirm: "correct-horse",
	}
}

func TestRegisterInput_Validate(t *testing.T) {
	username, email, err := validRegister().Validate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if username != "frontdesk" || email != "desk@clinic.example" {
		t.Errorf("unexpected values %q %q", username, email)
	}
}

func TestRegisterInput_Validate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*RegisterInput)
		field string
	}{
		{"missing username", func(in *RegisterInput) { in.Username = "" }, "username"},
		{"username with space", func(in *RegisterInput) { in.Username = "front desk" }, "username"},
		{"bad email", func(in *RegisterInput) { in.Email = "desk" }, "email"},
		{"short password", func(in *RegisterInput) { in.Password, in.PasswordConfirm = "abc", "abc" }, "password"},
		{"numeric password", func(in *RegisterInput) { in.Password, in.PasswordConfirm = "12345678", "12345678" }, "password"},
		{"password over bcrypt limit", func(in *RegisterInput) {
			long := strings.Repeat("horse-", 13) + "abc"
			in.Password, in.PasswordConfirm = long, long
		}, "password"},
		{"password is username", func(in *RegisterInput) { in.Password, in.PasswordConfirm = "FrontDesk", "FrontDesk" }, "password"},
		{"mismatch", func(in *RegisterInput) { in.PasswordConfirm = "other-horse" }, "password_confirm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegister()
			tt.edit(&in)
			_, _, err := in.Validate()
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !ve.Has(tt.field) {
				t.Errorf("expected error on %s, got %v", tt.field, ve.Fields)
			}
		})
	}
}
