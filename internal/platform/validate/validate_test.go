package validate

import (
	"strings"
	"testing"

	"github.com/clinic/clinic/internal/platform/apperr"
)

func TestText(t *testing.T) {
	var v apperr.ValidationError
	if got := Text(&v, "first_name", "  Ada  ", true, 100); got != "Ada" {
		t.Errorf("expected trimmed value, got %q", got)
	}
	Text(&v, "last_name", "   ", true, 100)
	Text(&v, "notes", "", false, 0)
	Text(&v, "first_name_long", strings.Repeat("x", 101), true, 100)

	if !v.Has("last_name") {
		t.Error("expected required error for blank last_name")
	}
	if v.Has("notes") {
		t.Error("optional empty field should not error")
	}
	if !v.Has("first_name_long") {
		t.Error("expected length error")
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		raw, region string
		want        string
		valid       bool
	}{
		{"+12015550123", "US", "+12015550123", true},
		{"(201) 555-0123", "US", "+12015550123", true},
		{"0121 234 5678", "GB", "+441212345678", true},
		{"12345", "US", "", false},
		{"not a phone", "US", "", false},
		{"", "US", "", false},
	}
	for _, tt := range tests {
		var v apperr.ValidationError
		got := Phone(&v, "phone_number", tt.raw, tt.region)
		if tt.valid {
			if v.Err() != nil {
				t.Errorf("Phone(%q): unexpected error %v", tt.raw, v.Err())
			}
			if got != tt.want {
				t.Errorf("Phone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		} else if v.Err() == nil {
			t.Errorf("Phone(%q): expected error", tt.raw)
		}
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		raw      string
		required bool
		ok       bool
	}{
		{"ada@example.com", true, true},
		{"", false, true},
		{"", true, false},
		{"not-an-email", false, false},
		{"Ada <ada@example.com>", false, false},
	}
	for _, tt := range tests {
		var v apperr.ValidationError
		Email(&v, "email", tt.raw, tt.required)
		if (v.Err() == nil) != tt.ok {
			t.Errorf("Email(%q, required=%v): ok=%v, errors=%v", tt.raw, tt.required, tt.ok, v.Fields)
		}
	}
}

func TestTimezone(t *testing.T) {
	var v apperr.ValidationError
	if got := Timezone(&v, "timezone", ""); got != "UTC" {
		t.Errorf("expected UTC default, got %q", got)
	}
	if got := Timezone(&v, "timezone", "America/New_York"); got != "America/New_York" {
		t.Errorf("unexpected zone %q", got)
	}
	if v.Err() != nil {
		t.Fatalf("unexpected errors: %v", v.Fields)
	}
	Timezone(&v, "timezone", "Mars/Olympus_Mons")
	if !v.Has("timezone") {
		t.Error("expected error for unknown zone")
	}
}
