// Package validate holds field checks shared by the patient, doctor and
// identity services. Each check records into an apperr.ValidationError so a
// request reports every bad field at once.
package validate

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Text trims s and records an error when it is empty (if required) or
// longer than max runes. max <= 0 disables the length check.
func Text(v *apperr.ValidationError, field, s string, required bool, max int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			v.Add(field, "is required")
		}
		return s
	}
	if max > 0 && utf8.RuneCountInString(s) > max {
		v.Add(field, "must be at most %d characters", max)
	}
	return s
}

// Phone parses raw in the given default region and returns it in E.164 form.
func Phone(v *apperr.ValidationError, field, raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		v.Add(field, "is required")
		return ""
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		v.Add(field, "is not a valid phone number")
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// Email checks raw is a bare address. Display-name forms are rejected.
func Email(v *apperr.ValidationError, field, raw string, required bool) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			v.Add(field, "is required")
		}
		return ""
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || len(raw) > 254 {
		v.Add(field, "is not a valid email address")
	}
	return raw
}

// Timezone checks name is a loadable IANA zone and defaults it to UTC.
func Timezone(v *apperr.ValidationError, field, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "UTC"
	}
	if _, err := time.LoadLocation(name); err != nil || strings.EqualFold(name, "local") {
		v.Add(field, "is not a known time zone")
	}
	return name
}
