package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/validate"
	"github.com/clinic/clinic/pkg/civil"
)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Patient maps to the patient table.
type Patient struct {
	ID                 uuid.UUID  `json:"id"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	DateOfBirth        civil.Date `json:"date_of_birth"`
	Gender             Gender     `json:"gender"`
	Email              *string    `json:"email,omitempty"`
	PhoneNumber        string     `json:"phone_number"`
	Address            string     `json:"address"`
	MedicalHistory     string     `json:"medical_history"`
	CurrentMedications string     `json:"current_medications"`
	Allergies          string     `json:"allergies"`
	CreatedBy          *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Age is the number of whole years between the date of birth and today.
func (p *Patient) Age(today civil.Date) int {
	return p.DateOfBirth.YearsSince(today)
}

// EmailAddress returns the email or "" when none is on file.
func (p *Patient) EmailAddress() string {
	if p.Email == nil {
		return ""
	}
	return *p.Email
}

// Input is the writable part of a patient as received from clients. Dates
// stay strings here so a malformed one is reported as a field error
// alongside the others instead of failing the whole bind.
type Input struct {
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	DateOfBirth        string `json:"date_of_birth"`
	Gender             string `json:"gender"`
	Email              string `json:"email"`
	PhoneNumber        string `json:"phone_number"`
	Address            string `json:"address"`
	MedicalHistory     string `json:"medical_history"`
	CurrentMedications string `json:"current_medications"`
	Allergies          string `json:"allergies"`
}

// Apply validates in and copies it onto p. p is left untouched when any
// field is invalid.
func (in Input) Apply(p *Patient, phoneRegion string, today civil.Date) error {
	var v apperr.ValidationError

	first := validate.Text(&v, "first_name", in.FirstName, true, 100)
	last := validate.Text(&v, "last_name", in.LastName, true, 100)

	var dob civil.Date
	if in.DateOfBirth == "" {
		v.Add("date_of_birth", "is required")
	} else if d, err := civil.ParseDate(in.DateOfBirth); err != nil {
		v.Add("date_of_birth", "must be a date in YYYY-MM-DD format")
	} else if d.After(today) {
		v.Add("date_of_birth", "cannot be in the future")
	} else {
		dob = d
	}

	gender := Gender(in.Gender)
	if !gender.Valid() {
		v.Add("gender", "must be one of M, F, O")
	}

	email := validate.Email(&v, "email", in.Email, false)
	phone := validate.Phone(&v, "phone_number", in.PhoneNumber, phoneRegion)
	address := validate.Text(&v, "address", in.Address, true, 0)

	if err := v.Err(); err != nil {
		return err
	}

	p.FirstName = first
	p.LastName = last
	p.DateOfBirth = dob
	p.Gender = gender
	p.Email = nil
	if email != "" {
		p.Email = &email
	}
	p.PhoneNumber = phone
	p.Address = address
	p.MedicalHistory = in.MedicalHistory
	p.CurrentMedications = in.CurrentMedications
	p.Allergies = in.Allergies
	return nil
}

// View is the API representation, carrying the derived fields.
type View struct {
	*Patient
	FullName string `json:"full_name"`
	Age      int    `json:"age"`
}

func NewView(p *Patient, today civil.Date) View {
	return View{Patient: p, FullName: p.FullName(), Age: p.Age(today)}
}

// SearchParams filters a patient listing. Query matches first name, last
// name, phone or email, case-insensitively.
type SearchParams struct {
	Query string
}
