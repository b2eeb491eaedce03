package doctor

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/validate"
)

type Specialization string

const (
	GeneralPractice Specialization = "GP"
	Cardiology      Specialization = "CARD"
	Dermatology     Specialization = "DERM"
	Neurology       Specialization = "NEUR"
	Orthopedics     Specialization = "ORTH"
	Pediatrics      Specialization = "PEDI"
	Psychiatry      Specialization = "PSYC"
	Surgery         Specialization = "SURG"
	OtherSpecialty  Specialization = "OTHER"
)

var specializationNames = map[Specialization]string{
	GeneralPractice: "General Practice",
	Cardiology:      "Cardiology",
	Dermatology:     "Dermatology",
	Neurology:       "Neurology",
	Orthopedics:     "Orthopedics",
	Pediatrics:      "Pediatrics",
	Psychiatry:      "Psychiatry",
	Surgery:         "Surgery",
	OtherSpecialty:  "Other",
}

func (s Specialization) Valid() bool {
	_, ok := specializationNames[s]
	return ok
}

// Display is the human-readable specialty name.
func (s Specialization) Display() string {
	return specializationNames[s]
}

// Doctor maps to the doctor table. A doctor with IsAvailable unset takes no
// new bookings; existing appointments are unaffected.
type Doctor struct {
	ID             uuid.UUID      `json:"id"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Specialization Specialization `json:"specialization"`
	Email          string         `json:"email"`
	PhoneNumber    string         `json:"phone_number"`
	IsAvailable    bool           `json:"is_available"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (d *Doctor) FullName() string {
	return "Dr. " + d.FirstName + " " + d.LastName
}

// Input is the writable part of a doctor. IsAvailable is a pointer so an
// omitted field keeps the current value (true for new doctors).
type Input struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Specialization string `json:"specialization"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	IsAvailable    *bool  `json:"is_available"`
}

func (in Input) Apply(d *Doctor, phoneRegion string) error {
	var v apperr.ValidationError

	first := validate.Text(&v, "first_name", in.FirstName, true, 100)
	last := validate.Text(&v, "last_name", in.LastName, true, 100)

	spec := Specialization(in.Specialization)
	if !spec.Valid() {
		v.Add("specialization", "must be one of GP, CARD, DERM, NEUR, ORTH, PEDI, PSYC, SURG, OTHER")
	}

	email := validate.Email(&v, "email", in.Email, true)
	phone := validate.Phone(&v, "phone_number", in.PhoneNumber, phoneRegion)

	if err := v.Err(); err != nil {
		return err
	}

	d.FirstName = first
	d.LastName = last
	d.Specialization = spec
	d.Email = email
	d.PhoneNumber = phone
	if in.IsAvailable != nil {
		d.IsAvailable = *in.IsAvailable
	}
	return nil
}

type View struct {
	*Doctor
	FullName              string `json:"full_name"`
	SpecializationDisplay string `json:"specialization_display"`
}

func NewView(d *Doctor) View {
	return View{Doctor: d, FullName: d.FullName(), SpecializationDisplay: d.Specialization.Display()}
}

// SearchParams filters a doctor listing. Query matches first name, last
// name, specialization code or email. Available, when set, restricts to
// doctors taking new bookings.
type SearchParams struct {
	Query     string
	Available *bool
}
