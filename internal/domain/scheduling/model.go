package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/validate"
	"github.com/clinic/clinic/pkg/civil"
)

// Status is the appointment lifecycle state. Any status may be changed to
// any other; only Cancel is exposed as a dedicated operation.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Appointment maps to the appointment table. Timezone is a display label
// only and never takes part in conflict or past-date checks.
type Appointment struct {
	ID        uuid.UUID  `json:"id"`
	PatientID uuid.UUID  `json:"patient_id"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	Date      civil.Date `json:"appointment_date"`
	Time      civil.Time `json:"appointment_time"`
	Status    Status     `json:"status"`
	Notes     string     `json:"notes"`
	Timezone  string     `json:"timezone"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Detail is an appointment with the display names of both parties, as
// returned by listings.
type Detail struct {
	Appointment
	PatientName string `json:"patient_name"`
	DoctorName  string `json:"doctor_name"`
}

type SlotAvailability struct {
	Time      civil.Time `json:"time"`
	Available bool       `json:"available"`
}

// BookingRequest carries the fields of a book or update call.
type BookingRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      civil.Date
	Time      civil.Time
	Notes     string
	Timezone  string
	// Status is applied when set. New appointments default to SCHEDULED;
	// updates keep the current status.
	Status    *Status
	CreatedBy *uuid.UUID
}

// BookingInput is the request body for booking and updating.
type BookingInput struct {
	PatientID string  `json:"patient_id"`
	DoctorID  string  `json:"doctor_id"`
	Date      string  `json:"appointment_date"`
	Time      string  `json:"appointment_time"`
	Notes     string  `json:"notes"`
	Timezone  string  `json:"timezone"`
	Status    *string `json:"status"`
}

// Parse checks the shape of every field and reports all problems together.
func (in BookingInput) Parse() (BookingRequest, error) {
	var v apperr.ValidationError
	var req BookingRequest

	req.PatientID = parseID(&v, "patient_id", in.PatientID)
	req.DoctorID = parseID(&v, "doctor_id", in.DoctorID)

	if in.Date == "" {
		v.Add("appointment_date", "is required")
	} else if d, err := civil.ParseDate(in.Date); err != nil {
		v.Add("appointment_date", "must be a date in YYYY-MM-DD format")
	} else {
		req.Date = d
	}

	if in.Time == "" {
		v.Add("appointment_time", "is required")
	} else if t, err := civil.ParseTime(in.Time); err != nil {
		v.Add("appointment_time", "must be a time in HH:MM format")
	} else {
		req.Time = t
	}

	if in.Status != nil {
		s := Status(*in.Status)
		if !s.Valid() {
			v.Add("status", "must be one of SCHEDULED, CONFIRMED, CANCELLED, COMPLETED")
		}
		req.Status = &s
	}

	req.Timezone = validate.Timezone(&v, "timezone", in.Timezone)
	req.Notes = in.Notes

	if err := v.Err(); err != nil {
		return BookingRequest{}, err
	}
	return req, nil
}

func parseID(v *apperr.ValidationError, field, raw string) uuid.UUID {
	if raw == "" {
		v.Add(field, "is required")
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		v.Add(field, "must be a valid id")
		return uuid.Nil
	}
	return id
}

// SearchParams filters the appointment listing. Query matches patient or
// doctor first and last names.
type SearchParams struct {
	Query  string
	Status *Status
}
