package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/pkg/civil"
)

type AppointmentRepository interface {
	// Create and Update return *SlotTakenError when the write would give
	// the doctor two live appointments in one slot.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	HasConflict(ctx context.Context, doctorID uuid.UUID, date civil.Date, t civil.Time, exclude *uuid.UUID) (bool, error)
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Detail, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Detail, int, error)
	// UpcomingByDoctor lists non-cancelled appointments on or after from.
	UpcomingByDoctor(ctx context.Context, doctorID uuid.UUID, from civil.Date, limit int) ([]*Detail, error)
}

// PatientLookup resolves patients; *patient.Service satisfies it.
type PatientLookup interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// DoctorLookup resolves doctors; *doctor.Service satisfies it.
type DoctorLookup interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}
