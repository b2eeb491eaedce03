package scheduling

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/pkg/civil"
)

// PastDateError rejects an appointment whose date and time lie before the
// current instant.
type PastDateError struct {
	Date civil.Date
	Time civil.Time
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("cannot book appointments in the past: %s %s", e.Date, e.Time)
}

func (e *PastDateError) Is(target error) bool { return target == apperr.ErrInvalid }

// SlotTakenError reports that the doctor already has a live appointment at
// that date and time.
type SlotTakenError struct {
	DoctorID uuid.UUID
	Date     civil.Date
	Time     civil.Time
}

func (e *SlotTakenError) Error() string {
	return fmt.Sprintf("this time slot is already booked for doctor %s: %s %s", e.DoctorID, e.Date, e.Time)
}

func (e *SlotTakenError) Is(target error) bool { return target == apperr.ErrConflict }
