package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/civil"
)

// ConflictChecker answers whether a doctor's slot is occupied by a
// non-cancelled appointment.
type ConflictChecker struct {
	repo AppointmentRepository
}

func NewConflictChecker(repo AppointmentRepository) *ConflictChecker {
	return &ConflictChecker{repo: repo}
}

// HasConflict ignores the appointment with id exclude, if given, so an
// appointment never conflicts with itself on update.
func (c *ConflictChecker) HasConflict(ctx context.Context, doctorID uuid.UUID, date civil.Date, t civil.Time, exclude *uuid.UUID) (bool, error) {
	return c.repo.HasConflict(ctx, doctorID, date, t, exclude)
}
