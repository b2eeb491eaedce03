package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// Delete removes the patient and, through the foreign key, the
	// patient's appointments.
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Patient, int, error)
}
