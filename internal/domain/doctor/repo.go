package doctor

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	// Delete removes the doctor and, through the foreign key, the doctor's
	// appointments.
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Doctor, int, error)
}
