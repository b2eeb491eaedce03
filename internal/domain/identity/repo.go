package identity

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create returns a field error on username when it is already taken.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetByUsername returns apperr.NotFoundError when no user matches.
	GetByUsername(ctx context.Context, username string) (*User, error)
}
