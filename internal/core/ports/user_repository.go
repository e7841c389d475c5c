package ports

import (
	"context"

	"github.com/medistore/medistore-api/internal/core/domain"
)

// UserRepository defines the persistence operations behind identity.
type UserRepository interface {
	// Create stores a new user. Returns domain.ErrUserExists on a duplicate email.
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
}
