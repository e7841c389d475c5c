package ports

import (
	"context"

	"github.com/medistore/medistore-api/internal/core/domain"
)

// RegisterInput carries the public registration payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}
