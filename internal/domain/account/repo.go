package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrEmailTaken         = errors.New("email already in use")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserStore is the external credential store.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	// GetByEmail matches email case-insensitively.
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}
