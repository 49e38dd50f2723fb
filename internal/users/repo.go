package users

import (
	"context"
	"errors"

	"resumegenie/internal/shared/util"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type Repo interface {
	Create(ctx context.Context, user User) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// UpdateCredentials moves the account to newEmail and, when passwordHash
	// is non-empty, replaces the stored hash.
	UpdateCredentials(ctx context.Context, currentEmail, newEmail, passwordHash string) (User, error)
}

// NormalizeEmail is the canonical account key.
func NormalizeEmail(email string) string {
	return util.NormalizeEmail(email)
}
