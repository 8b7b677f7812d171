// Package repository declares the persistence contracts. Implementations
// live in sub-packages (mongo, sqlite); services depend only on these
// interfaces so tests can swap in an in-memory store.
package repository

import (
	"context"

	"github.com/sakif/gatehouse/internal/model"
)

// UserRepository is the Credential Store.
//
// Lookups return an *apperror.AppError wrapping apperror.ErrNotFound when
// nothing matches. Create assigns user.ID and user.CreatedAt, and returns
// an AppError wrapping apperror.ErrConflict (with Field set to "username"
// or "email") when a unique index rejects the insert.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Ping(ctx context.Context) error
}
