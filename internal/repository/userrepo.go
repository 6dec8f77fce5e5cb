// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/skillmarket/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to user accounts and their credential records.
type UserRepository interface {
	// Create inserts a new user; returns errs.ErrAlreadyExists when email or username is taken.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by (lower-cased) email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdatePasswordHash replaces the stored credential record.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}
