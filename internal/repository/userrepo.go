// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/maazshahbaz/ai-humanizer/internal/model"
)

// UserRepository provides access to accounts.
type UserRepository interface {
	// Create inserts a new user together with its initial credit balance.
	Create(ctx context.Context, u *model.User, initialCredits int64) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Delete removes the user; credits and rewrites cascade.
	Delete(ctx context.Context, id uuid.UUID) error
}
