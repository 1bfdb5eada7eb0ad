// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/manus-bridge/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AccountRepository provides CRUD access to stored credentials.
// Every query is scoped by the owning user id; rows of other users are
// indistinguishable from missing rows.
type AccountRepository interface {
	// Create inserts a new account.
	Create(ctx context.Context, a *model.Account) error
	// Get loads one account owned by the user.
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Account, error)
	// GetDefault loads the user's default account.
	GetDefault(ctx context.Context, userID uuid.UUID) (*model.Account, error)
	// ListByUser returns all accounts of a user, default first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Account, error)
	// Delete removes one account. Task rows keep their account_id.
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// SetDefault makes one account the user's default (clear-then-set).
	SetDefault(ctx context.Context, userID, id uuid.UUID) error
}
