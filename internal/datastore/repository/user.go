package repository

import (
	"context"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

// UserRepository provides access to the users table.
type UserRepository interface {
	// Create inserts a user. Returns ErrDuplicateKey when the username is taken.
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by its ID.
	// Returns ErrUserNotFound if not found.
	GetByID(ctx context.Context, id uint) (*entities.User, error)

	// GetByUsername retrieves a user by username.
	// Returns ErrUserNotFound if not found.
	GetByUsername(ctx context.Context, username string) (*entities.User, error)

	// GetByIDs retrieves users keyed by ID. Unknown IDs are absent from the map.
	GetByIDs(ctx context.Context, ids []uint) (map[uint]*entities.User, error)

	// List returns every user ordered by username.
	List(ctx context.Context) ([]*entities.User, error)
}
