// Package users declares the repository contract for the account rows this
// core reads and for the two active-pointer fields it is allowed to mutate.
package users

import (
	"context"

	"shelfkeeper/internal/server/models"
)

// Repository provides access to user rows. All writers of the active-pointer
// fields go through SetActiveScope/SetActiveLibrary; no other code path may
// mutate them.
type Repository interface {
	// GetByID returns the user row or common.ErrorNotFound.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByIDForUpdate returns the user row with an exclusive row lock.
	// It must be called inside a transaction; concurrent callers for the
	// same user block until the transaction finishes.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error)

	// SetActiveScope sets both active pointers in one statement.
	SetActiveScope(ctx context.Context, userID int64, spaceID, libraryID *int64) error

	// SetActiveLibrary sets the active library pointer, leaving the active
	// space untouched.
	SetActiveLibrary(ctx context.Context, userID int64, libraryID *int64) error

	// ListIDsWithActiveLibrary returns the ids of every user whose active
	// library pointer equals libraryID, ordered ascending.
	ListIDsWithActiveLibrary(ctx context.Context, libraryID int64) ([]int64, error)
}
