// Package memberships declares the repository contract for the user/library
// membership join.
package memberships

import (
	"context"

	"shelfkeeper/internal/server/models"
)

// Repository manages library membership rows and answers the reachability
// queries the scope resolver and lifecycle cascades depend on.
type Repository interface {
	// Upsert grants the user the given role on the library. An existing
	// row keeps its created_at; the role is updated in place.
	Upsert(ctx context.Context, userID, libraryID int64, role string) error

	// Get returns the membership row or common.ErrorNotFound.
	Get(ctx context.Context, userID, libraryID int64) (*models.LibraryMembership, error)

	// DeleteForLibrary removes every membership of the library and returns
	// the number of rows removed.
	DeleteForLibrary(ctx context.Context, libraryID int64) (int64, error)

	// EarliestActiveLibrary returns the earliest non-archived library the
	// user is a member of, ordered by membership creation time and then
	// library id ascending, or common.ErrorNotFound.
	EarliestActiveLibrary(ctx context.Context, userID int64) (*models.Library, error)

	// ListActiveLibraries returns all non-archived libraries reachable by
	// the user's memberships, in the EarliestActiveLibrary order.
	ListActiveLibraries(ctx context.Context, userID int64) ([]*models.Library, error)

	// HasActiveMembershipInSpace reports whether the user belongs to at
	// least one non-archived library within the given space.
	HasActiveMembershipInSpace(ctx context.Context, userID, spaceID int64) (bool, error)
}
