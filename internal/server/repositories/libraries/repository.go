// Package libraries declares the repository contract for library rows and
// their lifecycle fields.
package libraries

import (
	"context"
	"time"

	"shelfkeeper/internal/server/models"
)

// Repository provides access to library rows. Lifecycle fields (created_by,
// archived_at) are mutated only through these methods.
type Repository interface {
	// Create inserts a library and returns it with id and timestamps set.
	Create(ctx context.Context, l *models.Library) (*models.Library, error)

	// GetByID returns the library row, archived or not, or common.ErrorNotFound.
	GetByID(ctx context.Context, id int64) (*models.Library, error)

	// GetByIDForUpdate returns the library row with an exclusive row lock.
	// It must be called inside a transaction.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Library, error)

	// Update changes name and/or description for the given id. Nil fields
	// are left untouched; updated_at always advances.
	Update(ctx context.Context, id int64, name, description *string) error

	// SetCreatedBy reassigns library ownership.
	SetCreatedBy(ctx context.Context, id, userID int64) error

	// SetArchivedAt sets or clears the archival timestamp.
	SetArchivedAt(ctx context.Context, id int64, archivedAt *time.Time) error

	// EarliestActive returns the globally earliest-created non-archived
	// library (created_at, then id ascending) or common.ErrorNotFound.
	EarliestActive(ctx context.Context) (*models.Library, error)

	// ListActive returns all non-archived libraries ordered by creation.
	ListActive(ctx context.Context) ([]*models.Library, error)
}
