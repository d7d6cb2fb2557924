// Package audit declares the write-only activity-log sink.
package audit

import (
	"context"

	"shelfkeeper/internal/server/models"
)

// Repository appends activity entries. It is write-only; nothing in this
// core reads the log back.
type Repository interface {
	Insert(ctx context.Context, e *models.ActivityEntry) error
}
