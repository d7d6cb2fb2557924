package media

import (
	"context"
	"fmt"

	"shelfkeeper/internal/dbx"
)

// PostgresRepository implements the count oracle over dbx.DBTX. Running it on
// the same transaction handle as the archive/delete write closes the
// check-then-act window.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CountByLibrary(ctx context.Context, libraryID int64) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM media
		WHERE library_id = $1
	`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, libraryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
