package libraries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shelfkeeper/internal/common"
	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const libraryColumns = `id, name, description, space_id, created_by, archived_at, created_at, updated_at`

func scanLibrary(row *sql.Row) (*models.Library, error) {
	l := &models.Library{}
	err := row.Scan(&l.ID, &l.Name, &l.Description, &l.SpaceID,
		&l.CreatedBy, &l.ArchivedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) Create(ctx context.Context, l *models.Library) (*models.Library, error) {
	query := `
		INSERT INTO libraries (name, description, space_id, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		l.Name, l.Description, l.SpaceID, l.CreatedBy).
		Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Library, error) {
	query := `
		SELECT ` + libraryColumns + `
		FROM libraries
		WHERE id = $1
	`
	return scanLibrary(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Library, error) {
	query := `
		SELECT ` + libraryColumns + `
		FROM libraries
		WHERE id = $1
		FOR UPDATE
	`
	return scanLibrary(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, name, description *string) error {
	query := `
		UPDATE libraries
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, name, description); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetCreatedBy(ctx context.Context, id, userID int64) error {
	query := `
		UPDATE libraries
		SET created_by = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetArchivedAt(ctx context.Context, id int64, archivedAt *time.Time) error {
	query := `
		UPDATE libraries
		SET archived_at = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, archivedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) EarliestActive(ctx context.Context) (*models.Library, error) {
	query := `
		SELECT ` + libraryColumns + `
		FROM libraries
		WHERE archived_at IS NULL
		ORDER BY created_at, id
		LIMIT 1
	`
	return scanLibrary(r.db.QueryRowContext(ctx, query))
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]*models.Library, error) {
	query := `
		SELECT ` + libraryColumns + `
		FROM libraries
		WHERE archived_at IS NULL
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	return collectLibraries(rows)
}

func collectLibraries(rows *sql.Rows) ([]*models.Library, error) {
	var out []*models.Library
	for rows.Next() {
		l := &models.Library{}
		err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.SpaceID,
			&l.CreatedBy, &l.ArchivedAt, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
