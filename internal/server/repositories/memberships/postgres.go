package memberships

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Upsert(ctx context.Context, userID, libraryID int64, role string) error {
	query := `
		INSERT INTO library_memberships (user_id, library_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, library_id) DO UPDATE SET role = EXCLUDED.role
	`
	if _, err := r.db.ExecContext(ctx, query, userID, libraryID, role); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, libraryID int64) (*models.LibraryMembership, error) {
	query := `
		SELECT user_id, library_id, role, created_at
		FROM library_memberships
		WHERE user_id = $1 AND library_id = $2
	`
	m := &models.LibraryMembership{}
	err := r.db.QueryRowContext(ctx, query, userID, libraryID).
		Scan(&m.UserID, &m.LibraryID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) DeleteForLibrary(ctx context.Context, libraryID int64) (int64, error) {
	query := `
		DELETE FROM library_memberships
		WHERE library_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, libraryID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

const joinedLibraryColumns = `l.id, l.name, l.description, l.space_id, l.created_by, l.archived_at, l.created_at, l.updated_at`

func (r *PostgresRepository) EarliestActiveLibrary(ctx context.Context, userID int64) (*models.Library, error) {
	query := `
		SELECT ` + joinedLibraryColumns + `
		FROM library_memberships m
		JOIN libraries l ON l.id = m.library_id
		WHERE m.user_id = $1 AND l.archived_at IS NULL
		ORDER BY m.created_at, l.id
		LIMIT 1
	`
	l := &models.Library{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&l.ID, &l.Name, &l.Description, &l.SpaceID,
		&l.CreatedBy, &l.ArchivedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) ListActiveLibraries(ctx context.Context, userID int64) ([]*models.Library, error) {
	query := `
		SELECT ` + joinedLibraryColumns + `
		FROM library_memberships m
		JOIN libraries l ON l.id = m.library_id
		WHERE m.user_id = $1 AND l.archived_at IS NULL
		ORDER BY m.created_at, l.id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

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

func (r *PostgresRepository) HasActiveMembershipInSpace(ctx context.Context, userID, spaceID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM library_memberships m
			JOIN libraries l ON l.id = m.library_id
			WHERE m.user_id = $1 AND l.space_id = $2 AND l.archived_at IS NULL
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, spaceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
