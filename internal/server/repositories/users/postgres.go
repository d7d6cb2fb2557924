package users

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

const userColumns = `id, email, role, active_space_id, active_library_id, created_at`

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.Role,
		&user.ActiveSpaceID, &user.ActiveLibraryID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
		FOR UPDATE
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) SetActiveScope(ctx context.Context, userID int64, spaceID, libraryID *int64) error {
	query := `
		UPDATE users
		SET active_space_id = $2, active_library_id = $3
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID, spaceID, libraryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetActiveLibrary(ctx context.Context, userID int64, libraryID *int64) error {
	query := `
		UPDATE users
		SET active_library_id = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID, libraryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListIDsWithActiveLibrary(ctx context.Context, libraryID int64) ([]int64, error) {
	query := `
		SELECT id
		FROM users
		WHERE active_library_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, libraryID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}
