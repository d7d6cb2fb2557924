package sessions

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

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, ip_address, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.TokenHash, s.IPAddress, s.UserAgent, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindIdentityByTokenHash(ctx context.Context, hash string, now time.Time) (*models.Identity, error) {
	query := `
		SELECT u.id, u.role, u.active_space_id, u.active_library_id, s.id
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1 AND s.expires_at > $2
	`
	ident := &models.Identity{}
	err := r.db.QueryRowContext(ctx, query, hash, now).Scan(
		&ident.UserID, &ident.Role, &ident.ActiveSpaceID, &ident.ActiveLibraryID, &ident.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ident, nil
}

func (r *PostgresRepository) DeleteByTokenHash(ctx context.Context, hash string) error {
	query := `
		DELETE FROM sessions
		WHERE token_hash = $1
	`
	if _, err := r.db.ExecContext(ctx, query, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID int64, keepSessionID string) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE user_id = $1 AND ($2 = '' OR id <> $2)
	`
	res, err := r.db.ExecContext(ctx, query, userID, keepSessionID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteExpiredForUser(ctx context.Context, userID int64, now time.Time) error {
	query := `
		DELETE FROM sessions
		WHERE user_id = $1 AND expires_at <= $2
	`
	if _, err := r.db.ExecContext(ctx, query, userID, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TrimToNewest(ctx context.Context, userID int64, keep int) error {
	query := `
		DELETE FROM sessions
		WHERE user_id = $1 AND id IN (
			SELECT id FROM sessions
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			OFFSET $2
		)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, keep); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
