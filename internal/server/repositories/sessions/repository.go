// Package sessions declares the repository contract for bearer-token session
// rows.
package sessions

import (
	"context"
	"time"

	"shelfkeeper/internal/server/models"
)

// Repository defines persistence operations for sessions. Tokens are handled
// exclusively as SHA-256 hex digests at this layer; the plaintext never
// reaches a repository.
type Repository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, s *models.Session) error

	// FindIdentityByTokenHash returns the identity behind a non-expired
	// session, joined to its owning user. An absent or expired session
	// yields common.ErrorNotFound; the two cases are indistinguishable.
	FindIdentityByTokenHash(ctx context.Context, hash string, now time.Time) (*models.Identity, error)

	// DeleteByTokenHash removes the matching session. Deleting an absent
	// session is not an error.
	DeleteByTokenHash(ctx context.Context, hash string) error

	// DeleteAllForUser removes every session of the user except the
	// optional keepSessionID and returns the number of rows removed.
	DeleteAllForUser(ctx context.Context, userID int64, keepSessionID string) (int64, error)

	// DeleteExpired removes all sessions past expiry and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// DeleteExpiredForUser removes the user's already-expired sessions.
	DeleteExpiredForUser(ctx context.Context, userID int64, now time.Time) error

	// TrimToNewest keeps the user's `keep` most recently created sessions
	// and deletes the rest, enforcing the per-user session cap.
	TrimToNewest(ctx context.Context, userID int64, keep int) error
}
