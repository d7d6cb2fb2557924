package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shelfkeeper/internal/common"
	"shelfkeeper/internal/logging"
	"shelfkeeper/internal/server/config"
	"shelfkeeper/internal/server/metrics"
	"shelfkeeper/internal/server/models"
	"shelfkeeper/internal/server/repositories/repomanager"
)

// sessionTokenBytes is the entropy of an opaque session token before hex
// encoding.
const sessionTokenBytes = 32

// SessionMeta carries client metadata stored alongside a session.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

// SessionService issues, validates, and revokes opaque bearer tokens and owns
// expiry and cleanup. Tokens are persisted only as SHA-256 digests.
type SessionService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
	audit  AuditSink

	ttl           time.Duration
	maxPerUser    int
	sweepInterval time.Duration
}

// NewSessionService constructs a SessionService from repositories and config.
func NewSessionService(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger, audit AuditSink) *SessionService {
	return &SessionService{
		db:            db,
		repos:         rm,
		logger:        logger.With("module", "sessions"),
		audit:         audit,
		ttl:           cfg.SessionTTL,
		maxPerUser:    cfg.MaxSessionsPerUser,
		sweepInterval: cfg.SessionSweepInterval,
	}
}

// Create issues a new session for userID and returns the plaintext token
// exactly once. As a side effect it purges the user's already-expired rows
// and enforces the per-user session cap by evicting the oldest sessions.
func (s *SessionService) Create(ctx context.Context, userID int64, meta SessionMeta) (string, *models.Session, error) {
	if userID <= 0 {
		return "", nil, common.NewValidationError("user_id", "must be positive")
	}

	token, err := common.MakeRandHexString(sessionTokenBytes)
	if err != nil {
		return "", nil, fmt.Errorf("generate session token: %w", err)
	}

	now := time.Now().UTC()
	repo := s.repos.Sessions(s.db)

	// Opportunistic cleanup; failure must not block the login.
	if err := repo.DeleteExpiredForUser(ctx, userID, now); err != nil {
		s.logger.Warn(ctx, "expired session purge failed", "user_id", userID, "error", err)
	}
	if s.maxPerUser > 0 {
		if err := repo.TrimToNewest(ctx, userID, s.maxPerUser-1); err != nil {
			s.logger.Warn(ctx, "session cap enforcement failed", "user_id", userID, "error", err)
		}
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: common.HashToken(token),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := repo.Create(ctx, session); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	metrics.SessionsIssued.Inc()
	return token, session, nil
}

// GetUserByToken hashes the presented token and looks up a non-expired
// session joined to its owning user. Absent and expired sessions both yield
// common.ErrorUnauthorized; infrastructure failures propagate as errors.
func (s *SessionService) GetUserByToken(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, common.ErrorUnauthorized
	}

	ident, err := s.repos.Sessions(s.db).FindIdentityByTokenHash(ctx, common.HashToken(token), time.Now().UTC())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	return ident, nil
}

// RevokeByToken deletes the matching session; revoking an absent token is a
// no-op.
func (s *SessionService) RevokeByToken(ctx context.Context, actorID int64, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repos.Sessions(s.db).DeleteByTokenHash(ctx, common.HashToken(token)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	metrics.SessionsRevoked.Inc()
	s.audit.Record(&actorID, "session.revoked", "session", nil, nil)
	return nil
}

// RevokeAllForUser bulk-deletes the user's sessions except keepSessionID
// (pass "" to revoke everything) and returns the count revoked.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID int64, keepSessionID string) (int64, error) {
	n, err := s.repos.Sessions(s.db).DeleteAllForUser(ctx, userID, keepSessionID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	metrics.SessionsRevoked.Add(float64(n))
	s.audit.Record(&userID, "session.revoked_all", "session", nil, map[string]any{"revoked": n})
	return n, nil
}

// RunSweeper deletes expired sessions once immediately (to recover quickly
// from long downtime) and then on a fixed interval until ctx is canceled.
// A failed pass is logged and does not stop the timer.
func (s *SessionService) RunSweeper(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionService) sweep(ctx context.Context) {
	n, err := s.repos.Sessions(s.db).DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error(ctx, "session sweep failed", "error", err)
		return
	}
	if n > 0 {
		metrics.SessionsSwept.Add(float64(n))
		s.logger.Info(ctx, "swept expired sessions", "count", n)
	}
}
