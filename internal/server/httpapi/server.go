// Package httpapi exposes the session, scope, and library operations over a
// thin net/http surface: cookie/bearer session extraction, scope-hint
// resolution, and JSON handlers.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shelfkeeper/internal/logging"
	"shelfkeeper/internal/server/models"
	"shelfkeeper/internal/server/services"
)

// SessionCookieName is the HTTP-only cookie carrying the session token for
// browser callers; non-browser callers present the same token as a bearer
// header.
const SessionCookieName = "shelfkeeper_session"

// SessionManager is the slice of the session service the HTTP layer needs.
type SessionManager interface {
	Create(ctx context.Context, userID int64, meta services.SessionMeta) (string, *models.Session, error)
	GetUserByToken(ctx context.Context, token string) (*models.Identity, error)
	RevokeByToken(ctx context.Context, actorID int64, token string) error
	RevokeAllForUser(ctx context.Context, userID int64, keepSessionID string) (int64, error)
}

// ScopeResolver computes the per-request scope.
type ScopeResolver interface {
	Resolve(ctx context.Context, ident *models.Identity, hints services.ScopeHints, hintRoles []models.Role) (models.Scope, error)
}

// LibraryManager is the slice of the library service the HTTP layer needs.
type LibraryManager interface {
	EnsureDefault(ctx context.Context, userID int64) (*models.Library, error)
	Create(ctx context.Context, actor *models.Identity, name, description string, spaceID *int64) (*models.Library, error)
	Update(ctx context.Context, actor *models.Identity, libraryID int64, name, description *string) (*models.Library, error)
	Select(ctx context.Context, actor *models.Identity, spaceID, libraryID *int64) error
	Transfer(ctx context.Context, actor *models.Identity, libraryID, newOwnerID int64) error
	Archive(ctx context.Context, actor *models.Identity, libraryID int64, confirmName string) error
	Unarchive(ctx context.Context, actor *models.Identity, libraryID int64) error
	Delete(ctx context.Context, actor *models.Identity, libraryID int64, confirmName string) error
	ListAccessible(ctx context.Context, actor *models.Identity) ([]*models.Library, error)
}

// CredentialVerifier authenticates a login request and returns the user id.
// Password storage and hashing live in the account subsystem; this layer
// only consumes the verdict. Implementations return common.ErrorUnauthorized
// for bad credentials.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (int64, error)
}

// Server wires the middleware and handlers over the business services.
type Server struct {
	addr      string
	logger    logging.Logger
	sessions  SessionManager
	scope     ScopeResolver
	libraries LibraryManager
	verifier  CredentialVerifier

	sessionTTL time.Duration
	hintRoles  []models.Role
}

// Options collects the dependencies of NewServer. Verifier may be nil when
// the account subsystem is not wired in; the login endpoint then responds
// 501 Not Implemented.
type Options struct {
	Addr       string
	Logger     logging.Logger
	Sessions   SessionManager
	Scope      ScopeResolver
	Libraries  LibraryManager
	Verifier   CredentialVerifier
	SessionTTL time.Duration
	HintRoles  []string
}

// NewServer constructs the HTTP server facade.
func NewServer(opts Options) *Server {
	roles := make([]models.Role, 0, len(opts.HintRoles))
	for _, r := range opts.HintRoles {
		roles = append(roles, models.Role(r))
	}
	return &Server{
		addr:       opts.Addr,
		logger:     opts.Logger.With("module", "httpapi"),
		sessions:   opts.Sessions,
		scope:      opts.Scope,
		libraries:  opts.Libraries,
		verifier:   opts.Verifier,
		sessionTTL: opts.SessionTTL,
		hintRoles:  roles,
	}
}

// Handler assembles the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("POST /api/auth/logout", s.requireSession(http.HandlerFunc(s.handleLogout)))
	mux.Handle("POST /api/auth/logout_all", s.requireSession(http.HandlerFunc(s.handleLogoutAll)))

	mux.Handle("GET /api/libraries", s.requireSession(s.resolveScope(http.HandlerFunc(s.handleListLibraries))))
	mux.Handle("POST /api/libraries", s.requireSession(http.HandlerFunc(s.handleCreateLibrary)))
	mux.Handle("PATCH /api/libraries/{id}", s.requireSession(http.HandlerFunc(s.handleUpdateLibrary)))
	mux.Handle("DELETE /api/libraries/{id}", s.requireSession(http.HandlerFunc(s.handleDeleteLibrary)))
	mux.Handle("POST /api/libraries/{id}/transfer", s.requireSession(http.HandlerFunc(s.handleTransferLibrary)))
	mux.Handle("POST /api/libraries/{id}/archive", s.requireSession(http.HandlerFunc(s.handleArchiveLibrary)))
	mux.Handle("POST /api/libraries/{id}/unarchive", s.requireSession(http.HandlerFunc(s.handleUnarchiveLibrary)))
	mux.Handle("POST /api/scope/select", s.requireSession(http.HandlerFunc(s.handleSelectScope)))

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return s.withMetrics(mux)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info(shutdownCtx, "stopping HTTP server")
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "starting HTTP server", "address", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
