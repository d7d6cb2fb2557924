package httpapi

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"shelfkeeper/internal/common"
	"shelfkeeper/internal/logging"
	"shelfkeeper/internal/server/models"
	"shelfkeeper/internal/server/services"
)

// --- fakes for the service interfaces ---

type fakeSessions struct {
	createToken   string
	createSession *models.Session
	createErr     error
	createdMeta   services.SessionMeta

	ident   *models.Identity
	authErr error

	revokedToken string
	revokeErr    error

	revokedAllN    int64
	revokedAllKeep string
}

func (f *fakeSessions) Create(_ context.Context, userID int64, meta services.SessionMeta) (string, *models.Session, error) {
	f.createdMeta = meta
	if f.createErr != nil {
		return "", nil, f.createErr
	}
	return f.createToken, f.createSession, nil
}

func (f *fakeSessions) GetUserByToken(_ context.Context, token string) (*models.Identity, error) {
	if token == "" || f.authErr != nil {
		if f.authErr != nil {
			return nil, f.authErr
		}
		return nil, common.ErrorUnauthorized
	}
	if f.ident == nil {
		return nil, common.ErrorUnauthorized
	}
	return f.ident, nil
}

func (f *fakeSessions) RevokeByToken(_ context.Context, _ int64, token string) error {
	f.revokedToken = token
	return f.revokeErr
}

func (f *fakeSessions) RevokeAllForUser(_ context.Context, _ int64, keepSessionID string) (int64, error) {
	f.revokedAllKeep = keepSessionID
	return f.revokedAllN, nil
}

type fakeScope struct {
	scope models.Scope
	err   error
	hints services.ScopeHints
}

func (f *fakeScope) Resolve(_ context.Context, _ *models.Identity, hints services.ScopeHints, _ []models.Role) (models.Scope, error) {
	f.hints = hints
	if f.err != nil {
		return models.Scope{}, f.err
	}
	return f.scope, nil
}

type fakeLibraries struct {
	ensureCalled bool
	ensureErr    error

	createOut *models.Library
	createErr error

	updateOut *models.Library
	updateErr error

	selectErr error

	transferNewOwner int64
	transferErr      error

	archiveConfirm string
	archiveErr     error

	unarchiveErr error

	deleteConfirm string
	deleteErr     error

	listOut []*models.Library
	listErr error
}

func (f *fakeLibraries) EnsureDefault(_ context.Context, _ int64) (*models.Library, error) {
	f.ensureCalled = true
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	return &models.Library{ID: 1, Name: models.DefaultLibraryName}, nil
}

func (f *fakeLibraries) Create(_ context.Context, _ *models.Identity, name, description string, spaceID *int64) (*models.Library, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeLibraries) Update(_ context.Context, _ *models.Identity, _ int64, _, _ *string) (*models.Library, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updateOut, nil
}

func (f *fakeLibraries) Select(_ context.Context, _ *models.Identity, _, _ *int64) error {
	return f.selectErr
}

func (f *fakeLibraries) Transfer(_ context.Context, _ *models.Identity, _, newOwnerID int64) error {
	f.transferNewOwner = newOwnerID
	return f.transferErr
}

func (f *fakeLibraries) Archive(_ context.Context, _ *models.Identity, _ int64, confirmName string) error {
	f.archiveConfirm = confirmName
	return f.archiveErr
}

func (f *fakeLibraries) Unarchive(_ context.Context, _ *models.Identity, _ int64) error {
	return f.unarchiveErr
}

func (f *fakeLibraries) Delete(_ context.Context, _ *models.Identity, _ int64, confirmName string) error {
	f.deleteConfirm = confirmName
	return f.deleteErr
}

func (f *fakeLibraries) ListAccessible(_ context.Context, _ *models.Identity) ([]*models.Library, error) {
	return f.listOut, f.listErr
}

type fakeVerifier struct {
	userID int64
	err    error
}

func (f *fakeVerifier) Verify(_ context.Context, _, _ string) (int64, error) {
	return f.userID, f.err
}

// --- server construction ---

type testDeps struct {
	sessions  *fakeSessions
	scope     *fakeScope
	libraries *fakeLibraries
	verifier  *fakeVerifier
}

func newTestServer(t *testing.T, deps *testDeps) *Server {
	t.Helper()
	if deps.sessions == nil {
		deps.sessions = &fakeSessions{}
	}
	if deps.scope == nil {
		deps.scope = &fakeScope{}
	}
	if deps.libraries == nil {
		deps.libraries = &fakeLibraries{}
	}
	opts := Options{
		Addr:       ":0",
		Logger:     logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		Sessions:   deps.sessions,
		Scope:      deps.scope,
		Libraries:  deps.libraries,
		SessionTTL: time.Hour,
		HintRoles:  []string{"admin"},
	}
	if deps.verifier != nil {
		opts.Verifier = deps.verifier
	}
	return NewServer(opts)
}

func memberIdent() *models.Identity {
	return &models.Identity{UserID: 7, Role: models.RoleUser, SessionID: "sid-1"}
}
