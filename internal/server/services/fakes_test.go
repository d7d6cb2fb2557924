package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"shelfkeeper/internal/common"
	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/logging"
	"shelfkeeper/internal/server/models"
	auditrepo "shelfkeeper/internal/server/repositories/audit"
	librariesrepo "shelfkeeper/internal/server/repositories/libraries"
	mediarepo "shelfkeeper/internal/server/repositories/media"
	membershipsrepo "shelfkeeper/internal/server/repositories/memberships"
	sessionsrepo "shelfkeeper/internal/server/repositories/sessions"
	usersrepo "shelfkeeper/internal/server/repositories/users"
)

// --- shared helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ptr[T any](v T) *T { return &v }

// --- audit sink ---

type recordedEvent struct {
	ActorID    *int64
	Action     string
	EntityType string
	EntityID   *int64
	Details    map[string]any
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *recordingSink) Record(actorID *int64, action, entityType string, entityID *int64, details map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{actorID, action, entityType, entityID, details})
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

func (s *recordingSink) last() (recordedEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return recordedEvent{}, false
	}
	return s.events[len(s.events)-1], true
}

// --- fake repositories ---
// Nil function fields fall back to common.ErrorNotFound / no-op so each test
// wires only what it exercises.

type fakeUsersRepo struct {
	getByID      func(id int64) (*models.User, error)
	getForUpdate func(id int64) (*models.User, error)
	setScopeErr  error
	listActive   func(libraryID int64) ([]int64, error)

	scopeCalls   []setScopeCall
	libraryCalls []setLibraryCall
}

type setScopeCall struct {
	UserID    int64
	SpaceID   *int64
	LibraryID *int64
}

type setLibraryCall struct {
	UserID    int64
	LibraryID *int64
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	if f.getByID != nil {
		return f.getByID(id)
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByIDForUpdate(_ context.Context, id int64) (*models.User, error) {
	if f.getForUpdate != nil {
		return f.getForUpdate(id)
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) SetActiveScope(_ context.Context, userID int64, spaceID, libraryID *int64) error {
	f.scopeCalls = append(f.scopeCalls, setScopeCall{userID, spaceID, libraryID})
	return f.setScopeErr
}

func (f *fakeUsersRepo) SetActiveLibrary(_ context.Context, userID int64, libraryID *int64) error {
	f.libraryCalls = append(f.libraryCalls, setLibraryCall{userID, libraryID})
	return nil
}

func (f *fakeUsersRepo) ListIDsWithActiveLibrary(_ context.Context, libraryID int64) ([]int64, error) {
	if f.listActive != nil {
		return f.listActive(libraryID)
	}
	return nil, nil
}

type fakeSessionsRepo struct {
	createErr   error
	created     []*models.Session
	findOut     *models.Identity
	findErr     error
	findHash    string
	deleteErr   error
	deletedHash string
	deleteAllN  int64
	deleteAllErr error
	keptSession string
	expiredN    int64
	expiredErr  error
	trimmedKeep int
}

func (f *fakeSessionsRepo) Create(_ context.Context, s *models.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSessionsRepo) FindIdentityByTokenHash(_ context.Context, hash string, _ time.Time) (*models.Identity, error) {
	f.findHash = hash
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.findOut == nil {
		return nil, common.ErrorNotFound
	}
	return f.findOut, nil
}

func (f *fakeSessionsRepo) DeleteByTokenHash(_ context.Context, hash string) error {
	f.deletedHash = hash
	return f.deleteErr
}

func (f *fakeSessionsRepo) DeleteAllForUser(_ context.Context, _ int64, keepSessionID string) (int64, error) {
	f.keptSession = keepSessionID
	return f.deleteAllN, f.deleteAllErr
}

func (f *fakeSessionsRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return f.expiredN, f.expiredErr
}

func (f *fakeSessionsRepo) DeleteExpiredForUser(_ context.Context, _ int64, _ time.Time) error {
	return nil
}

func (f *fakeSessionsRepo) TrimToNewest(_ context.Context, _ int64, keep int) error {
	f.trimmedKeep = keep
	return nil
}

type fakeLibrariesRepo struct {
	createOut    *models.Library
	createErr    error
	created      []*models.Library
	getByID      func(id int64) (*models.Library, error)
	getForUpdate func(id int64) (*models.Library, error)
	updateErr    error
	updatedName  *string
	createdBySet []int64
	archivedSet  []*time.Time
	earliestOut  *models.Library
	earliestErr  error
	listOut      []*models.Library
	listErr      error
}

func (f *fakeLibrariesRepo) Create(_ context.Context, l *models.Library) (*models.Library, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	out := f.createOut
	if out == nil {
		out = l
		out.ID = int64(100 + len(f.created))
		out.CreatedAt = time.Now()
		out.UpdatedAt = out.CreatedAt
	}
	f.created = append(f.created, out)
	return out, nil
}

func (f *fakeLibrariesRepo) GetByID(_ context.Context, id int64) (*models.Library, error) {
	if f.getByID != nil {
		return f.getByID(id)
	}
	return nil, common.ErrorNotFound
}

func (f *fakeLibrariesRepo) GetByIDForUpdate(_ context.Context, id int64) (*models.Library, error) {
	if f.getForUpdate != nil {
		return f.getForUpdate(id)
	}
	return nil, common.ErrorNotFound
}

func (f *fakeLibrariesRepo) Update(_ context.Context, _ int64, name, _ *string) error {
	f.updatedName = name
	return f.updateErr
}

func (f *fakeLibrariesRepo) SetCreatedBy(_ context.Context, _ int64, userID int64) error {
	f.createdBySet = append(f.createdBySet, userID)
	return nil
}

func (f *fakeLibrariesRepo) SetArchivedAt(_ context.Context, _ int64, archivedAt *time.Time) error {
	f.archivedSet = append(f.archivedSet, archivedAt)
	return nil
}

func (f *fakeLibrariesRepo) EarliestActive(_ context.Context) (*models.Library, error) {
	if f.earliestErr != nil {
		return nil, f.earliestErr
	}
	if f.earliestOut == nil {
		return nil, common.ErrorNotFound
	}
	return f.earliestOut, nil
}

func (f *fakeLibrariesRepo) ListActive(_ context.Context) ([]*models.Library, error) {
	return f.listOut, f.listErr
}

type fakeMembershipsRepo struct {
	upsertErr    error
	upserts      []upsertCall
	getOut       *models.LibraryMembership
	getErr       error
	deletedForLib []int64
	earliest     func(userID int64) (*models.Library, error)
	listOut      []*models.Library
	listErr      error
	inSpace      bool
	inSpaceErr   error
}

type upsertCall struct {
	UserID    int64
	LibraryID int64
	Role      string
}

func (f *fakeMembershipsRepo) Upsert(_ context.Context, userID, libraryID int64, role string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, upsertCall{userID, libraryID, role})
	return nil
}

func (f *fakeMembershipsRepo) Get(_ context.Context, _, _ int64) (*models.LibraryMembership, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.getOut == nil {
		return nil, common.ErrorNotFound
	}
	return f.getOut, nil
}

func (f *fakeMembershipsRepo) DeleteForLibrary(_ context.Context, libraryID int64) (int64, error) {
	f.deletedForLib = append(f.deletedForLib, libraryID)
	return 1, nil
}

func (f *fakeMembershipsRepo) EarliestActiveLibrary(_ context.Context, userID int64) (*models.Library, error) {
	if f.earliest != nil {
		return f.earliest(userID)
	}
	return nil, common.ErrorNotFound
}

func (f *fakeMembershipsRepo) ListActiveLibraries(_ context.Context, _ int64) ([]*models.Library, error) {
	return f.listOut, f.listErr
}

func (f *fakeMembershipsRepo) HasActiveMembershipInSpace(_ context.Context, _, _ int64) (bool, error) {
	return f.inSpace, f.inSpaceErr
}

type fakeMediaRepo struct {
	count    int64
	countErr error
}

func (f *fakeMediaRepo) CountByLibrary(_ context.Context, _ int64) (int64, error) {
	return f.count, f.countErr
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	inserts []*models.ActivityEntry
	err     error
}

func (f *fakeAuditRepo) Insert(_ context.Context, e *models.ActivityEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserts = append(f.inserts, e)
	return nil
}

func (f *fakeAuditRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts)
}

// --- repository manager ---

type fakeRepoManager struct {
	u  *fakeUsersRepo
	s  *fakeSessionsRepo
	l  *fakeLibrariesRepo
	m  *fakeMembershipsRepo
	md *fakeMediaRepo
	a  *fakeAuditRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u:  &fakeUsersRepo{},
		s:  &fakeSessionsRepo{},
		l:  &fakeLibrariesRepo{},
		m:  &fakeMembershipsRepo{},
		md: &fakeMediaRepo{},
		a:  &fakeAuditRepo{},
	}
}

func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository             { return m.u }
func (m *fakeRepoManager) Sessions(dbx.DBTX) sessionsrepo.Repository       { return m.s }
func (m *fakeRepoManager) Libraries(dbx.DBTX) librariesrepo.Repository     { return m.l }
func (m *fakeRepoManager) Memberships(dbx.DBTX) membershipsrepo.Repository { return m.m }
func (m *fakeRepoManager) Media(dbx.DBTX) mediarepo.Repository             { return m.md }
func (m *fakeRepoManager) Audit(dbx.DBTX) auditrepo.Repository             { return m.a }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
