package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shelfkeeper/internal/common"
	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/logging"
	"shelfkeeper/internal/server/models"
	"shelfkeeper/internal/server/repositories/repomanager"
)

// Lifecycle denial reason codes. Targets that are absent, archived, or merely
// unreachable all surface as the same denial so existence is not leaked.
const (
	DenyLibraryNotAccessible = "library_not_accessible"
	DenyNotLibraryOwner      = "not_library_owner"
	DenyAdminRequired        = "admin_required"
)

// LibraryService owns the library lifecycle state machine: bootstrap,
// creation, updates, selection, ownership transfer, archival, and soft
// deletion, including the repair of every affected user's active-library
// pointer. It is the single module boundary through which the active-pointer
// fields and archived_at are mutated.
type LibraryService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
	audit  AuditSink
}

// NewLibraryService constructs a LibraryService.
func NewLibraryService(db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger, audit AuditSink) *LibraryService {
	return &LibraryService{
		db:     db,
		repos:  rm,
		logger: logger.With("module", "libraries"),
		audit:  audit,
	}
}

// EnsureDefault guarantees the user has a usable active library. Under a
// transaction holding an exclusive lock on the user row: a still-valid
// active library is returned unchanged; otherwise the earliest non-archived
// membership is adopted; otherwise a "My Library" is created with an owner
// membership. The row lock makes concurrent calls for the same user create
// at most one library.
func (s *LibraryService) EnsureDefault(ctx context.Context, userID int64) (*models.Library, error) {
	if userID <= 0 {
		return nil, common.NewValidationError("user_id", "must be positive")
	}

	var (
		out     *models.Library
		created bool
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		usersRepo := s.repos.Users(tx)
		user, err := usersRepo.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		if user.ActiveLibraryID != nil {
			lib, err := s.repos.Libraries(tx).GetByID(ctx, *user.ActiveLibraryID)
			if err == nil && !lib.Archived() {
				out = lib
				return nil
			}
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("check active library: %w", err)
			}
		}

		lib, err := s.repos.Memberships(tx).EarliestActiveLibrary(ctx, userID)
		if errors.Is(err, common.ErrorNotFound) {
			lib, err = s.repos.Libraries(tx).Create(ctx, &models.Library{
				Name:      models.DefaultLibraryName,
				CreatedBy: userID,
			})
			if err != nil {
				return fmt.Errorf("create default library: %w", err)
			}
			if err := s.repos.Memberships(tx).Upsert(ctx, userID, lib.ID, models.MembershipOwner); err != nil {
				return fmt.Errorf("create owner membership: %w", err)
			}
			created = true
		} else if err != nil {
			return fmt.Errorf("find membership library: %w", err)
		}

		if err := usersRepo.SetActiveScope(ctx, userID, lib.SpaceID, &lib.ID); err != nil {
			return fmt.Errorf("set active library: %w", err)
		}
		out = lib
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.audit.Record(&userID, "library.bootstrapped", "library", &out.ID, map[string]any{"name": out.Name})
	}
	return out, nil
}

// Create inserts a library owned by the actor, grants the owner membership,
// and makes it the actor's active library.
func (s *LibraryService) Create(ctx context.Context, actor *models.Identity, name, description string, spaceID *int64) (*models.Library, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewValidationError("name", "required")
	}

	var out *models.Library
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lib, err := s.repos.Libraries(tx).Create(ctx, &models.Library{
			Name:        name,
			Description: description,
			SpaceID:     spaceID,
			CreatedBy:   actor.UserID,
		})
		if err != nil {
			return fmt.Errorf("create library: %w", err)
		}
		if err := s.repos.Memberships(tx).Upsert(ctx, actor.UserID, lib.ID, models.MembershipOwner); err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		if err := s.repos.Users(tx).SetActiveScope(ctx, actor.UserID, lib.SpaceID, &lib.ID); err != nil {
			return fmt.Errorf("set active library: %w", err)
		}
		out = lib
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(&actor.UserID, "library.created", "library", &out.ID, map[string]any{"name": out.Name})
	return out, nil
}

// Update changes the name and/or description of an accessible, non-archived
// library. Supplying neither field is a validation error rather than a
// silent no-op.
func (s *LibraryService) Update(ctx context.Context, actor *models.Identity, libraryID int64, name, description *string) (*models.Library, error) {
	if libraryID <= 0 {
		return nil, common.NewValidationError("library_id", "must be positive")
	}
	if name == nil && description == nil {
		return nil, common.NewValidationError("", "at least one field must be supplied")
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, common.NewValidationError("name", "required")
		}
		name = &trimmed
	}

	lib, err := s.accessibleLibrary(ctx, actor, libraryID)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Libraries(s.db).Update(ctx, lib.ID, name, description); err != nil {
		return nil, fmt.Errorf("update library: %w", err)
	}

	s.audit.Record(&actor.UserID, "library.updated", "library", &lib.ID, updateDetails(name, description))

	return s.repos.Libraries(s.db).GetByID(ctx, lib.ID)
}

func updateDetails(name, description *string) map[string]any {
	details := map[string]any{}
	if name != nil {
		details["name"] = *name
	}
	if description != nil {
		details["description_changed"] = true
	}
	return details
}

// Select switches the actor's active space/library to an accessible target.
func (s *LibraryService) Select(ctx context.Context, actor *models.Identity, spaceID, libraryID *int64) error {
	if spaceID == nil && libraryID == nil {
		return common.NewValidationError("", "a space or library must be supplied")
	}
	if libraryID != nil && *libraryID <= 0 {
		return common.NewValidationError("library_id", "must be positive")
	}
	if spaceID != nil && *spaceID <= 0 {
		return common.NewValidationError("space_id", "must be positive")
	}

	if libraryID != nil {
		lib, err := s.accessibleLibrary(ctx, actor, *libraryID)
		if err != nil {
			return err
		}
		// The library's stored space wins over a mismatched hint.
		if lib.SpaceID != nil {
			spaceID = lib.SpaceID
		}
	} else if !actor.IsAdmin() {
		ok, err := s.repos.Memberships(s.db).HasActiveMembershipInSpace(ctx, actor.UserID, *spaceID)
		if err != nil {
			return fmt.Errorf("space membership lookup: %w", err)
		}
		if !ok {
			return s.denied(actor, libraryID, DenySpaceMembershipNeeded)
		}
	}

	if err := s.repos.Users(s.db).SetActiveScope(ctx, actor.UserID, spaceID, libraryID); err != nil {
		return fmt.Errorf("set active scope: %w", err)
	}

	s.audit.Record(&actor.UserID, "scope.selected", "library", libraryID, nil)
	return nil
}

// Transfer reassigns library ownership to newOwnerID and upserts an owner
// membership for them. The previous owner's membership is deliberately left
// unchanged; they remain a member unless separately removed.
func (s *LibraryService) Transfer(ctx context.Context, actor *models.Identity, libraryID, newOwnerID int64) error {
	if libraryID <= 0 {
		return common.NewValidationError("library_id", "must be positive")
	}
	if newOwnerID <= 0 {
		return common.NewValidationError("new_owner_id", "must be positive")
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lib, err := s.repos.Libraries(tx).GetByIDForUpdate(ctx, libraryID)
		if errors.Is(err, common.ErrorNotFound) {
			return s.denied(actor, &libraryID, DenyLibraryNotAccessible)
		}
		if err != nil {
			return fmt.Errorf("load library: %w", err)
		}
		if !actor.IsAdmin() && lib.CreatedBy != actor.UserID {
			return s.denied(actor, &libraryID, DenyNotLibraryOwner)
		}

		if _, err := s.repos.Users(tx).GetByID(ctx, newOwnerID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.NewValidationError("new_owner_id", "unknown user")
			}
			return fmt.Errorf("load new owner: %w", err)
		}

		if err := s.repos.Libraries(tx).SetCreatedBy(ctx, libraryID, newOwnerID); err != nil {
			return fmt.Errorf("reassign owner: %w", err)
		}
		if err := s.repos.Memberships(tx).Upsert(ctx, newOwnerID, libraryID, models.MembershipOwner); err != nil {
			return fmt.Errorf("upsert owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(&actor.UserID, "library.transferred", "library", &libraryID,
		map[string]any{"new_owner_id": newOwnerID})
	return nil
}

// Archive sets archived_at on an emptied library after the name confirmation
// and authorization checks pass, then repairs the active-library pointer of
// every user that pointed at it. Archiving an already-archived library is an
// idempotent success.
func (s *LibraryService) Archive(ctx context.Context, actor *models.Identity, libraryID int64, confirmName string) error {
	already, err := s.retireLibrary(ctx, actor, libraryID, confirmName, false)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	s.repairActivePointers(ctx, libraryID, false)

	s.audit.Record(&actor.UserID, "library.archived", "library", &libraryID, nil)
	return nil
}

// Unarchive clears archived_at. Admin-only; unlike the destructive
// operations it is not blocked by item count, and because the caller is an
// admin a genuinely missing row is reported as not-found.
func (s *LibraryService) Unarchive(ctx context.Context, actor *models.Identity, libraryID int64) error {
	if libraryID <= 0 {
		return common.NewValidationError("library_id", "must be positive")
	}
	if !actor.IsAdmin() {
		return s.denied(actor, &libraryID, DenyAdminRequired)
	}

	if _, err := s.repos.Libraries(s.db).GetByID(ctx, libraryID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("load library: %w", err)
	}
	if err := s.repos.Libraries(s.db).SetArchivedAt(ctx, libraryID, nil); err != nil {
		return fmt.Errorf("unarchive library: %w", err)
	}

	s.audit.Record(&actor.UserID, "library.unarchived", "library", &libraryID, nil)
	return nil
}

// Delete soft-deletes a library: every membership row is removed and the
// library row itself is retained with archived_at set. Users whose repair
// search yields no remaining membership are re-bootstrapped so nobody is
// left without a usable active library.
func (s *LibraryService) Delete(ctx context.Context, actor *models.Identity, libraryID int64, confirmName string) error {
	if _, err := s.retireLibrary(ctx, actor, libraryID, confirmName, true); err != nil {
		return err
	}

	s.repairActivePointers(ctx, libraryID, true)

	s.audit.Record(&actor.UserID, "library.deleted", "library", &libraryID, nil)
	return nil
}

// retireLibrary runs the shared archive/delete transaction: lock the library
// row, authorize, verify the name confirmation, consult the item-count
// oracle, and write the state transition. Running the count inside the same
// transaction as the write closes the check-then-act window. Returns
// alreadyArchived=true when Archive finds nothing to do.
func (s *LibraryService) retireLibrary(ctx context.Context, actor *models.Identity, libraryID int64, confirmName string, stripMemberships bool) (alreadyArchived bool, err error) {
	if libraryID <= 0 {
		return false, common.NewValidationError("library_id", "must be positive")
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lib, err := s.repos.Libraries(tx).GetByIDForUpdate(ctx, libraryID)
		if errors.Is(err, common.ErrorNotFound) {
			return s.denied(actor, &libraryID, DenyLibraryNotAccessible)
		}
		if err != nil {
			return fmt.Errorf("load library: %w", err)
		}

		if !actor.IsAdmin() && lib.CreatedBy != actor.UserID {
			return s.denied(actor, &libraryID, DenyNotLibraryOwner)
		}
		if strings.TrimSpace(confirmName) != lib.Name {
			return common.NewValidationError("confirm_name", "confirmation does not match library name")
		}

		if lib.Archived() && !stripMemberships {
			alreadyArchived = true
			return nil
		}

		count, err := s.repos.Media(tx).CountByLibrary(ctx, libraryID)
		if err != nil {
			return fmt.Errorf("count library items: %w", err)
		}
		if count > 0 {
			return &common.ConflictError{Reason: "library_has_items", ItemCount: count}
		}

		if stripMemberships {
			if _, err := s.repos.Memberships(tx).DeleteForLibrary(ctx, libraryID); err != nil {
				return fmt.Errorf("strip memberships: %w", err)
			}
		}

		now := time.Now().UTC()
		if err := s.repos.Libraries(tx).SetArchivedAt(ctx, libraryID, &now); err != nil {
			return fmt.Errorf("archive library: %w", err)
		}
		return nil
	})
	return alreadyArchived, err
}

// repairActivePointers moves every user whose active library is libraryID to
// their earliest remaining non-archived membership, or to nil when none
// remains. Each user's reassignment is its own transaction so a timeout
// mid-cascade leaves a partially repaired, never worse, state. With
// rebootstrap set, users left without any membership get a fresh default
// library via EnsureDefault.
func (s *LibraryService) repairActivePointers(ctx context.Context, libraryID int64, rebootstrap bool) {
	userIDs, err := s.repos.Users(s.db).ListIDsWithActiveLibrary(ctx, libraryID)
	if err != nil {
		s.logger.Error(ctx, "cascade: listing affected users failed", "library_id", libraryID, "error", err)
		return
	}

	for _, userID := range userIDs {
		orphaned := false
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			usersRepo := s.repos.Users(tx)
			user, err := usersRepo.GetByIDForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			// A concurrent operation may have moved the user on already.
			if user.ActiveLibraryID == nil || *user.ActiveLibraryID != libraryID {
				return nil
			}

			next, err := s.repos.Memberships(tx).EarliestActiveLibrary(ctx, userID)
			if errors.Is(err, common.ErrorNotFound) {
				orphaned = true
				return usersRepo.SetActiveLibrary(ctx, userID, nil)
			}
			if err != nil {
				return err
			}
			return usersRepo.SetActiveLibrary(ctx, userID, &next.ID)
		})
		if err != nil {
			s.logger.Error(ctx, "cascade: active pointer repair failed", "user_id", userID, "error", err)
			continue
		}

		if rebootstrap && orphaned {
			if _, err := s.EnsureDefault(ctx, userID); err != nil {
				s.logger.Error(ctx, "cascade: re-bootstrap failed", "user_id", userID, "error", err)
			}
		}
	}
}

// ListAccessible returns the non-archived libraries the actor can reach:
// every one for admins, membership-joined for everyone else.
func (s *LibraryService) ListAccessible(ctx context.Context, actor *models.Identity) ([]*models.Library, error) {
	if actor.IsAdmin() {
		return s.repos.Libraries(s.db).ListActive(ctx)
	}
	return s.repos.Memberships(s.db).ListActiveLibraries(ctx, actor.UserID)
}

// accessibleLibrary loads a library the actor may act on: it must exist and
// be non-archived, and non-admins need a membership row. Absent and
// unreachable targets produce the same denial.
func (s *LibraryService) accessibleLibrary(ctx context.Context, actor *models.Identity, libraryID int64) (*models.Library, error) {
	lib, err := s.repos.Libraries(s.db).GetByID(ctx, libraryID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, s.denied(actor, &libraryID, DenyLibraryNotAccessible)
	}
	if err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	if lib.Archived() {
		return nil, s.denied(actor, &libraryID, DenyLibraryNotAccessible)
	}
	if !actor.IsAdmin() {
		if _, err := s.repos.Memberships(s.db).Get(ctx, actor.UserID, libraryID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, s.denied(actor, &libraryID, DenyLibraryNotAccessible)
			}
			return nil, fmt.Errorf("membership lookup: %w", err)
		}
	}
	return lib, nil
}

// denied audits a lifecycle denial and returns the typed error.
func (s *LibraryService) denied(actor *models.Identity, libraryID *int64, reason string) error {
	s.audit.Record(&actor.UserID, "library.denied", "library", libraryID, map[string]any{"reason": reason})
	return common.NewAccessDeniedError(reason)
}
