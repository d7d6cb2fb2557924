package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"shelfkeeper/internal/common"
	"shelfkeeper/internal/logging"
	"shelfkeeper/internal/server/metrics"
	"shelfkeeper/internal/server/models"
	"shelfkeeper/internal/server/repositories/repomanager"
)

// Denial reason codes recorded to the audit sink on scope rejection. The
// caller only ever sees a generic denial; these codes exist for server-side
// observability and client-side recovery where explicitly distinguished.
const (
	DenyHintsNotAllowedForRole  = "hints_not_allowed_for_role"
	DenyLibraryNotFound         = "library_not_found"
	DenySpaceLibraryMismatch    = "space_library_mismatch"
	DenyLibraryMembershipNeeded = "library_membership_required"
	DenySpaceMembershipNeeded   = "space_membership_required"
)

// ScopeHints are caller-supplied overrides for the active space/library,
// extracted from request query parameters or headers.
type ScopeHints struct {
	SpaceID   *int64
	LibraryID *int64
}

// Empty reports whether the caller supplied no hint at all.
func (h ScopeHints) Empty() bool { return h.SpaceID == nil && h.LibraryID == nil }

// ScopeService computes the authoritative (space, library) pair for a request
// from the user's persisted active pointers, optional hints, and live
// library/membership rows. It holds no state of its own and must be
// re-evaluated on every request.
type ScopeService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
	audit  AuditSink
}

// NewScopeService constructs a ScopeService.
func NewScopeService(db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger, audit AuditSink) *ScopeService {
	return &ScopeService{
		db:     db,
		repos:  rm,
		logger: logger.With("module", "scope"),
		audit:  audit,
	}
}

// Resolve produces the request scope or rejects with an access denial.
// hintRoles is the endpoint-specific allow-list of roles permitted to send
// hints. The algorithm is deterministic and evaluated in a fixed order:
// persisted defaults, hint override, fallback library, existence and
// archival checks, space/library consistency, membership checks.
func (s *ScopeService) Resolve(ctx context.Context, ident *models.Identity, hints ScopeHints, hintRoles []models.Role) (models.Scope, error) {
	// Step 1: defaults from the user's persisted active pointers.
	scope := models.Scope{
		SpaceID:   ident.ActiveSpaceID,
		LibraryID: ident.ActiveLibraryID,
	}

	// Step 2: hints override the defaults field by field, but only for
	// roles in the endpoint's allow-list.
	if !hints.Empty() {
		if !slices.Contains(hintRoles, ident.Role) {
			return models.Scope{}, s.deny(ctx, ident, hints, DenyHintsNotAllowedForRole)
		}
		if hints.SpaceID != nil {
			scope.SpaceID = hints.SpaceID
		}
		if hints.LibraryID != nil {
			scope.LibraryID = hints.LibraryID
		}
	}

	// Step 3: fallback when no library is resolved yet.
	if scope.LibraryID == nil {
		lib, err := s.fallbackLibrary(ctx, ident)
		if err != nil {
			return models.Scope{}, err
		}
		if lib != nil {
			scope.LibraryID = &lib.ID
		}
	}

	// Steps 4–5: the resolved library must exist non-archived, and its
	// stored space must agree with the resolved space.
	if scope.LibraryID != nil {
		lib, err := s.repos.Libraries(s.db).GetByID(ctx, *scope.LibraryID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return models.Scope{}, fmt.Errorf("scope library lookup: %w", err)
		}
		if err != nil || lib.Archived() {
			return models.Scope{}, s.deny(ctx, ident, hints, DenyLibraryNotFound)
		}
		if lib.SpaceID != nil {
			if scope.SpaceID != nil && *scope.SpaceID != *lib.SpaceID {
				return models.Scope{}, s.deny(ctx, ident, hints, DenySpaceLibraryMismatch)
			}
			scope.SpaceID = lib.SpaceID
		}
	}

	// Step 6: membership checks; admins bypass them entirely.
	if !ident.IsAdmin() {
		if scope.LibraryID != nil {
			_, err := s.repos.Memberships(s.db).Get(ctx, ident.UserID, *scope.LibraryID)
			if errors.Is(err, common.ErrorNotFound) {
				return models.Scope{}, s.deny(ctx, ident, hints, DenyLibraryMembershipNeeded)
			}
			if err != nil {
				return models.Scope{}, fmt.Errorf("scope membership lookup: %w", err)
			}
		} else if scope.SpaceID != nil {
			ok, err := s.repos.Memberships(s.db).HasActiveMembershipInSpace(ctx, ident.UserID, *scope.SpaceID)
			if err != nil {
				return models.Scope{}, fmt.Errorf("scope space membership lookup: %w", err)
			}
			if !ok {
				return models.Scope{}, s.deny(ctx, ident, hints, DenySpaceMembershipNeeded)
			}
		}
	}

	return scope, nil
}

// fallbackLibrary picks the library used when neither the defaults nor the
// hints resolved one: admins get the globally earliest non-archived library,
// everyone else the earliest among their memberships. No candidate is not an
// error; the request proceeds without a library.
func (s *ScopeService) fallbackLibrary(ctx context.Context, ident *models.Identity) (*models.Library, error) {
	var (
		lib *models.Library
		err error
	)
	if ident.IsAdmin() {
		lib, err = s.repos.Libraries(s.db).EarliestActive(ctx)
	} else {
		lib, err = s.repos.Memberships(s.db).EarliestActiveLibrary(ctx, ident.UserID)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("scope fallback lookup: %w", err)
	}
	return lib, nil
}

// deny records the rejection server-side with the requested hint values and
// returns the typed denial. Step 7 of the algorithm: the reason is audited
// even though the caller receives a generic denial.
func (s *ScopeService) deny(ctx context.Context, ident *models.Identity, hints ScopeHints, reason string) error {
	metrics.ScopeDenials.WithLabelValues(reason).Inc()

	details := map[string]any{"reason": reason}
	if hints.SpaceID != nil {
		details["hint_space_id"] = *hints.SpaceID
	}
	if hints.LibraryID != nil {
		details["hint_library_id"] = *hints.LibraryID
	}
	actor := ident.UserID
	s.audit.Record(&actor, "scope.denied", "scope", nil, details)

	s.logger.Info(ctx, "scope resolution denied", "user_id", ident.UserID, "reason", reason)
	return common.NewAccessDeniedError(reason)
}
