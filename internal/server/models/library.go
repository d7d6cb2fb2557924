package models

import "time"

// DefaultLibraryName is the name given to implicitly bootstrapped libraries.
const DefaultLibraryName = "My Library"

// Library is a named collection container. ArchivedAt is nil while the
// library is active; an archived library is never selectable as anyone's
// active library.
type Library struct {
	ID          int64
	Name        string
	Description string
	SpaceID     *int64
	CreatedBy   int64
	ArchivedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Archived reports whether the library has been archived or soft-deleted.
func (l *Library) Archived() bool { return l.ArchivedAt != nil }

// MembershipOwner is the only membership role this core produces.
const MembershipOwner = "owner"

// LibraryMembership grants a user reachability to a library. Composite key
// (UserID, LibraryID); exactly one row per pair.
type LibraryMembership struct {
	UserID    int64
	LibraryID int64
	Role      string
	CreatedAt time.Time
}
