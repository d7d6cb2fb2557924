// Package models contains the persistent and per-request data structures of
// the Shelfkeeper server core.
package models

import "time"

// Role is the coarse-grained permission level of a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleViewer Role = "viewer"
)

// User is an account row. This core only ever mutates the two active-pointer
// fields; everything else is owned by the account subsystem.
type User struct {
	ID              int64
	Email           string
	Role            Role
	ActiveSpaceID   *int64
	ActiveLibraryID *int64
	CreatedAt       time.Time
}

// Identity is the authenticated principal attached to a request after
// session validation: the owning user plus the session that produced it.
type Identity struct {
	UserID          int64
	Role            Role
	ActiveSpaceID   *int64
	ActiveLibraryID *int64
	SessionID       string
}

// IsAdmin reports whether the identity bypasses membership checks.
func (i *Identity) IsAdmin() bool { return i.Role == RoleAdmin }
