package models

import "time"

// Scope is the per-request (space, library) pair computed by the scope
// resolver. It is derived fresh on every request and never persisted.
type Scope struct {
	SpaceID   *int64
	LibraryID *int64
}

// ActivityEntry is a write-only audit record. Details are marshaled to JSON
// by the audit repository.
type ActivityEntry struct {
	ActorID    *int64
	Action     string
	EntityType string
	EntityID   *int64
	Details    map[string]any
	CreatedAt  time.Time
}
