// Package repomanager wires repository constructors together behind a single
// factory so services can obtain repositories bound either to the shared
// *sql.DB or to an open transaction.
package repomanager

import (
	"context"
	"database/sql"

	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/server/repositories/audit"
	"shelfkeeper/internal/server/repositories/libraries"
	"shelfkeeper/internal/server/repositories/media"
	"shelfkeeper/internal/server/repositories/memberships"
	"shelfkeeper/internal/server/repositories/sessions"
	"shelfkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// exposes the schema migration hook.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Libraries(db dbx.DBTX) libraries.Repository
	Memberships(db dbx.DBTX) memberships.Repository
	Media(db dbx.DBTX) media.Repository
	Audit(db dbx.DBTX) audit.Repository

	// RunMigrations applies the embedded schema migrations.
	RunMigrations(ctx context.Context, db *sql.DB) error
}
