// This file provides the concrete RepositoryManager for PostgreSQL, wiring
// repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/server/migrations"
	"shelfkeeper/internal/server/repositories/audit"
	"shelfkeeper/internal/server/repositories/libraries"
	"shelfkeeper/internal/server/repositories/media"
	"shelfkeeper/internal/server/repositories/memberships"
	"shelfkeeper/internal/server/repositories/sessions"
	"shelfkeeper/internal/server/repositories/users"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Sessions returns a sessions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

// Libraries returns a libraries.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Libraries(db dbx.DBTX) libraries.Repository {
	return libraries.NewPostgresRepository(db)
}

// Memberships returns a memberships.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Memberships(db dbx.DBTX) memberships.Repository {
	return memberships.NewPostgresRepository(db)
}

// Media returns the read-only item-count oracle bound to the provided DBTX.
func (m *PostgresRepositoryManager) Media(db dbx.DBTX) media.Repository {
	return media.NewPostgresRepository(db)
}

// Audit returns an audit.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Audit(db dbx.DBTX) audit.Repository {
	return audit.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
