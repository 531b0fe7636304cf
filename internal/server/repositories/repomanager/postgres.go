// Package repomanager provides concrete RepositoryManagers for PostgreSQL and
// for in-process memory, wiring together repository constructors and
// database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/rdkeeper/internal/dbx"
	"github.com/dmitrijs2005/rdkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/datasets"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/definitions"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/extractors"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/metadata"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/versions"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// postgresRepos vends PostgreSQL-backed repositories bound to one DBTX.
type postgresRepos struct {
	db dbx.DBTX
}

func (r postgresRepos) Files() files.Repository       { return files.NewPostgresRepository(r.db) }
func (r postgresRepos) Versions() versions.Repository { return versions.NewPostgresRepository(r.db) }
func (r postgresRepos) Metadata() metadata.Repository { return metadata.NewPostgresRepository(r.db) }
func (r postgresRepos) Extractors() extractors.Repository {
	return extractors.NewPostgresRepository(r.db)
}
func (r postgresRepos) Definitions() definitions.Repository {
	return definitions.NewPostgresRepository(r.db)
}
func (r postgresRepos) Datasets() datasets.Repository { return datasets.NewPostgresRepository(r.db) }

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	postgresRepos
	conn *sql.DB
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the manager's database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.conn, "."); err != nil {
		return err
	}
	return nil
}

// InTx runs fn inside a read-committed transaction.
func (m *PostgresRepositoryManager) InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return dbx.WithTx(ctx, m.conn, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, postgresRepos{db: tx})
	})
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{postgresRepos: postgresRepos{db: db}, conn: db}
}
