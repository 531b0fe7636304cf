package repomanager

import (
	"context"

	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/datasets"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/definitions"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/extractors"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/metadata"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/versions"
)

// Repositories is a set of repositories sharing one database handle.
type Repositories interface {
	Files() files.Repository
	Versions() versions.Repository
	Metadata() metadata.Repository
	Extractors() extractors.Repository
	Definitions() definitions.Repository
	Datasets() datasets.Repository
}

type RepositoryManager interface {
	Repositories
	RunMigrations(ctx context.Context) error
	// InTx runs fn with repositories bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
