package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/datasets"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/definitions"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/extractors"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/metadata"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/versions"
)

// InMemoryRepositoryManager serves repositories from a memory.Store.
// Transactions are serialized. A failed transaction undoes its file and
// version writes.
type InMemoryRepositoryManager struct {
	store *memory.Store
	txMu  sync.Mutex
}

func (m *InMemoryRepositoryManager) Files() files.Repository           { return m.store.Files() }
func (m *InMemoryRepositoryManager) Versions() versions.Repository     { return m.store.Versions() }
func (m *InMemoryRepositoryManager) Metadata() metadata.Repository     { return m.store.Metadata() }
func (m *InMemoryRepositoryManager) Extractors() extractors.Repository { return m.store.Extractors() }
func (m *InMemoryRepositoryManager) Definitions() definitions.Repository {
	return m.store.Definitions()
}
func (m *InMemoryRepositoryManager) Datasets() datasets.Repository { return m.store.Datasets() }

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *InMemoryRepositoryManager) InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) (err error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := m.store.Begin()
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	return fn(ctx, inMemoryTx{m: m, tx: tx})
}

// inMemoryTx routes file and version writes through the transaction journal.
type inMemoryTx struct {
	m  *InMemoryRepositoryManager
	tx *memory.Tx
}

func (t inMemoryTx) Files() files.Repository             { return t.tx.Files() }
func (t inMemoryTx) Versions() versions.Repository       { return t.tx.Versions() }
func (t inMemoryTx) Metadata() metadata.Repository       { return t.m.Metadata() }
func (t inMemoryTx) Extractors() extractors.Repository   { return t.m.Extractors() }
func (t inMemoryTx) Definitions() definitions.Repository { return t.m.Definitions() }
func (t inMemoryTx) Datasets() datasets.Repository       { return t.m.Datasets() }

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{store: memory.NewStore()}
}
