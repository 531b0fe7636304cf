// Package metadata resolves, validates and updates metadata records scoped to
// a (file, version, agent) triple.
package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/logging"
	"github.com/dmitrijs2005/rdkeeper/internal/server/keylock"
	"github.com/dmitrijs2005/rdkeeper/internal/server/ledger"
	"github.com/dmitrijs2005/rdkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	metarepo "github.com/dmitrijs2005/rdkeeper/internal/server/repositories/metadata"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Engine serves metadata operations. Writes to one scope key are serialized
// by a per-key lock and guarded in storage by the record revision.
type Engine struct {
	repos     repomanager.RepositoryManager
	ledger    *ledger.Ledger
	registry  ExtractorRegistry
	validator Validator
	locks     *keylock.Locker
	logger    logging.Logger
	now       func() time.Time
}

func NewEngine(repos repomanager.RepositoryManager, l *ledger.Ledger, registry ExtractorRegistry, validator Validator, logger logging.Logger) *Engine {
	return &Engine{
		repos:     repos,
		ledger:    l,
		registry:  registry,
		validator: validator,
		locks:     keylock.New(),
		logger:    logging.Module(logger, "metadata"),
		now:       time.Now,
	}
}

// BuildScopeKey resolves the version (latest when nil) and the agent. An
// extractor identity must be registered; without one the caller is the agent.
func (e *Engine) BuildScopeKey(ctx context.Context, fileID string, version *int64, extractor *models.ExtractorIdentity, user string) (models.ScopeKey, error) {
	v, err := e.ledger.Resolve(ctx, fileID, version)
	if err != nil {
		return models.ScopeKey{}, err
	}

	key := models.ScopeKey{ResourceID: fileID, Version: v}
	if extractor != nil {
		ex, err := e.registry.Lookup(ctx, extractor.Name, extractor.Version)
		if err != nil {
			return models.ScopeKey{}, err
		}
		key.Agent = models.ExtractorAgent{Name: ex.Name, Version: ex.Version}
	} else {
		key.Agent = models.UserAgent{UserID: user}
	}
	return key, nil
}

// Create always inserts a new record, even when one already exists at the
// same scope key.
func (e *Engine) Create(ctx context.Context, fileID string, in models.MetadataIn, user string) (m *models.Metadata, err error) {
	defer func() { e.observe(ctx, "create", fileID, err) }()

	if err := e.ensureFile(ctx, fileID); err != nil {
		return nil, err
	}
	key, err := e.BuildScopeKey(ctx, fileID, in.FileVersion, in.Extractor, user)
	if err != nil {
		return nil, err
	}
	mc, contents, err := e.prepare(ctx, in.Context, in.Contents)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locks.Lock(ctx, key.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := e.now().UTC()
	m = &models.Metadata{
		ID:       uuid.NewString(),
		Resource: models.ResourceRef{Collection: common.FilesCollection, ResourceID: fileID, Version: key.Version},
		Agent:    key.Agent,
		Context:  mc,
		Contents: contents,
		Revision: 1,
		Created:  now,
		Updated:  now,
	}
	if err := e.repos.Metadata().Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Replace overwrites agent, context and contents of the single record at the
// scope key.
func (e *Engine) Replace(ctx context.Context, fileID string, in models.MetadataIn, user string) (m *models.Metadata, err error) {
	defer func() { e.observe(ctx, "replace", fileID, err) }()

	if err := e.ensureFile(ctx, fileID); err != nil {
		return nil, err
	}
	key, err := e.BuildScopeKey(ctx, fileID, in.FileVersion, in.Extractor, user)
	if err != nil {
		return nil, err
	}
	mc, contents, err := e.prepare(ctx, in.Context, in.Contents)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locks.Lock(ctx, key.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := e.matchOne(ctx, metarepo.ScopeQuery(key), key.String())
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Agent = key.Agent
	updated.Context = mc
	updated.Contents = contents
	updated.Updated = e.now().UTC()
	if err := e.repos.Metadata().Replace(ctx, &updated, existing.Revision); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Patch merges contents key by key into the single record at the scope key.
// The merged contents are validated against the record's existing context.
func (e *Engine) Patch(ctx context.Context, fileID string, p models.MetadataPatch, user string) (m *models.Metadata, err error) {
	defer func() { e.observe(ctx, "patch", fileID, err) }()

	if err := e.ensureFile(ctx, fileID); err != nil {
		return nil, err
	}
	key, err := e.BuildScopeKey(ctx, fileID, p.FileVersion, p.Extractor, user)
	if err != nil {
		return nil, err
	}
	patch, err := normalize(p.Contents)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locks.Lock(ctx, key.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := e.matchOne(ctx, metarepo.ScopeQuery(key), key.String())
	if err != nil {
		return nil, err
	}

	merged, err := e.validator.Validate(ctx, existing.Context, merge(existing.Contents, patch))
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Contents = merged
	updated.Updated = e.now().UTC()
	if err := e.repos.Metadata().Replace(ctx, &updated, existing.Revision); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Query lists records of a file. Unless AllVersions is set the result is
// pinned to one resolved version. No match yields an empty slice.
func (e *Engine) Query(ctx context.Context, fileID string, f models.MetadataFilter) (result []*models.Metadata, err error) {
	defer func() { e.observe(ctx, "query", fileID, err) }()

	if err := e.ensureFile(ctx, fileID); err != nil {
		return nil, err
	}

	q := metarepo.Query{ResourceID: fileID, ExtractorName: f.ExtractorName, ExtractorVersion: f.ExtractorVersion}
	if !f.AllVersions {
		v, err := e.ledger.Resolve(ctx, fileID, f.Version)
		if err != nil {
			return nil, err
		}
		q.Version = &v
	}
	return e.repos.Metadata().Find(ctx, q)
}

// Delete removes exactly one record. With both extractor fields it targets
// that extractor's scope; with neither it targets the caller's scope; with
// only one it filters on that field alone.
func (e *Engine) Delete(ctx context.Context, fileID string, f models.MetadataFilter, user string) (err error) {
	defer func() { e.observe(ctx, "delete", fileID, err) }()

	if err := e.ensureFile(ctx, fileID); err != nil {
		return err
	}

	var (
		q       metarepo.Query
		lockKey string
	)
	switch {
	case f.ExtractorName != nil && f.ExtractorVersion != nil:
		key, err := e.BuildScopeKey(ctx, fileID, f.Version,
			&models.ExtractorIdentity{Name: *f.ExtractorName, Version: *f.ExtractorVersion}, user)
		if err != nil {
			return err
		}
		q, lockKey = metarepo.ScopeQuery(key), key.String()
	case f.ExtractorName != nil || f.ExtractorVersion != nil:
		v, err := e.ledger.Resolve(ctx, fileID, f.Version)
		if err != nil {
			return err
		}
		q = metarepo.Query{ResourceID: fileID, Version: &v, ExtractorName: f.ExtractorName, ExtractorVersion: f.ExtractorVersion}
	default:
		key, err := e.BuildScopeKey(ctx, fileID, f.Version, nil, user)
		if err != nil {
			return err
		}
		q, lockKey = metarepo.ScopeQuery(key), key.String()
	}

	if lockKey == "" {
		m, err := e.matchOne(ctx, q, fmt.Sprintf("%s/v%d", fileID, *q.Version))
		if err != nil {
			return err
		}
		lockKey = m.ScopeKey().String()
	}

	unlock, err := e.locks.Lock(ctx, lockKey)
	if err != nil {
		return err
	}
	defer unlock()

	m, err := e.matchOne(ctx, q, lockKey)
	if err != nil {
		return err
	}
	return e.repos.Metadata().DeleteByID(ctx, m.ID)
}

func (e *Engine) ensureFile(ctx context.Context, fileID string) error {
	_, err := e.repos.Files().GetByID(ctx, fileID)
	return err
}

func (e *Engine) prepare(ctx context.Context, mc models.MetadataContext, contents map[string]any) (models.MetadataContext, map[string]any, error) {
	normalized, err := normalize(contents)
	if err != nil {
		return mc, nil, err
	}
	if mc.Inline != nil {
		inline, err := normalize(mc.Inline)
		if err != nil {
			return mc, nil, err
		}
		mc.Inline = inline
	}
	validated, err := e.validator.Validate(ctx, mc, normalized)
	if err != nil {
		return mc, nil, err
	}
	return mc, validated, nil
}

func (e *Engine) matchOne(ctx context.Context, q metarepo.Query, scope string) (*models.Metadata, error) {
	found, err := e.repos.Metadata().Find(ctx, q)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("metadata at %s: %w", scope, common.ErrorNotFound)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%d metadata records at %s: %w", len(found), scope, common.ErrAmbiguousMatch)
	}
}

func (e *Engine) observe(ctx context.Context, op, fileID string, err error) {
	metrics.MetadataOpsTotal.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		e.logger.Debug(ctx, "metadata operation failed", "op", op, "file_id", fileID, "error", err)
	}
}
