package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/extractors"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ExtractorRegistry resolves registered extractors.
type ExtractorRegistry interface {
	Lookup(ctx context.Context, name, version string) (*models.Extractor, error)
	Register(ctx context.Context, e *models.Extractor) error
}

// CachedRegistry fronts the extractors table with an expiring LRU cache.
// Misses are not cached, so a newly registered extractor is visible at once.
type CachedRegistry struct {
	repo  extractors.Repository
	cache *expirable.LRU[string, *models.Extractor]
}

func NewCachedRegistry(repo extractors.Repository, size int, ttl time.Duration) *CachedRegistry {
	if size <= 0 {
		size = 1
	}
	return &CachedRegistry{
		repo:  repo,
		cache: expirable.NewLRU[string, *models.Extractor](size, nil, ttl),
	}
}

func cacheKey(name, version string) string {
	return name + "@" + version
}

func (r *CachedRegistry) Lookup(ctx context.Context, name, version string) (*models.Extractor, error) {
	key := cacheKey(name, version)
	if e, ok := r.cache.Get(key); ok {
		metrics.ExtractorCacheLookupsTotal.WithLabelValues("hit").Inc()
		return e, nil
	}
	metrics.ExtractorCacheLookupsTotal.WithLabelValues("miss").Inc()

	e, err := r.repo.Get(ctx, name, version)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("extractor %s version %s is not registered: %w", name, version, common.ErrorNotFound)
		}
		return nil, err
	}
	r.cache.Add(key, e)
	return e, nil
}

func (r *CachedRegistry) Register(ctx context.Context, e *models.Extractor) error {
	if e.Name == "" || e.Version == "" {
		return fmt.Errorf("%w: extractor name and version are required", common.ErrorValidation)
	}
	if err := r.repo.Register(ctx, e); err != nil {
		return err
	}
	r.cache.Add(cacheKey(e.Name, e.Version), e)
	return nil
}
