package memory

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/metadata"
)

type MetadataRepository struct {
	s *Store
}

func (r *MetadataRepository) Insert(ctx context.Context, m *models.Metadata) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.metadata[m.ID]; ok {
		return common.ErrVersionConflict
	}
	r.s.seq++
	r.s.metadata[m.ID] = &storedMetadata{m: *copyMetadata(m), seq: r.s.seq}
	return nil
}

func (r *MetadataRepository) Find(ctx context.Context, q metadata.Query) ([]*models.Metadata, error) {
	r.s.mu.RLock()
	matched := []*storedMetadata{}
	for _, sm := range r.s.metadata {
		if matches(&sm.m, q) {
			matched = append(matched, sm)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	result := make([]*models.Metadata, 0, len(matched))
	for _, sm := range matched {
		result = append(result, copyMetadata(&sm.m))
	}
	return result, nil
}

func (r *MetadataRepository) Replace(ctx context.Context, m *models.Metadata, expectedRevision int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sm, ok := r.s.metadata[m.ID]
	if !ok || sm.m.Revision != expectedRevision {
		return common.ErrVersionConflict
	}
	m.Revision = expectedRevision + 1
	updated := copyMetadata(m)
	updated.Resource = sm.m.Resource
	updated.Created = sm.m.Created
	sm.m = *updated
	return nil
}

func (r *MetadataRepository) DeleteByID(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.metadata[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.metadata, id)
	return nil
}

func (r *MetadataRepository) DeleteByResource(ctx context.Context, resourceID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, sm := range r.s.metadata {
		if sm.m.Resource.ResourceID == resourceID {
			delete(r.s.metadata, id)
			n++
		}
	}
	return n, nil
}

func matches(m *models.Metadata, q metadata.Query) bool {
	if m.Resource.ResourceID != q.ResourceID {
		return false
	}
	if q.Version != nil && m.Resource.Version != *q.Version {
		return false
	}
	if q.AgentUser != nil {
		u, ok := m.Agent.(models.UserAgent)
		if !ok || u.UserID != *q.AgentUser {
			return false
		}
	}
	if q.ExtractorName != nil || q.ExtractorVersion != nil {
		e, ok := m.Agent.(models.ExtractorAgent)
		if !ok {
			return false
		}
		if q.ExtractorName != nil && e.Name != *q.ExtractorName {
			return false
		}
		if q.ExtractorVersion != nil && e.Version != *q.ExtractorVersion {
			return false
		}
	}
	return true
}
