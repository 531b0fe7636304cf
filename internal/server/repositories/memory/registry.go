package memory

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/google/uuid"
)

type ExtractorRepository struct {
	s *Store
}

func extractorKey(name, version string) string { return name + "@" + version }

func (r *ExtractorRepository) Register(ctx context.Context, e *models.Extractor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := extractorKey(e.Name, e.Version)
	if existing, ok := r.s.extractors[k]; ok {
		existing.Description = e.Description
		e.ID = existing.ID
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	c := *e
	r.s.extractors[k] = &c
	return nil
}

func (r *ExtractorRepository) Get(ctx context.Context, name, version string) (*models.Extractor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.extractors[extractorKey(name, version)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *e
	return &c, nil
}

type DefinitionRepository struct {
	s *Store
}

func (r *DefinitionRepository) Save(ctx context.Context, d *models.MetadataDefinition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.definitions[d.Name]; ok {
		d.ID = existing.ID
	} else if d.ID == "" {
		d.ID = uuid.NewString()
	}
	c := *d
	c.Fields = append([]models.DefinitionField(nil), d.Fields...)
	r.s.definitions[d.Name] = &c
	return nil
}

func (r *DefinitionRepository) GetByName(ctx context.Context, name string) (*models.MetadataDefinition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.definitions[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *d
	c.Fields = append([]models.DefinitionField(nil), d.Fields...)
	return &c, nil
}

type DatasetRepository struct {
	s *Store
}

func (r *DatasetRepository) Create(ctx context.Context, id, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.datasets[id] = name
	return nil
}

func (r *DatasetRepository) AddFile(ctx context.Context, datasetID, fileID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.datasets[datasetID]; !ok {
		return common.ErrorNotFound
	}
	r.s.members[datasetMember{datasetID: datasetID, fileID: fileID}] = struct{}{}
	return nil
}

func (r *DatasetRepository) ListByFile(ctx context.Context, fileID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := []string{}
	for m := range r.s.members {
		if m.fileID == fileID {
			ids = append(ids, m.datasetID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *DatasetRepository) RemoveFile(ctx context.Context, fileID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for m := range r.s.members {
		if m.fileID == fileID {
			delete(r.s.members, m)
			n++
		}
	}
	return n, nil
}
