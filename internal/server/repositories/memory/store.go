// Package memory implements every repository in process memory. It backs the
// server's memory:// database mode and the service tests.
package memory

import (
	"maps"
	"sync"

	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
)

type versionKey struct {
	fileID string
	num    int64
}

type datasetMember struct {
	datasetID string
	fileID    string
}

// Store holds all tables. The zero value is not usable; call NewStore.
type Store struct {
	mu sync.RWMutex

	files       map[string]*models.File
	versions    map[versionKey]*models.FileVersion
	metadata    map[string]*storedMetadata
	seq         int64
	extractors  map[string]*models.Extractor
	definitions map[string]*models.MetadataDefinition
	datasets    map[string]string
	members     map[datasetMember]struct{}
}

type storedMetadata struct {
	m   models.Metadata
	seq int64
}

func NewStore() *Store {
	return &Store{
		files:       make(map[string]*models.File),
		versions:    make(map[versionKey]*models.FileVersion),
		metadata:    make(map[string]*storedMetadata),
		extractors:  make(map[string]*models.Extractor),
		definitions: make(map[string]*models.MetadataDefinition),
		datasets:    make(map[string]string),
		members:     make(map[datasetMember]struct{}),
	}
}

func (s *Store) Files() *FileRepository             { return &FileRepository{s: s} }
func (s *Store) Versions() *VersionRepository       { return &VersionRepository{s: s} }
func (s *Store) Metadata() *MetadataRepository      { return &MetadataRepository{s: s} }
func (s *Store) Extractors() *ExtractorRepository   { return &ExtractorRepository{s: s} }
func (s *Store) Definitions() *DefinitionRepository { return &DefinitionRepository{s: s} }
func (s *Store) Datasets() *DatasetRepository       { return &DatasetRepository{s: s} }

func copyMetadata(m *models.Metadata) *models.Metadata {
	c := *m
	c.Contents = maps.Clone(m.Contents)
	c.Context.Inline = maps.Clone(m.Context.Inline)
	return &c
}
