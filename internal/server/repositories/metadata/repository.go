package metadata

import (
	"context"

	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, m *models.Metadata) error
	Find(ctx context.Context, q Query) ([]*models.Metadata, error)
	Replace(ctx context.Context, m *models.Metadata, expectedRevision int64) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByResource(ctx context.Context, resourceID string) (int64, error)
}

// Query selects metadata of one resource. Nil fields are not filtered on.
type Query struct {
	ResourceID       string
	Version          *int64
	AgentUser        *string
	ExtractorName    *string
	ExtractorVersion *string
}

// ScopeQuery returns a query matching exactly the given scope key.
func ScopeQuery(key models.ScopeKey) Query {
	v := key.Version
	q := Query{ResourceID: key.ResourceID, Version: &v}
	switch a := key.Agent.(type) {
	case models.UserAgent:
		q.AgentUser = &a.UserID
	case models.ExtractorAgent:
		q.ExtractorName = &a.Name
		q.ExtractorVersion = &a.Version
	}
	return q
}
