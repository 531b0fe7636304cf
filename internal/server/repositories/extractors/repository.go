package extractors

import (
	"context"

	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
)

type Repository interface {
	Register(ctx context.Context, e *models.Extractor) error
	Get(ctx context.Context, name, version string) (*models.Extractor, error)
}
