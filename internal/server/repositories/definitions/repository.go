package definitions

import (
	"context"

	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
)

type Repository interface {
	Save(ctx context.Context, d *models.MetadataDefinition) error
	GetByName(ctx context.Context, name string) (*models.MetadataDefinition, error)
}
