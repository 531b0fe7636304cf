package files

import (
	"context"

	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	UpdateContent(ctx context.Context, file *models.File, expectedVersion int64) error
	Rename(ctx context.Context, id, name string) error
	IncrementDownloads(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
