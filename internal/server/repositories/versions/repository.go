package versions

import (
	"context"

	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, v *models.FileVersion) error
	MaxVersion(ctx context.Context, fileID string) (int64, error)
	Get(ctx context.Context, fileID string, num int64) (*models.FileVersion, error)
	List(ctx context.Context, fileID string, skip, limit int) ([]*models.FileVersion, error)
	DeleteByFile(ctx context.Context, fileID string) (int64, error)
}
