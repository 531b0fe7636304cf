package datasets

import "context"

type Repository interface {
	Create(ctx context.Context, id, name string) error
	AddFile(ctx context.Context, datasetID, fileID string) error
	ListByFile(ctx context.Context, fileID string) ([]string, error)
	RemoveFile(ctx context.Context, fileID string) (int64, error)
}
