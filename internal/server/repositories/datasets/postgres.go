// Package datasets stores dataset membership of files.
package datasets

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/dbx"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, id, name string) error {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO datasets (id, name) VALUES ($1, $2)`, id, name); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// AddFile puts the file into the dataset. An unknown dataset or a malformed
// id is reported as common.ErrorNotFound.
func (r *PostgresRepository) AddFile(ctx context.Context, datasetID, fileID string) error {
	if uuid.Validate(datasetID) != nil || uuid.Validate(fileID) != nil {
		return common.ErrorNotFound
	}
	query := `INSERT INTO dataset_files (dataset_id, file_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, datasetID, fileID); err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByFile returns the ids of datasets containing the file.
func (r *PostgresRepository) ListByFile(ctx context.Context, fileID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT dataset_id FROM dataset_files WHERE file_id=$1 ORDER BY dataset_id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to select datasets: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// RemoveFile drops the file from every dataset. Removing an absent file is not an error.
func (r *PostgresRepository) RemoveFile(ctx context.Context, fileID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dataset_files WHERE file_id=$1`, fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove file from datasets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
