// Package versions stores the append-only revision ledger of each file.
package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/dbx"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert appends a ledger entry. A duplicate (file_id, version_num) pair
// surfaces as common.ErrVersionConflict.
func (r *PostgresRepository) Insert(ctx context.Context, v *models.FileVersion) error {
	query := `
		INSERT INTO file_versions (id, file_id, version_num, version_id, digest, size, creator, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.FileID, v.VersionNum, v.VersionID, v.Digest, v.Size, v.Creator, v.Created)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// MaxVersion returns the highest version number for the file, 0 when it has none.
func (r *PostgresRepository) MaxVersion(ctx context.Context, fileID string) (int64, error) {
	query := `SELECT COALESCE(MAX(version_num), 0) FROM file_versions WHERE file_id=$1`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, fileID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to select max version: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Get(ctx context.Context, fileID string, num int64) (*models.FileVersion, error) {
	query := `SELECT id, file_id, version_num, version_id, digest, size, creator, created_at
		FROM file_versions WHERE file_id=$1 AND version_num=$2`

	v := &models.FileVersion{}
	err := r.db.QueryRowContext(ctx, query, fileID, num).Scan(
		&v.ID, &v.FileID, &v.VersionNum, &v.VersionID, &v.Digest, &v.Size, &v.Creator, &v.Created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select version: %w", err)
	}
	return v, nil
}

// List returns entries in ascending version order.
func (r *PostgresRepository) List(ctx context.Context, fileID string, skip, limit int) ([]*models.FileVersion, error) {
	query := `SELECT id, file_id, version_num, version_id, digest, size, creator, created_at
		FROM file_versions WHERE file_id=$1
		ORDER BY version_num
		OFFSET $2 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, fileID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	result := []*models.FileVersion{}
	for rows.Next() {
		var v models.FileVersion
		if err := rows.Scan(&v.ID, &v.FileID, &v.VersionNum, &v.VersionID, &v.Digest, &v.Size, &v.Creator, &v.Created); err != nil {
			return nil, err
		}
		result = append(result, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByFile(ctx context.Context, fileID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM file_versions WHERE file_id=$1`, fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete versions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
