package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/dbx"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new file record.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (id, name, creator, created_at, version_num, version_id, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.Name, file.Creator, file.Created, file.VersionNum, file.VersionID, file.Size)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the file with the given id or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	query := `SELECT id, name, creator, created_at, version_num, version_id, size, downloads
		FROM files WHERE id=$1`

	f := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.Name, &f.Creator, &f.Created, &f.VersionNum, &f.VersionID, &f.Size, &f.Downloads)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// UpdateContent points the record at a new revision. The update only applies
// while the stored version number still equals expectedVersion; otherwise
// ErrVersionConflict is returned.
func (r *PostgresRepository) UpdateContent(ctx context.Context, file *models.File, expectedVersion int64) error {
	query := `
		UPDATE files SET
			name = $2,
			creator = $3,
			created_at = $4,
			version_num = $5,
			version_id = $6,
			size = $7
		WHERE id = $1 AND version_num = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		file.ID, file.Name, file.Creator, file.Created, file.VersionNum, file.VersionID, file.Size, expectedVersion)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Rename changes the file name without touching its content.
func (r *PostgresRepository) Rename(ctx context.Context, id, name string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	return r.execOne(ctx, `UPDATE files SET name=$2 WHERE id=$1`, id, name)
}

// IncrementDownloads bumps the download counter by one.
func (r *PostgresRepository) IncrementDownloads(ctx context.Context, id string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	return r.execOne(ctx, `UPDATE files SET downloads = downloads + 1 WHERE id=$1`, id)
}

// Delete removes the record. Deleting a missing record is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1`, id); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// validID reports whether id fits the uuid id column.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}
