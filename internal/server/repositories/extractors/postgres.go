package extractors

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

// Register upserts an extractor by (name, version) and fills in its id.
func (r *PostgresRepository) Register(ctx context.Context, e *models.Extractor) error {
	query := `
		INSERT INTO extractors (id, name, version, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, version) DO UPDATE SET description = EXCLUDED.description
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, e.ID, e.Name, e.Version, e.Description).Scan(&e.ID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, name, version string) (*models.Extractor, error) {
	query := `SELECT id, name, version, description FROM extractors WHERE name=$1 AND version=$2`

	e := &models.Extractor{}
	if err := r.db.QueryRowContext(ctx, query, name, version).Scan(&e.ID, &e.Name, &e.Version, &e.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}
