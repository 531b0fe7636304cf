package definitions

import (
	"context"
	"database/sql"
	"encoding/json"
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

// Save upserts a definition by name.
func (r *PostgresRepository) Save(ctx context.Context, d *models.MetadataDefinition) error {
	fields, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	query := `
		INSERT INTO metadata_definitions (id, name, description, fields)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, fields = EXCLUDED.fields
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, d.ID, d.Name, d.Description, fields).Scan(&d.ID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.MetadataDefinition, error) {
	query := `SELECT id, name, description, fields FROM metadata_definitions WHERE name=$1`

	var (
		d      models.MetadataDefinition
		fields []byte
	)
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&d.ID, &d.Name, &d.Description, &fields); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(fields, &d.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return &d, nil
}
