// Package metadata persists metadata records keyed by resource, version and agent.
package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

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

const selectColumns = `id, resource_collection, resource_id, resource_version,
	agent_kind, agent_user, extractor_name, extractor_version,
	context_inline, context_url, definition, contents, revision, created_at, updated_at`

func (r *PostgresRepository) Insert(ctx context.Context, m *models.Metadata) error {
	contents, inline, err := encodeJSON(m)
	if err != nil {
		return err
	}
	kind, user, name, version := agentColumns(m.Agent)

	query := `
		INSERT INTO metadata (id, resource_collection, resource_id, resource_version,
			agent_kind, agent_user, extractor_name, extractor_version,
			context_inline, context_url, definition, contents, revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.Resource.Collection, m.Resource.ResourceID, m.Resource.Version,
		kind, user, name, version,
		inline, m.Context.URL, m.Context.Definition, contents, m.Revision, m.Created, m.Updated)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Find returns matching records ordered by creation time.
func (r *PostgresRepository) Find(ctx context.Context, q Query) ([]*models.Metadata, error) {
	where, args := buildFindWhere(q)
	query := "SELECT " + selectColumns + " FROM metadata " + where + " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select metadata: %w", err)
	}
	defer rows.Close()

	result := []*models.Metadata{}
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Replace overwrites the record in place when its stored revision still equals
// expectedRevision, and bumps the revision. A stale revision yields
// common.ErrVersionConflict.
func (r *PostgresRepository) Replace(ctx context.Context, m *models.Metadata, expectedRevision int64) error {
	contents, inline, err := encodeJSON(m)
	if err != nil {
		return err
	}
	kind, user, name, version := agentColumns(m.Agent)

	query := `
		UPDATE metadata SET
			agent_kind = $2,
			agent_user = $3,
			extractor_name = $4,
			extractor_version = $5,
			context_inline = $6,
			context_url = $7,
			definition = $8,
			contents = $9,
			updated_at = $10,
			revision = revision + 1
		WHERE id = $1 AND revision = $11
	`
	res, err := r.db.ExecContext(ctx, query,
		m.ID, kind, user, name, version, inline, m.Context.URL, m.Context.Definition, contents, m.Updated, expectedRevision)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		m.Revision = expectedRevision + 1
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete metadata: %w", err)
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

// DeleteByResource removes every record of the resource across all versions.
func (r *PostgresRepository) DeleteByResource(ctx context.Context, resourceID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE resource_id=$1`, resourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func buildFindWhere(q Query) (string, []any) {
	conditions := []string{"resource_id = $1"}
	args := []any{q.ResourceID}

	add := func(column string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if q.Version != nil {
		add("resource_version", *q.Version)
	}
	if q.AgentUser != nil {
		conditions = append(conditions, "agent_kind = 'user'")
		add("agent_user", *q.AgentUser)
	}
	if q.ExtractorName != nil {
		add("extractor_name", *q.ExtractorName)
	}
	if q.ExtractorVersion != nil {
		add("extractor_version", *q.ExtractorVersion)
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func agentColumns(a models.Agent) (kind string, user, name, version any) {
	switch v := a.(type) {
	case models.UserAgent:
		return string(models.AgentKindUser), v.UserID, nil, nil
	case models.ExtractorAgent:
		return string(models.AgentKindExtractor), nil, v.Name, v.Version
	default:
		return "", nil, nil, nil
	}
}

func encodeJSON(m *models.Metadata) (contents []byte, inline any, err error) {
	if m.Agent == nil {
		return nil, nil, fmt.Errorf("%w: metadata without agent", common.ErrorValidation)
	}
	contents, err = json.Marshal(m.Contents)
	if err != nil {
		return nil, nil, fmt.Errorf("encode contents: %w", err)
	}
	if m.Context.Inline != nil {
		b, err := json.Marshal(m.Context.Inline)
		if err != nil {
			return nil, nil, fmt.Errorf("encode context: %w", err)
		}
		inline = b
	}
	return contents, inline, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetadata(s scanner) (*models.Metadata, error) {
	var (
		m                    models.Metadata
		kind                 string
		user, name, version  sql.NullString
		inline, contentsJSON []byte
	)
	err := s.Scan(&m.ID, &m.Resource.Collection, &m.Resource.ResourceID, &m.Resource.Version,
		&kind, &user, &name, &version,
		&inline, &m.Context.URL, &m.Context.Definition, &contentsJSON, &m.Revision, &m.Created, &m.Updated)
	if err != nil {
		return nil, err
	}

	switch models.AgentKind(kind) {
	case models.AgentKindUser:
		m.Agent = models.UserAgent{UserID: user.String}
	case models.AgentKindExtractor:
		m.Agent = models.ExtractorAgent{Name: name.String, Version: version.String}
	default:
		return nil, fmt.Errorf("unknown agent kind %q", kind)
	}

	if err := json.Unmarshal(contentsJSON, &m.Contents); err != nil {
		return nil, fmt.Errorf("decode contents: %w", err)
	}
	if len(inline) > 0 {
		if err := json.Unmarshal(inline, &m.Context.Inline); err != nil {
			return nil, fmt.Errorf("decode context: %w", err)
		}
	}
	return &m, nil
}
