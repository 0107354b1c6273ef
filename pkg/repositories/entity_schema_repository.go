package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shelfmark/shelfmark-engine/pkg/database"
	"github.com/shelfmark/shelfmark-engine/pkg/models"
)

// SchemaScriptPairRow is one (schema, search script, details script) link row
// as returned by the visible-schemas listing query.
type SchemaScriptPairRow struct {
	SchemaID          uuid.UUID
	SchemaSlug        string
	SchemaName        string
	SearchScriptID    *uuid.UUID
	SearchScriptName  *string
	DetailsScriptID   *uuid.UUID
	DetailsScriptName *string
}

// EntitySchemaRepository provides data access for entity schemas.
type EntitySchemaRepository interface {
	// GetBySlug returns the schema with the given slug and owner, or nil if absent.
	GetBySlug(ctx context.Context, slug string, owner models.Owner) (*models.EntitySchema, error)
	Create(ctx context.Context, schema *models.EntitySchema) error
	Update(ctx context.Context, schema *models.EntitySchema) error
	// ListVisibleWithScriptPairs returns every schema visible to the user
	// (global plus user-owned) joined to its search/details script pairs.
	// Schemas without any pair appear once with nil script columns.
	ListVisibleWithScriptPairs(ctx context.Context, userID string) ([]*SchemaScriptPairRow, error)
}

type entitySchemaRepository struct {
	db *database.DB
}

// NewEntitySchemaRepository creates a new EntitySchemaRepository.
func NewEntitySchemaRepository(db *database.DB) EntitySchemaRepository {
	return &entitySchemaRepository{db: db}
}

var _ EntitySchemaRepository = (*entitySchemaRepository)(nil)

func (r *entitySchemaRepository) GetBySlug(ctx context.Context, slug string, owner models.Owner) (*models.EntitySchema, error) {
	query := `
		SELECT id, slug, name, owner_id, is_builtin, event_schemas, properties_schema, created_at, updated_at
		FROM entity_schemas
		WHERE slug = $1 AND owner_id IS NULL`
	args := []any{slug}

	if ownerID, ok := owner.UserID(); ok {
		query = `
		SELECT id, slug, name, owner_id, is_builtin, event_schemas, properties_schema, created_at, updated_at
		FROM entity_schemas
		WHERE slug = $1 AND owner_id = $2`
		args = append(args, ownerID)
	}

	schema, err := scanEntitySchema(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return schema, nil
}

func (r *entitySchemaRepository) Create(ctx context.Context, schema *models.EntitySchema) error {
	now := time.Now()
	schema.CreatedAt = now
	schema.UpdatedAt = now

	if schema.ID == uuid.Nil {
		schema.ID = uuid.New()
	}

	eventSchemas, err := json.Marshal(schema.EventSchemas)
	if err != nil {
		return fmt.Errorf("failed to encode event schemas: %w", err)
	}

	query := `
		INSERT INTO entity_schemas (
			id, slug, name, owner_id, is_builtin, event_schemas, properties_schema, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		schema.ID, schema.Slug, schema.Name, schema.Owner.Ptr(), schema.IsBuiltin,
		eventSchemas, []byte(schema.PropertiesSchema),
		schema.CreatedAt, schema.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create entity schema: %w", err)
	}

	return nil
}

func (r *entitySchemaRepository) Update(ctx context.Context, schema *models.EntitySchema) error {
	schema.UpdatedAt = time.Now()

	eventSchemas, err := json.Marshal(schema.EventSchemas)
	if err != nil {
		return fmt.Errorf("failed to encode event schemas: %w", err)
	}

	query := `
		UPDATE entity_schemas
		SET name = $2, is_builtin = $3, event_schemas = $4, properties_schema = $5, updated_at = $6
		WHERE id = $1`

	_, err = r.db.Exec(ctx, query,
		schema.ID, schema.Name, schema.IsBuiltin,
		eventSchemas, []byte(schema.PropertiesSchema), schema.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity schema: %w", err)
	}

	return nil
}

func (r *entitySchemaRepository) ListVisibleWithScriptPairs(ctx context.Context, userID string) ([]*SchemaScriptPairRow, error) {
	query := `
		SELECT es.id, es.slug, es.name,
		       search.id, search.name,
		       details.id, details.name
		FROM entity_schemas es
		LEFT JOIN entity_schema_sandbox_scripts l ON l.entity_schema_id = es.id
		LEFT JOIN sandbox_scripts search ON search.id = l.search_sandbox_script_id
		LEFT JOIN sandbox_scripts details ON details.id = l.details_sandbox_script_id
		WHERE es.owner_id IS NULL OR es.owner_id = $1
		ORDER BY es.name, search.name`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query visible entity schemas: %w", err)
	}
	defer rows.Close()

	var result []*SchemaScriptPairRow
	for rows.Next() {
		var row SchemaScriptPairRow
		err := rows.Scan(
			&row.SchemaID, &row.SchemaSlug, &row.SchemaName,
			&row.SearchScriptID, &row.SearchScriptName,
			&row.DetailsScriptID, &row.DetailsScriptName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schema script pair: %w", err)
		}
		result = append(result, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema script pairs: %w", err)
	}

	return result, nil
}

func scanEntitySchema(row pgx.Row) (*models.EntitySchema, error) {
	var s models.EntitySchema
	var ownerID *string
	var eventSchemas, propertiesSchema []byte

	err := row.Scan(
		&s.ID, &s.Slug, &s.Name, &ownerID, &s.IsBuiltin,
		&eventSchemas, &propertiesSchema,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entity schema: %w", err)
	}

	s.Owner = models.OwnerFromPtr(ownerID)
	s.PropertiesSchema = json.RawMessage(propertiesSchema)
	if err := json.Unmarshal(eventSchemas, &s.EventSchemas); err != nil {
		return nil, fmt.Errorf("failed to decode event schemas: %w", err)
	}

	return &s, nil
}
