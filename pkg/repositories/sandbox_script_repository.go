package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shelfmark/shelfmark-engine/pkg/database"
	"github.com/shelfmark/shelfmark-engine/pkg/models"
)

// SandboxScriptRepository provides data access for sandbox scripts and the
// schema-to-script-pair links.
type SandboxScriptRepository interface {
	// GetBySlug returns the script with the given slug and owner, or nil if absent.
	GetBySlug(ctx context.Context, slug string, owner models.Owner) (*models.SandboxScript, error)
	Create(ctx context.Context, script *models.SandboxScript) error
	Update(ctx context.Context, script *models.SandboxScript) error

	// GetSearchScript resolves a search script visible to the user (own or
	// global) together with its linked schema's slug, or nil if absent.
	GetSearchScript(ctx context.Context, scriptID uuid.UUID, userID string) (*models.ResolvedSearchScript, error)
	// GetDetailsScript resolves a details script visible to the user together
	// with its linked schema's id, slug and properties schema, or nil if absent.
	GetDetailsScript(ctx context.Context, scriptID uuid.UUID, userID string) (*models.ResolvedDetailsScript, error)

	// LinkExists reports whether the exact (schema, search, details) triple is linked.
	LinkExists(ctx context.Context, entitySchemaID, searchScriptID, detailsScriptID uuid.UUID) (bool, error)
	CreateLink(ctx context.Context, link *models.EntitySchemaSandboxScript) error
}

type sandboxScriptRepository struct {
	db *database.DB
}

// NewSandboxScriptRepository creates a new SandboxScriptRepository.
func NewSandboxScriptRepository(db *database.DB) SandboxScriptRepository {
	return &sandboxScriptRepository{db: db}
}

var _ SandboxScriptRepository = (*sandboxScriptRepository)(nil)

func (r *sandboxScriptRepository) GetBySlug(ctx context.Context, slug string, owner models.Owner) (*models.SandboxScript, error) {
	query := `
		SELECT id, slug, name, owner_id, code, is_builtin, created_at, updated_at
		FROM sandbox_scripts
		WHERE slug = $1 AND owner_id IS NULL`
	args := []any{slug}

	if ownerID, ok := owner.UserID(); ok {
		query = `
		SELECT id, slug, name, owner_id, code, is_builtin, created_at, updated_at
		FROM sandbox_scripts
		WHERE slug = $1 AND owner_id = $2`
		args = append(args, ownerID)
	}

	script, err := scanSandboxScript(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return script, nil
}

func (r *sandboxScriptRepository) Create(ctx context.Context, script *models.SandboxScript) error {
	now := time.Now()
	script.CreatedAt = now
	script.UpdatedAt = now

	if script.ID == uuid.Nil {
		script.ID = uuid.New()
	}

	query := `
		INSERT INTO sandbox_scripts (id, slug, name, owner_id, code, is_builtin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		script.ID, script.Slug, script.Name, script.Owner.Ptr(),
		script.Code, script.IsBuiltin, script.CreatedAt, script.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sandbox script: %w", err)
	}

	return nil
}

func (r *sandboxScriptRepository) Update(ctx context.Context, script *models.SandboxScript) error {
	script.UpdatedAt = time.Now()

	query := `
		UPDATE sandbox_scripts
		SET name = $2, code = $3, is_builtin = $4, updated_at = $5
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query,
		script.ID, script.Name, script.Code, script.IsBuiltin, script.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update sandbox script: %w", err)
	}

	return nil
}

func (r *sandboxScriptRepository) GetSearchScript(ctx context.Context, scriptID uuid.UUID, userID string) (*models.ResolvedSearchScript, error) {
	query := `
		SELECT s.id, s.slug, s.name, s.owner_id, s.code, s.is_builtin, s.created_at, s.updated_at,
		       es.slug
		FROM sandbox_scripts s
		JOIN entity_schema_sandbox_scripts l ON l.search_sandbox_script_id = s.id
		JOIN entity_schemas es ON es.id = l.entity_schema_id
		WHERE s.id = $1 AND (s.owner_id IS NULL OR s.owner_id = $2)
		ORDER BY l.created_at
		LIMIT 1`

	var s models.SandboxScript
	var ownerID *string
	var schemaSlug string

	err := r.db.QueryRow(ctx, query, scriptID, userID).Scan(
		&s.ID, &s.Slug, &s.Name, &ownerID, &s.Code, &s.IsBuiltin, &s.CreatedAt, &s.UpdatedAt,
		&schemaSlug,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve search script: %w", err)
	}

	s.Owner = models.OwnerFromPtr(ownerID)
	return &models.ResolvedSearchScript{Script: &s, SchemaSlug: schemaSlug}, nil
}

func (r *sandboxScriptRepository) GetDetailsScript(ctx context.Context, scriptID uuid.UUID, userID string) (*models.ResolvedDetailsScript, error) {
	query := `
		SELECT s.id, s.slug, s.name, s.owner_id, s.code, s.is_builtin, s.created_at, s.updated_at,
		       es.id, es.slug, es.properties_schema
		FROM sandbox_scripts s
		JOIN entity_schema_sandbox_scripts l ON l.details_sandbox_script_id = s.id
		JOIN entity_schemas es ON es.id = l.entity_schema_id
		WHERE s.id = $1 AND (s.owner_id IS NULL OR s.owner_id = $2)
		ORDER BY l.created_at
		LIMIT 1`

	var s models.SandboxScript
	var ownerID *string
	var schemaID uuid.UUID
	var schemaSlug string
	var propertiesSchema []byte

	err := r.db.QueryRow(ctx, query, scriptID, userID).Scan(
		&s.ID, &s.Slug, &s.Name, &ownerID, &s.Code, &s.IsBuiltin, &s.CreatedAt, &s.UpdatedAt,
		&schemaID, &schemaSlug, &propertiesSchema,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve details script: %w", err)
	}

	s.Owner = models.OwnerFromPtr(ownerID)
	return &models.ResolvedDetailsScript{
		Script:           &s,
		SchemaID:         schemaID,
		SchemaSlug:       schemaSlug,
		PropertiesSchema: propertiesSchema,
	}, nil
}

func (r *sandboxScriptRepository) LinkExists(ctx context.Context, entitySchemaID, searchScriptID, detailsScriptID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM entity_schema_sandbox_scripts
			WHERE entity_schema_id = $1
			  AND search_sandbox_script_id = $2
			  AND details_sandbox_script_id = $3
		)`

	var exists bool
	err := r.db.QueryRow(ctx, query, entitySchemaID, searchScriptID, detailsScriptID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check script pair link: %w", err)
	}

	return exists, nil
}

func (r *sandboxScriptRepository) CreateLink(ctx context.Context, link *models.EntitySchemaSandboxScript) error {
	link.CreatedAt = time.Now()

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}

	query := `
		INSERT INTO entity_schema_sandbox_scripts (
			id, entity_schema_id, search_sandbox_script_id, details_sandbox_script_id, created_at
		) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		link.ID, link.EntitySchemaID, link.SearchSandboxScriptID, link.DetailsSandboxScriptID, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create script pair link: %w", err)
	}

	return nil
}

func scanSandboxScript(row pgx.Row) (*models.SandboxScript, error) {
	var s models.SandboxScript
	var ownerID *string

	err := row.Scan(
		&s.ID, &s.Slug, &s.Name, &ownerID, &s.Code, &s.IsBuiltin, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sandbox script: %w", err)
	}

	s.Owner = models.OwnerFromPtr(ownerID)
	return &s, nil
}
