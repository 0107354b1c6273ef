package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shelfmark/shelfmark-engine/pkg/database"
	"github.com/shelfmark/shelfmark-engine/pkg/models"
)

// UpsertImportedEntityInput carries the validated payload of one import.
type UpsertImportedEntityInput struct {
	OwnerID                string
	EntitySchemaID         uuid.UUID
	Name                   string
	ExternalID             string
	Properties             json.RawMessage
	DetailsSandboxScriptID uuid.UUID
}

// UpsertResult reports whether the upsert created a new entity row.
type UpsertResult struct {
	Created  bool
	EntityID uuid.UUID
}

// EntityRepository provides data access for imported entities.
type EntityRepository interface {
	// UpsertImported finds-or-creates the entity keyed by
	// (entity_schema_id, owner_id, external_id, details_sandbox_script_id)
	// inside a single transaction. Concurrent imports of the same key
	// serialize on a per-key lock, so at most one of them creates a row.
	UpsertImported(ctx context.Context, in *UpsertImportedEntityInput) (*UpsertResult, error)
	GetByID(ctx context.Context, entityID uuid.UUID) (*models.Entity, error)
	CountByKey(ctx context.Context, entitySchemaID uuid.UUID, ownerID, externalID string, detailsScriptID uuid.UUID) (int, error)
}

type entityRepository struct {
	db *database.DB
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db *database.DB) EntityRepository {
	return &entityRepository{db: db}
}

var _ EntityRepository = (*entityRepository)(nil)

func (r *entityRepository) UpsertImported(ctx context.Context, in *UpsertImportedEntityInput) (*UpsertResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Serialize concurrent imports of the same logical key for the whole
	// transaction. The row lock below only helps once a row exists; without
	// this, two first-time imports both see "no row" and both insert.
	lockKey := strings.Join([]string{
		in.EntitySchemaID.String(), in.OwnerID, in.ExternalID, in.DetailsSandboxScriptID.String(),
	}, "\x1f")
	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire import lock: %w", err)
	}

	// Oldest row wins when duplicates predate the per-key locking.
	var existingID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM entities
		WHERE entity_schema_id = $1 AND owner_id = $2 AND external_id = $3 AND details_sandbox_script_id = $4
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE`,
		in.EntitySchemaID, in.OwnerID, in.ExternalID, in.DetailsSandboxScriptID,
	).Scan(&existingID)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to query existing entity: %w", err)
	}

	if err == nil {
		_, err = tx.Exec(ctx, `
			UPDATE entities
			SET name = $2, properties = $3, entity_schema_id = $4, details_sandbox_script_id = $5, updated_at = $6
			WHERE id = $1`,
			existingID, in.Name, []byte(in.Properties), in.EntitySchemaID, in.DetailsSandboxScriptID, time.Now(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update imported entity: %w", err)
		}

		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		return &UpsertResult{Created: false, EntityID: existingID}, nil
	}

	now := time.Now()
	var insertedID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO entities (
			id, owner_id, entity_schema_id, external_id, name, properties, details_sandbox_script_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		uuid.New(), in.OwnerID, in.EntitySchemaID, in.ExternalID, in.Name,
		[]byte(in.Properties), in.DetailsSandboxScriptID, now, now,
	).Scan(&insertedID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("could not persist imported entity: insert returned no row")
		}
		return nil, fmt.Errorf("failed to insert imported entity: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &UpsertResult{Created: true, EntityID: insertedID}, nil
}

func (r *entityRepository) GetByID(ctx context.Context, entityID uuid.UUID) (*models.Entity, error) {
	query := `
		SELECT id, owner_id, entity_schema_id, external_id, name, properties, details_sandbox_script_id, created_at, updated_at
		FROM entities
		WHERE id = $1`

	var e models.Entity
	var properties []byte
	err := r.db.QueryRow(ctx, query, entityID).Scan(
		&e.ID, &e.OwnerID, &e.EntitySchemaID, &e.ExternalID, &e.Name,
		&properties, &e.DetailsSandboxScriptID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	e.Properties = json.RawMessage(properties)
	return &e, nil
}

func (r *entityRepository) CountByKey(ctx context.Context, entitySchemaID uuid.UUID, ownerID, externalID string, detailsScriptID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM entities
		WHERE entity_schema_id = $1 AND owner_id = $2 AND external_id = $3 AND details_sandbox_script_id = $4`

	var count int
	err := r.db.QueryRow(ctx, query, entitySchemaID, ownerID, externalID, detailsScriptID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}

	return count, nil
}
