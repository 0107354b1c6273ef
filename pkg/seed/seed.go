package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shelfmark/shelfmark-engine/pkg/models"
	"github.com/shelfmark/shelfmark-engine/pkg/repositories"
)

// Seeder reconciles the builtin entity-schema catalog against the compiled-in
// manifest. It runs once at startup, before the server accepts traffic, so no
// locking discipline is needed beyond normal single-writer sequencing.
type Seeder struct {
	schemaRepo repositories.EntitySchemaRepository
	scriptRepo repositories.SandboxScriptRepository
	logger     *zap.Logger
}

// NewSeeder creates a new Seeder.
func NewSeeder(
	schemaRepo repositories.EntitySchemaRepository,
	scriptRepo repositories.SandboxScriptRepository,
	logger *zap.Logger,
) *Seeder {
	return &Seeder{
		schemaRepo: schemaRepo,
		scriptRepo: scriptRepo,
		logger:     logger.Named("seed"),
	}
}

// Run seeds builtin entity schemas and sandbox scripts, then links each
// schema to its script pairs. Any failure aborts the whole seed step; a link
// referencing an unseeded slug is a manifest defect and fails loudly so the
// process never starts with a partially consistent catalog.
func (s *Seeder) Run(ctx context.Context) error {
	s.logger.Info("Seeding entity schema catalog")

	schemaIDs := make(map[string]uuid.UUID)
	for _, def := range builtinEntitySchemas() {
		id, err := s.ensureBuiltinEntitySchema(ctx, def)
		if err != nil {
			return fmt.Errorf("failed to seed entity schema %q: %w", def.Slug, err)
		}
		schemaIDs[def.Slug] = id
	}

	scriptIDs := make(map[string]uuid.UUID)
	for _, def := range builtinSandboxScripts() {
		id, err := s.ensureBuiltinSandboxScript(ctx, def)
		if err != nil {
			return fmt.Errorf("failed to seed sandbox script %q: %w", def.Slug, err)
		}
		scriptIDs[def.Slug] = id
	}

	for _, link := range builtinScriptLinks() {
		schemaID, ok := schemaIDs[link.SchemaSlug]
		if !ok {
			return fmt.Errorf("seed manifest links unknown entity schema slug %q", link.SchemaSlug)
		}
		searchID, ok := scriptIDs[link.SearchScriptSlug]
		if !ok {
			return fmt.Errorf("seed manifest links unknown search script slug %q", link.SearchScriptSlug)
		}
		detailsID, ok := scriptIDs[link.DetailsScriptSlug]
		if !ok {
			return fmt.Errorf("seed manifest links unknown details script slug %q", link.DetailsScriptSlug)
		}

		if err := s.linkScriptPairToEntitySchema(ctx, schemaID, searchID, detailsID); err != nil {
			return fmt.Errorf("failed to link script pair (%s, %s) to schema %s: %w",
				link.SearchScriptSlug, link.DetailsScriptSlug, link.SchemaSlug, err)
		}
	}

	s.logger.Info("Entity schema catalog seeded",
		zap.Int("schemas", len(schemaIDs)),
		zap.Int("scripts", len(scriptIDs)),
		zap.Int("links", len(builtinScriptLinks())))

	return nil
}

// ensureBuiltinEntitySchema creates or updates the global schema row for the
// definition. Updates are skipped entirely when nothing differs, so a boot
// with an unchanged manifest performs zero writes.
func (s *Seeder) ensureBuiltinEntitySchema(ctx context.Context, def schemaDefinition) (uuid.UUID, error) {
	existing, err := s.schemaRepo.GetBySlug(ctx, def.Slug, models.GlobalOwner())
	if err != nil {
		return uuid.Nil, err
	}

	if existing == nil {
		schema := &models.EntitySchema{
			Slug:             def.Slug,
			Name:             def.Name,
			Owner:            models.GlobalOwner(),
			IsBuiltin:        true,
			EventSchemas:     def.EventSchemas,
			PropertiesSchema: def.PropertiesSchema,
		}
		if err := s.schemaRepo.Create(ctx, schema); err != nil {
			return uuid.Nil, err
		}
		s.logger.Info("Created builtin entity schema", zap.String("slug", def.Slug))
		return schema.ID, nil
	}

	upToDate := existing.Name == def.Name &&
		existing.IsBuiltin &&
		jsonValueEqual(mustJSON(existing.EventSchemas), mustJSON(def.EventSchemas)) &&
		jsonValueEqual(existing.PropertiesSchema, def.PropertiesSchema)
	if upToDate {
		return existing.ID, nil
	}

	existing.Name = def.Name
	existing.IsBuiltin = true
	existing.EventSchemas = def.EventSchemas
	existing.PropertiesSchema = def.PropertiesSchema
	if err := s.schemaRepo.Update(ctx, existing); err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("Updated builtin entity schema", zap.String("slug", def.Slug))

	return existing.ID, nil
}

// ensureBuiltinSandboxScript creates or updates the global script row for the
// definition, writing only when code, name or the builtin flag differ.
func (s *Seeder) ensureBuiltinSandboxScript(ctx context.Context, def scriptDefinition) (uuid.UUID, error) {
	existing, err := s.scriptRepo.GetBySlug(ctx, def.Slug, models.GlobalOwner())
	if err != nil {
		return uuid.Nil, err
	}

	if existing == nil {
		script := &models.SandboxScript{
			Slug:      def.Slug,
			Name:      def.Name,
			Owner:     models.GlobalOwner(),
			Code:      def.Code,
			IsBuiltin: true,
		}
		if err := s.scriptRepo.Create(ctx, script); err != nil {
			return uuid.Nil, err
		}
		s.logger.Info("Created builtin sandbox script", zap.String("slug", def.Slug))
		return script.ID, nil
	}

	if existing.Code == def.Code && existing.Name == def.Name && existing.IsBuiltin {
		return existing.ID, nil
	}

	existing.Code = def.Code
	existing.Name = def.Name
	existing.IsBuiltin = true
	if err := s.scriptRepo.Update(ctx, existing); err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("Updated builtin sandbox script", zap.String("slug", def.Slug))

	return existing.ID, nil
}

// linkScriptPairToEntitySchema is check-then-insert on the exact triple;
// links are never updated or deleted.
func (s *Seeder) linkScriptPairToEntitySchema(ctx context.Context, schemaID, searchID, detailsID uuid.UUID) error {
	exists, err := s.scriptRepo.LinkExists(ctx, schemaID, searchID, detailsID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return s.scriptRepo.CreateLink(ctx, &models.EntitySchemaSandboxScript{
		EntitySchemaID:         schemaID,
		SearchSandboxScriptID:  searchID,
		DetailsSandboxScriptID: detailsID,
	})
}

// jsonValueEqual compares two JSON documents structurally, ignoring key order
// and whitespace. Stored jsonb comes back normalized, so a byte compare
// against the manifest literal would report spurious differences.
func jsonValueEqual(a, b json.RawMessage) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("seed: failed to marshal manifest value: %v", err))
	}
	return data
}
