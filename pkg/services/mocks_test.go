package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/shelfmark/shelfmark-engine/pkg/models"
	"github.com/shelfmark/shelfmark-engine/pkg/repositories"
	"github.com/shelfmark/shelfmark-engine/pkg/sandbox"
)

// mockSandboxService returns a canned result and records the runs it saw.
type mockSandboxService struct {
	result *sandbox.Result
	err    error
	runs   []*sandbox.RunInput
}

func (m *mockSandboxService) Run(ctx context.Context, in *sandbox.RunInput) (*sandbox.Result, error) {
	m.runs = append(m.runs, in)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockScriptRepository struct {
	searchScript  *models.ResolvedSearchScript
	detailsScript *models.ResolvedDetailsScript
	err           error
}

func (m *mockScriptRepository) GetBySlug(ctx context.Context, slug string, owner models.Owner) (*models.SandboxScript, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockScriptRepository) Create(ctx context.Context, script *models.SandboxScript) error {
	return fmt.Errorf("not implemented")
}

func (m *mockScriptRepository) Update(ctx context.Context, script *models.SandboxScript) error {
	return fmt.Errorf("not implemented")
}

func (m *mockScriptRepository) GetSearchScript(ctx context.Context, scriptID uuid.UUID, userID string) (*models.ResolvedSearchScript, error) {
	return m.searchScript, m.err
}

func (m *mockScriptRepository) GetDetailsScript(ctx context.Context, scriptID uuid.UUID, userID string) (*models.ResolvedDetailsScript, error) {
	return m.detailsScript, m.err
}

func (m *mockScriptRepository) LinkExists(ctx context.Context, entitySchemaID, searchScriptID, detailsScriptID uuid.UUID) (bool, error) {
	return false, fmt.Errorf("not implemented")
}

func (m *mockScriptRepository) CreateLink(ctx context.Context, link *models.EntitySchemaSandboxScript) error {
	return fmt.Errorf("not implemented")
}

type mockSchemaRepository struct {
	listRows []*repositories.SchemaScriptPairRow
	listErr  error
}

func (m *mockSchemaRepository) GetBySlug(ctx context.Context, slug string, owner models.Owner) (*models.EntitySchema, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockSchemaRepository) Create(ctx context.Context, schema *models.EntitySchema) error {
	return fmt.Errorf("not implemented")
}

func (m *mockSchemaRepository) Update(ctx context.Context, schema *models.EntitySchema) error {
	return fmt.Errorf("not implemented")
}

func (m *mockSchemaRepository) ListVisibleWithScriptPairs(ctx context.Context, userID string) ([]*repositories.SchemaScriptPairRow, error) {
	return m.listRows, m.listErr
}

type mockEntityRepository struct {
	result  *repositories.UpsertResult
	err     error
	upserts []*repositories.UpsertImportedEntityInput
}

func (m *mockEntityRepository) UpsertImported(ctx context.Context, in *repositories.UpsertImportedEntityInput) (*repositories.UpsertResult, error) {
	m.upserts = append(m.upserts, in)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockEntityRepository) GetByID(ctx context.Context, entityID uuid.UUID) (*models.Entity, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockEntityRepository) CountByKey(ctx context.Context, entitySchemaID uuid.UUID, ownerID, externalID string, detailsScriptID uuid.UUID) (int, error) {
	return 0, fmt.Errorf("not implemented")
}

// mockConfigValues serves values from in-memory maps; user values are keyed
// "userID/key".
type mockConfigValues struct {
	appValues  map[string]json.RawMessage
	userValues map[string]json.RawMessage
}

func (m *mockConfigValues) GetAppValue(ctx context.Context, key string) (json.RawMessage, bool, error) {
	value, ok := m.appValues[key]
	return value, ok, nil
}

func (m *mockConfigValues) GetUserValue(ctx context.Context, userID, key string) (json.RawMessage, bool, error) {
	value, ok := m.userValues[userID+"/"+key]
	return value, ok, nil
}
