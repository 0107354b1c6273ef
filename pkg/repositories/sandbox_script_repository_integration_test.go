//go:build integration

package repositories

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmark/shelfmark-engine/pkg/models"
	"github.com/shelfmark/shelfmark-engine/pkg/testhelpers"
)

func seedLinkedScripts(t *testing.T, owner models.Owner) (schemaSlug string, searchID, detailsID uuid.UUID) {
	t.Helper()
	db := testhelpers.GetEngineDB(t)
	schemaRepo := NewEntitySchemaRepository(db.DB)
	scriptRepo := NewSandboxScriptRepository(db.DB)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	schema := &models.EntitySchema{
		Slug:             "manga-" + suffix,
		Name:             "Manga",
		Owner:            owner,
		EventSchemas:     []models.EventSchema{},
		PropertiesSchema: json.RawMessage(`{"type": "object"}`),
	}
	require.NoError(t, schemaRepo.Create(ctx, schema))

	search := &models.SandboxScript{
		Slug: "manga.search-" + suffix, Name: "Manga Search",
		Owner: owner, Code: "AGFzbQEAAAA=",
	}
	require.NoError(t, scriptRepo.Create(ctx, search))

	details := &models.SandboxScript{
		Slug: "manga.details-" + suffix, Name: "Manga Import",
		Owner: owner, Code: "AGFzbQEAAAA=",
	}
	require.NoError(t, scriptRepo.Create(ctx, details))

	require.NoError(t, scriptRepo.CreateLink(ctx, &models.EntitySchemaSandboxScript{
		EntitySchemaID:         schema.ID,
		SearchSandboxScriptID:  search.ID,
		DetailsSandboxScriptID: details.ID,
	}))

	return schema.Slug, search.ID, details.ID
}

func TestGetSearchScript_GlobalScriptVisibleToAnyUser(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	scriptRepo := NewSandboxScriptRepository(db.DB)
	ctx := context.Background()

	schemaSlug, searchID, _ := seedLinkedScripts(t, models.GlobalOwner())

	resolved, err := scriptRepo.GetSearchScript(ctx, searchID, "any-user")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, searchID, resolved.Script.ID)
	assert.Equal(t, schemaSlug, resolved.SchemaSlug)
}

func TestGetSearchScript_OtherUsersScriptIsHidden(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	scriptRepo := NewSandboxScriptRepository(db.DB)
	ctx := context.Background()

	ownerID := "owner-" + uuid.NewString()[:8]
	_, searchID, _ := seedLinkedScripts(t, models.UserOwner(ownerID))

	// The owner resolves it, everyone else gets nothing.
	resolved, err := scriptRepo.GetSearchScript(ctx, searchID, ownerID)
	require.NoError(t, err)
	require.NotNil(t, resolved)

	hidden, err := scriptRepo.GetSearchScript(ctx, searchID, "someone-else")
	require.NoError(t, err)
	assert.Nil(t, hidden)
}

func TestGetDetailsScript_CarriesSchemaPropertiesSchema(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	scriptRepo := NewSandboxScriptRepository(db.DB)
	ctx := context.Background()

	schemaSlug, _, detailsID := seedLinkedScripts(t, models.GlobalOwner())

	resolved, err := scriptRepo.GetDetailsScript(ctx, detailsID, "any-user")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, schemaSlug, resolved.SchemaSlug)
	assert.NotEqual(t, uuid.Nil, resolved.SchemaID)
	assert.JSONEq(t, `{"type": "object"}`, string(resolved.PropertiesSchema))
}

func TestGetSearchScript_UnlinkedScriptIsNotResolvable(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	scriptRepo := NewSandboxScriptRepository(db.DB)
	ctx := context.Background()

	orphan := &models.SandboxScript{
		Slug: "orphan.search-" + uuid.NewString()[:8], Name: "Orphan Search",
		Owner: models.GlobalOwner(), Code: "AGFzbQEAAAA=",
	}
	require.NoError(t, scriptRepo.Create(ctx, orphan))

	resolved, err := scriptRepo.GetSearchScript(ctx, orphan.ID, "any-user")
	require.NoError(t, err)
	assert.Nil(t, resolved, "a script with no schema link cannot run")
}
