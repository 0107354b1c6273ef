package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchPayload_ItemMissingIdentifier(t *testing.T) {
	_, err := parseSearchPayload(json.RawMessage(`{
		"items": [{"title": "Dune"}],
		"details": {"totalItems": 1}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identifier")
}

func TestParseSearchPayload_NegativeTotalItems(t *testing.T) {
	_, err := parseSearchPayload(json.RawMessage(`{
		"items": [],
		"details": {"totalItems": -1}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")
}

func TestParseSearchPayload_EmptyItemsIsValid(t *testing.T) {
	payload, err := parseSearchPayload(json.RawMessage(`{
		"items": [],
		"details": {"nextPage": null, "totalItems": 0}
	}`))
	require.NoError(t, err)
	assert.Empty(t, payload.Items)
	assert.Nil(t, payload.Details.NextPage)
}

func TestParseImportEnvelope_MissingProperties(t *testing.T) {
	_, err := parseImportEnvelope(json.RawMessage(`{"name": "Dune", "externalId": "OL893415W"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "properties")
}

func TestParseImportEnvelope_NullPropertiesRejected(t *testing.T) {
	_, err := parseImportEnvelope(json.RawMessage(`{"name": "Dune", "externalId": "OL893415W", "properties": null}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "properties")
}

func TestParseImportEnvelope_Valid(t *testing.T) {
	envelope, err := parseImportEnvelope(json.RawMessage(`{
		"name": "Dune",
		"externalId": "OL893415W",
		"properties": {"title": "Dune"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Dune", *envelope.Name)
	assert.Equal(t, "OL893415W", *envelope.ExternalID)
	assert.JSONEq(t, `{"title": "Dune"}`, string(envelope.Properties))
}
