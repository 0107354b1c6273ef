package services

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire contracts the sandbox scripts must satisfy. A payload that fails these
// checks is a contract violation by the script author, not a user error.

// SearchResultItem is one row of a search script's result.
type SearchResultItem struct {
	Title       string  `json:"title"`
	Identifier  string  `json:"identifier"`
	Image       *string `json:"image,omitempty"`
	PublishYear *int    `json:"publish_year,omitempty"`
}

// SearchResultPage is the paginated envelope returned by the search pipeline.
type SearchResultPage struct {
	Items   []SearchResultItem `json:"items"`
	Page    int                `json:"page"`
	Total   int                `json:"total"`
	HasMore bool               `json:"hasMore"`
}

type searchPayloadItem struct {
	Title       *string `json:"title"`
	Identifier  *string `json:"identifier"`
	Image       *string `json:"image"`
	PublishYear *int    `json:"publish_year"`
}

type searchPayloadDetails struct {
	NextPage   *int `json:"nextPage"`
	TotalItems *int `json:"totalItems"`
}

type searchPayload struct {
	Items   []searchPayloadItem   `json:"items"`
	Details *searchPayloadDetails `json:"details"`
}

// parseSearchPayload validates a search script's raw result against the fixed
// shape: an items array (title and identifier required per item) plus details
// with a required non-negative totalItems and an optional nullable nextPage.
func parseSearchPayload(value json.RawMessage) (*searchPayload, error) {
	if !isJSONObject(value) {
		return nil, fmt.Errorf("payload is not an object")
	}

	var payload searchPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		return nil, fmt.Errorf("payload does not match the search result shape: %w", err)
	}

	if payload.Items == nil {
		return nil, fmt.Errorf("payload is missing items")
	}
	for i, item := range payload.Items {
		if item.Title == nil {
			return nil, fmt.Errorf("items[%d] is missing title", i)
		}
		if item.Identifier == nil {
			return nil, fmt.Errorf("items[%d] is missing identifier", i)
		}
	}

	if payload.Details == nil {
		return nil, fmt.Errorf("payload is missing details")
	}
	if payload.Details.TotalItems == nil {
		return nil, fmt.Errorf("details is missing totalItems")
	}
	if *payload.Details.TotalItems < 0 {
		return nil, fmt.Errorf("details.totalItems is negative")
	}

	return &payload, nil
}

type importEnvelope struct {
	Name       *string         `json:"name"`
	ExternalID *string         `json:"externalId"`
	Properties json.RawMessage `json:"properties"`
}

// parseImportEnvelope validates a details script's raw result against the
// fixed outer wrapper { name, externalId, properties }. The wrapper is
// strict: unknown keys are rejected.
func parseImportEnvelope(value json.RawMessage) (*importEnvelope, error) {
	if !isJSONObject(value) {
		return nil, fmt.Errorf("payload is not an object")
	}

	decoder := json.NewDecoder(bytes.NewReader(value))
	decoder.DisallowUnknownFields()

	var envelope importEnvelope
	if err := decoder.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("payload does not match the import envelope shape: %w", err)
	}

	if envelope.Name == nil || *envelope.Name == "" {
		return nil, fmt.Errorf("envelope is missing name")
	}
	if envelope.ExternalID == nil || *envelope.ExternalID == "" {
		return nil, fmt.Errorf("envelope is missing externalId")
	}
	if len(envelope.Properties) == 0 || string(envelope.Properties) == "null" {
		return nil, fmt.Errorf("envelope is missing properties")
	}

	return &envelope, nil
}

// isJSONObject reports whether the document's top-level value is a plain
// object (not an array, scalar or null).
func isJSONObject(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
