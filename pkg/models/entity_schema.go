package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventSchema describes one loggable event type against an entity schema
// (e.g. "Seen", "Progress"). Stored as part of the entity schema's
// event_schemas JSONB column.
type EventSchema struct {
	Name             string          `json:"name"`
	Slug             string          `json:"slug"`
	PropertiesSchema json.RawMessage `json:"properties_schema"`
}

// EntitySchema describes a kind of importable entity (book, anime, manga).
// PropertiesSchema is a JSON-Schema document validated against imported
// entities' properties at request time.
// Stored in entity_schemas table.
type EntitySchema struct {
	ID               uuid.UUID       `json:"id"`
	Slug             string          `json:"slug"`
	Name             string          `json:"name"`
	Owner            Owner           `json:"-"`
	IsBuiltin        bool            `json:"is_builtin"`
	EventSchemas     []EventSchema   `json:"event_schemas"`
	PropertiesSchema json.RawMessage `json:"properties_schema"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// EntitySchemaSandboxScript links an entity schema to one search/details
// script pair. A schema may carry several pairs, one per data source.
// Stored in entity_schema_sandbox_scripts table.
type EntitySchemaSandboxScript struct {
	ID                     uuid.UUID `json:"id"`
	EntitySchemaID         uuid.UUID `json:"entity_schema_id"`
	SearchSandboxScriptID  uuid.UUID `json:"search_sandbox_script_id"`
	DetailsSandboxScriptID uuid.UUID `json:"details_sandbox_script_id"`
	CreatedAt              time.Time `json:"created_at"`
}
