package models

import (
	"time"

	"github.com/google/uuid"
)

// SandboxScript is a source-connector script executed in the sandbox.
// Code is the base64-encoded WASM module text; it is read-only input to the
// sandbox from the pipeline's point of view.
// Stored in sandbox_scripts table.
type SandboxScript struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Owner     Owner     `json:"-"`
	Code      string    `json:"-"`
	IsBuiltin bool      `json:"is_builtin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResolvedSearchScript is a search script together with the slug of the
// entity schema it is linked to, as needed by the search pipeline.
type ResolvedSearchScript struct {
	Script     *SandboxScript
	SchemaSlug string
}

// ResolvedDetailsScript is a details script together with the owning entity
// schema's id, slug and properties schema, as needed by the import pipeline.
type ResolvedDetailsScript struct {
	Script           *SandboxScript
	SchemaID         uuid.UUID
	SchemaSlug       string
	PropertiesSchema []byte
}
