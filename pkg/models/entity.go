package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entity is an imported media item owned by a user. Uniqueness key is the
// 4-tuple (entity_schema_id, owner_id, external_id, details_sandbox_script_id):
// re-importing the same external item through the same script updates the
// existing row, while the same external id through a different script is a
// distinct entity (different provenance).
// Stored in entities table.
type Entity struct {
	ID                     uuid.UUID       `json:"id"`
	OwnerID                string          `json:"owner_id"`
	EntitySchemaID         uuid.UUID       `json:"entity_schema_id"`
	ExternalID             string          `json:"external_id"`
	Name                   string          `json:"name"`
	Properties             json.RawMessage `json:"properties"`
	DetailsSandboxScriptID uuid.UUID       `json:"details_sandbox_script_id"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}
