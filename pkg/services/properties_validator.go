package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// propertiesValidatorCache compiles stored properties JSON-Schema documents
// into validators and caches them per schema id. The stored document can
// change (the seeder rewrites builtin schemas when the manifest changes), so
// cache entries are keyed by a content hash as well.
type propertiesValidatorCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*cachedValidator
}

type cachedValidator struct {
	hash   [sha256.Size]byte
	schema *jsonschema.Schema
}

func newPropertiesValidatorCache() *propertiesValidatorCache {
	return &propertiesValidatorCache{entries: make(map[uuid.UUID]*cachedValidator)}
}

// get returns the compiled validator for the schema document, compiling and
// caching it on first use. A document that fails to compile is a contract
// violation of the stored schema, reported as an error.
func (c *propertiesValidatorCache) get(schemaID uuid.UUID, document []byte) (*jsonschema.Schema, error) {
	hash := sha256.Sum256(document)

	c.mu.RLock()
	entry, ok := c.entries[schemaID]
	c.mu.RUnlock()
	if ok && entry.hash == hash {
		return entry.schema, nil
	}

	compiled, err := compilePropertiesSchema(document)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[schemaID] = &cachedValidator{hash: hash, schema: compiled}
	c.mu.Unlock()

	return compiled, nil
}

func compilePropertiesSchema(document []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to parse properties schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("properties.json", doc); err != nil {
		return nil, fmt.Errorf("failed to register properties schema: %w", err)
	}

	compiled, err := compiler.Compile("properties.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile properties schema: %w", err)
	}

	return compiled, nil
}

// validateProperties checks the raw properties document against the compiled
// schema and requires the result to be a plain, non-array JSON object.
func validateProperties(schema *jsonschema.Schema, properties json.RawMessage) (map[string]any, error) {
	var value any
	if err := json.Unmarshal(properties, &value); err != nil {
		return nil, fmt.Errorf("properties is not valid JSON: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("properties failed schema validation: %w", err)
	}

	object, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("properties is not a plain object")
	}

	return object, nil
}
