package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shelfmark/shelfmark-engine/pkg/repositories"
	"github.com/shelfmark/shelfmark-engine/pkg/sandbox"
)

const searchPageSize = 20

// ImportResult reports the outcome of one import: the canonical entity row
// the validated payload landed on, and whether that row was created by this
// request.
type ImportResult struct {
	EntityID   uuid.UUID `json:"entityId"`
	Created    bool      `json:"created"`
	Name       string    `json:"name"`
	ExternalID string    `json:"externalId"`
}

// SchemaScriptPair is one search/details script pairing of a schema.
type SchemaScriptPair struct {
	SearchScriptID    uuid.UUID `json:"searchScriptId"`
	SearchScriptName  string    `json:"searchScriptName"`
	DetailsScriptID   uuid.UUID `json:"detailsScriptId"`
	DetailsScriptName string    `json:"detailsScriptName"`
}

// SchemaListing is one entity schema visible to a user, with the script pairs
// that can search and import entities of that schema.
type SchemaListing struct {
	ID          uuid.UUID          `json:"id"`
	Slug        string             `json:"slug"`
	Name        string             `json:"name"`
	ScriptPairs []SchemaScriptPair `json:"scriptPairs"`
}

// EntitySchemaService runs the search and import pipelines and lists the
// schema catalog. All failures it returns are *PipelineError values carrying
// the HTTP status the failure maps to.
type EntitySchemaService interface {
	// Search executes the search script against the query and returns the
	// validated, paginated results.
	Search(ctx context.Context, userID string, scriptID uuid.UUID, query string, page int) (*SearchResultPage, error)
	// Import executes the details script against the identifier, validates
	// the returned entity payload against the schema's properties schema, and
	// upserts the entity for the user.
	Import(ctx context.Context, userID string, scriptID uuid.UUID, identifier string) (*ImportResult, error)
	// List returns every schema visible to the user with its script pairs.
	List(ctx context.Context, userID string) ([]*SchemaListing, error)
}

type entitySchemaService struct {
	schemaRepo repositories.EntitySchemaRepository
	scriptRepo repositories.SandboxScriptRepository
	entityRepo repositories.EntityRepository
	configVals ConfigValueService
	sandbox    sandbox.Service
	validators *propertiesValidatorCache
	logger     *zap.Logger
}

// NewEntitySchemaService creates a new EntitySchemaService.
func NewEntitySchemaService(
	schemaRepo repositories.EntitySchemaRepository,
	scriptRepo repositories.SandboxScriptRepository,
	entityRepo repositories.EntityRepository,
	configVals ConfigValueService,
	sandboxService sandbox.Service,
	logger *zap.Logger,
) EntitySchemaService {
	return &entitySchemaService{
		schemaRepo: schemaRepo,
		scriptRepo: scriptRepo,
		entityRepo: entityRepo,
		configVals: configVals,
		sandbox:    sandboxService,
		validators: newPropertiesValidatorCache(),
		logger:     logger.Named("entity-schemas"),
	}
}

var _ EntitySchemaService = (*entitySchemaService)(nil)

// searchScriptContext is the input handed to a search script's run export.
type searchScriptContext struct {
	Query      string `json:"query"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	SchemaSlug string `json:"schemaSlug"`
}

// importScriptContext is the input handed to a details script's run export.
type importScriptContext struct {
	Identifier string `json:"identifier"`
	SchemaSlug string `json:"schemaSlug"`
}

func (s *entitySchemaService) Search(ctx context.Context, userID string, scriptID uuid.UUID, query string, page int) (*SearchResultPage, error) {
	resolved, err := s.scriptRepo.GetSearchScript(ctx, scriptID, userID)
	if err != nil {
		s.logger.Error("Failed to resolve search script", zap.String("script_id", scriptID.String()), zap.Error(err))
		return nil, internalError("Search script lookup failed")
	}
	if resolved == nil {
		return nil, notFoundError("Search script not found")
	}

	if page < 1 {
		page = 1
	}

	result, err := s.runScript(ctx, resolved.Script.Code, userID, searchScriptContext{
		Query:      query,
		Page:       page,
		PageSize:   searchPageSize,
		SchemaSlug: resolved.SchemaSlug,
	})
	if err != nil {
		s.logger.Error("Search sandbox run failed", zap.String("script_id", scriptID.String()), zap.Error(err))
		return nil, internalError("Search script execution failed")
	}

	if !result.Success {
		if isTimeout(result.Error) {
			s.logger.Warn("Search script timed out", zap.String("script_id", scriptID.String()))
			return nil, timeoutError("Search job timed out")
		}
		s.logger.Warn("Search script failed",
			zap.String("script_id", scriptID.String()),
			zap.String("error", result.Error))
		return nil, internalError(scriptFailureMessage("Search", result))
	}

	payload, err := parseSearchPayload(result.Value)
	if err != nil {
		s.logger.Warn("Search script returned invalid payload",
			zap.String("script_id", scriptID.String()),
			zap.Error(err))
		return nil, internalError("Search script returned invalid payload")
	}

	items := make([]SearchResultItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, SearchResultItem{
			Title:       *item.Title,
			Identifier:  *item.Identifier,
			Image:       item.Image,
			PublishYear: item.PublishYear,
		})
	}

	return &SearchResultPage{
		Items:   items,
		Page:    page,
		Total:   *payload.Details.TotalItems,
		HasMore: payload.Details.NextPage != nil,
	}, nil
}

func (s *entitySchemaService) Import(ctx context.Context, userID string, scriptID uuid.UUID, identifier string) (*ImportResult, error) {
	resolved, err := s.scriptRepo.GetDetailsScript(ctx, scriptID, userID)
	if err != nil {
		s.logger.Error("Failed to resolve details script", zap.String("script_id", scriptID.String()), zap.Error(err))
		return nil, internalError("Import script lookup failed")
	}
	if resolved == nil {
		return nil, notFoundError("Import script not found")
	}

	result, err := s.runScript(ctx, resolved.Script.Code, userID, importScriptContext{
		Identifier: identifier,
		SchemaSlug: resolved.SchemaSlug,
	})
	if err != nil {
		s.logger.Error("Import sandbox run failed", zap.String("script_id", scriptID.String()), zap.Error(err))
		return nil, internalError("Import script execution failed")
	}

	if !result.Success {
		if isTimeout(result.Error) {
			s.logger.Warn("Import script timed out", zap.String("script_id", scriptID.String()))
			return nil, timeoutError("Import job timed out")
		}
		s.logger.Warn("Import script failed",
			zap.String("script_id", scriptID.String()),
			zap.String("error", result.Error))
		return nil, internalError(scriptFailureMessage("Import", result))
	}

	envelope, err := parseImportEnvelope(result.Value)
	if err != nil {
		s.logger.Warn("Import script returned invalid payload",
			zap.String("script_id", scriptID.String()),
			zap.Error(err))
		return nil, internalError("Import script returned invalid payload")
	}

	// The properties schema is validated late, at import time, against
	// whatever the schema row holds now. A schema document that no longer
	// compiles fails the import the same way an invalid payload does.
	validator, err := s.validators.get(resolved.SchemaID, resolved.PropertiesSchema)
	if err != nil {
		s.logger.Error("Properties schema is not compilable",
			zap.String("schema_id", resolved.SchemaID.String()),
			zap.Error(err))
		return nil, internalError("Import script returned invalid payload")
	}

	if _, err := validateProperties(validator, envelope.Properties); err != nil {
		s.logger.Warn("Imported properties failed validation",
			zap.String("script_id", scriptID.String()),
			zap.Error(err))
		return nil, internalError("Import script returned invalid payload")
	}

	upsert, err := s.entityRepo.UpsertImported(ctx, &repositories.UpsertImportedEntityInput{
		OwnerID:                userID,
		EntitySchemaID:         resolved.SchemaID,
		Name:                   *envelope.Name,
		ExternalID:             *envelope.ExternalID,
		Properties:             envelope.Properties,
		DetailsSandboxScriptID: scriptID,
	})
	if err != nil {
		s.logger.Error("Failed to persist imported entity",
			zap.String("script_id", scriptID.String()),
			zap.String("external_id", *envelope.ExternalID),
			zap.Error(err))
		return nil, internalError(fmt.Sprintf("Import persistence failed: %s", err.Error()))
	}

	s.logger.Info("Imported entity",
		zap.String("entity_id", upsert.EntityID.String()),
		zap.String("schema_slug", resolved.SchemaSlug),
		zap.Bool("created", upsert.Created))

	return &ImportResult{
		EntityID:   upsert.EntityID,
		Created:    upsert.Created,
		Name:       *envelope.Name,
		ExternalID: *envelope.ExternalID,
	}, nil
}

func (s *entitySchemaService) List(ctx context.Context, userID string) ([]*SchemaListing, error) {
	rows, err := s.schemaRepo.ListVisibleWithScriptPairs(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list entity schemas", zap.Error(err))
		return nil, internalError("Failed to list entity schemas")
	}

	listings := make([]*SchemaListing, 0)
	index := make(map[uuid.UUID]*SchemaListing)
	for _, row := range rows {
		listing, ok := index[row.SchemaID]
		if !ok {
			listing = &SchemaListing{
				ID:          row.SchemaID,
				Slug:        row.SchemaSlug,
				Name:        row.SchemaName,
				ScriptPairs: []SchemaScriptPair{},
			}
			index[row.SchemaID] = listing
			listings = append(listings, listing)
		}

		if row.SearchScriptID == nil || row.DetailsScriptID == nil {
			continue
		}
		listing.ScriptPairs = append(listing.ScriptPairs, SchemaScriptPair{
			SearchScriptID:    *row.SearchScriptID,
			SearchScriptName:  stringOrEmpty(row.SearchScriptName),
			DetailsScriptID:   *row.DetailsScriptID,
			DetailsScriptName: stringOrEmpty(row.DetailsScriptName),
		})
	}

	return listings, nil
}

// runScript executes the script with the host config callbacks bound to the
// requesting user.
func (s *entitySchemaService) runScript(ctx context.Context, code, userID string, scriptContext any) (*sandbox.Result, error) {
	return s.sandbox.Run(ctx, &sandbox.RunInput{
		Code:         code,
		UserID:       userID,
		APIFunctions: s.hostAPIFunctions(userID),
		Context:      scriptContext,
	})
}

// hostAPIFunctions enumerates the capabilities scripts may call. Config reads
// are the only ones; anything else a script needs must come in through its
// run context.
func (s *entitySchemaService) hostAPIFunctions(userID string) map[string]sandbox.APIFunction {
	return map[string]sandbox.APIFunction{
		"get_app_config_value": func(ctx context.Context, args json.RawMessage) (any, error) {
			key, err := configKeyArg(args)
			if err != nil {
				return nil, err
			}
			value, found, err := s.configVals.GetAppValue(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("failed to read app config value %q: %w", key, err)
			}
			if !found {
				return nil, nil
			}
			return value, nil
		},
		"get_user_config_value": func(ctx context.Context, args json.RawMessage) (any, error) {
			key, err := configKeyArg(args)
			if err != nil {
				return nil, err
			}
			value, found, err := s.configVals.GetUserValue(ctx, userID, key)
			if err != nil {
				return nil, fmt.Errorf("failed to read user config value %q: %w", key, err)
			}
			if !found {
				return nil, nil
			}
			return value, nil
		},
	}
}

func configKeyArg(args json.RawMessage) (string, error) {
	var parsed struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if parsed.Key == "" {
		return "", fmt.Errorf("missing required argument: key")
	}
	return parsed.Key, nil
}

// isTimeout classifies a sandbox failure by the documented "timed out"
// substring contract of the sandbox package.
func isTimeout(errText string) bool {
	return strings.Contains(strings.ToLower(errText), "timed out")
}

// scriptFailureMessage surfaces the script's own error and captured logs, the
// raw material a script author needs to debug a failing run.
func scriptFailureMessage(label string, result *sandbox.Result) string {
	message := fmt.Sprintf("%s script execution failed: %s", label, result.Error)
	if logs := strings.TrimSpace(result.Logs); logs != "" {
		message += "\n" + logs
	}
	return message
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
