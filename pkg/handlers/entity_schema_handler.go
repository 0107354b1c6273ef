package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shelfmark/shelfmark-engine/pkg/auth"
	"github.com/shelfmark/shelfmark-engine/pkg/services"
)

// SearchRequest for POST /api/entity-schemas/search
type SearchRequest struct {
	Query          string `json:"query"`
	Page           int    `json:"page"`
	SearchScriptID string `json:"search_script_id"`
}

// ImportRequest for POST /api/entity-schemas/import
type ImportRequest struct {
	Identifier      string `json:"identifier"`
	DetailsScriptID string `json:"details_script_id"`
}

// SchemaListResponse for GET /api/entity-schemas
type SchemaListResponse struct {
	Schemas []*services.SchemaListing `json:"schemas"`
	Total   int                       `json:"total"`
}

// EntitySchemaHandler handles entity schema catalog and pipeline requests.
type EntitySchemaHandler struct {
	schemaService services.EntitySchemaService
	logger        *zap.Logger
}

// NewEntitySchemaHandler creates a new entity schema handler.
func NewEntitySchemaHandler(schemaService services.EntitySchemaService, logger *zap.Logger) *EntitySchemaHandler {
	return &EntitySchemaHandler{
		schemaService: schemaService,
		logger:        logger,
	}
}

// RegisterRoutes registers the entity schema handler's routes on the given mux.
func (h *EntitySchemaHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/entity-schemas", authMiddleware.RequireUser(h.List))
	mux.HandleFunc("POST /api/entity-schemas/search", authMiddleware.RequireUser(h.Search))
	mux.HandleFunc("POST /api/entity-schemas/import", authMiddleware.RequireUser(h.Import))
}

// List handles GET /api/entity-schemas
func (h *EntitySchemaHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	schemas, err := h.schemaService.List(r.Context(), userID)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	response := SchemaListResponse{
		Schemas: schemas,
		Total:   len(schemas),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Search handles POST /api/entity-schemas/search
func (h *EntitySchemaHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "Search query is required")
		return
	}

	scriptID, err := uuid.Parse(req.SearchScriptID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid search_script_id")
		return
	}

	page := req.Page
	if page < 1 {
		page = 1
	}

	results, err := h.schemaService.Search(r.Context(), userID, scriptID, query, page)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, results); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Import handles POST /api/entity-schemas/import
func (h *EntitySchemaHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		h.writeError(w, http.StatusBadRequest, "Import identifier is required")
		return
	}

	scriptID, err := uuid.Parse(req.DetailsScriptID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid details_script_id")
		return
	}

	result, err := h.schemaService.Import(r.Context(), userID, scriptID, identifier)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writePipelineError maps service failures to their HTTP status. Anything
// that is not a *services.PipelineError is an unclassified bug and becomes a
// plain 500.
func (h *EntitySchemaHandler) writePipelineError(w http.ResponseWriter, err error) {
	var pipelineErr *services.PipelineError
	if errors.As(err, &pipelineErr) {
		h.writeError(w, pipelineErr.StatusCode, pipelineErr.Message)
		return
	}

	h.logger.Error("Unclassified pipeline error", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (h *EntitySchemaHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	if err := ErrorResponse(w, statusCode, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
