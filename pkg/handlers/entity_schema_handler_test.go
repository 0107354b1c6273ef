package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shelfmark/shelfmark-engine/pkg/auth"
	"github.com/shelfmark/shelfmark-engine/pkg/services"
)

// mockEntitySchemaService returns canned values and records call arguments.
type mockEntitySchemaService struct {
	searchResult *services.SearchResultPage
	searchErr    error
	importResult *services.ImportResult
	importErr    error
	listings     []*services.SchemaListing
	listErr      error

	lastUserID string
	lastQuery  string
	lastPage   int
}

func (m *mockEntitySchemaService) Search(ctx context.Context, userID string, scriptID uuid.UUID, query string, page int) (*services.SearchResultPage, error) {
	m.lastUserID = userID
	m.lastQuery = query
	m.lastPage = page
	return m.searchResult, m.searchErr
}

func (m *mockEntitySchemaService) Import(ctx context.Context, userID string, scriptID uuid.UUID, identifier string) (*services.ImportResult, error) {
	m.lastUserID = userID
	return m.importResult, m.importErr
}

func (m *mockEntitySchemaService) List(ctx context.Context, userID string) ([]*services.SchemaListing, error) {
	m.lastUserID = userID
	return m.listings, m.listErr
}

func setupHandlerTest(svc services.EntitySchemaService) *http.ServeMux {
	mux := http.NewServeMux()
	handler := NewEntitySchemaHandler(svc, zap.NewNop())
	handler.RegisterRoutes(mux, auth.NewMiddleware(zap.NewNop()))
	return mux
}

func doRequest(mux *http.ServeMux, method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set(auth.UserIDHeader, userID)
	}

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, req)
	return recorder
}

func errorMessage(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body["error"]
}

func TestSearch_RequiresIdentity(t *testing.T) {
	mux := setupHandlerTest(&mockEntitySchemaService{})

	recorder := doRequest(mux, http.MethodPost, "/api/entity-schemas/search", "",
		`{"query": "dune", "search_script_id": "`+uuid.NewString()+`"}`)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	mux := setupHandlerTest(&mockEntitySchemaService{})

	recorder := doRequest(mux, http.MethodPost, "/api/entity-schemas/search", "user-1",
		`{"query": "   ", "search_script_id": "`+uuid.NewString()+`"}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "Search query is required", errorMessage(t, recorder))
}

func TestSearch_InvalidScriptIDRejected(t *testing.T) {
	mux := setupHandlerTest(&mockEntitySchemaService{})

	recorder := doRequest(mux, http.MethodPost, "/api/entity-schemas/search", "user-1",
		`{"query": "dune", "search_script_id": "not-a-uuid"}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "Invalid search_script_id", errorMessage(t, recorder))
}

func TestSearch_MalformedBodyRejected(t *testing.T) {
	mux := setupHandlerTest(&mockEntitySchemaService{})

	recorder := doRequest(mux, http.MethodPost, "/api/entity-schemas/search", "user-1", `{"query": `)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestSearch_PipelineErrorStatusIsForwarded(t *testing.T) {
	svc := &mockEntitySchemaService{
		searchErr: &services.PipelineError{
			StatusCode: http.StatusGatewayTimeout,
			Message:    "Search job timed out",
		},
	}
	mux := setupHandlerTest(svc)

	recorder := doRequest(mux, http.MethodPost, "/api/entity-schemas/search", "user-1",
		`{"query": "dune", "search_script_id": "`+uuid.NewString()+`"}`)

	assert.Equal(t, http.StatusGatewayTimeout, recorder.Code)
	assert.Equal(t, "Search job timed out", errorMessage(t, recorder))
}

func TestSearch_Success(t *testing.T) {
	svc := &mockEntitySchemaService{
		searchResult: &services.SearchResultPage{
			Items: []services.SearchResultItem{
				{Title: "Dune", Identifier: "OL893415W"},
			},
			Page:    3,
			Total:   42,
			HasMore: true,
		},
	}
	mux := setupHandlerTest(svc)

	recorder := doRequest(mux, http.MethodPost, "/api/entity-schemas/search", "user-1",
		`{"query": "dune", "page": 3, "search_script_id": "`+uuid.NewString()+`"}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "user-1", svc.lastUserID)
	assert.Equal(t, "dune", svc.lastQuery)
	assert.Equal(t, 3, svc.lastPage)

	var page services.SearchResultPage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	assert.Equal(t, 42, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Dune", page.Items[0].Title)
}

func TestSearch_PageDefaultsToOne(t *testing.T) {
	svc := &mockEntitySchemaService{searchResult: &services.SearchResultPage{}}
	mux := setupHandlerTest(svc)

	recorder := doRequest(mux, http.MethodPost, "/api/entity-schemas/search", "user-1",
		`{"query": "dune", "page": -5, "search_script_id": "`+uuid.NewString()+`"}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, svc.lastPage)
}

func TestImport_EmptyIdentifierRejected(t *testing.T) {
	mux := setupHandlerTest(&mockEntitySchemaService{})

	recorder := doRequest(mux, http.MethodPost, "/api/entity-schemas/import", "user-1",
		`{"identifier": "", "details_script_id": "`+uuid.NewString()+`"}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "Import identifier is required", errorMessage(t, recorder))
}

func TestImport_NotFoundIsForwarded(t *testing.T) {
	svc := &mockEntitySchemaService{
		importErr: &services.PipelineError{
			StatusCode: http.StatusNotFound,
			Message:    "Import script not found",
		},
	}
	mux := setupHandlerTest(svc)

	recorder := doRequest(mux, http.MethodPost, "/api/entity-schemas/import", "user-1",
		`{"identifier": "OL893415W", "details_script_id": "`+uuid.NewString()+`"}`)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "Import script not found", errorMessage(t, recorder))
}

func TestImport_Success(t *testing.T) {
	entityID := uuid.New()
	svc := &mockEntitySchemaService{
		importResult: &services.ImportResult{
			EntityID:   entityID,
			Created:    true,
			Name:       "Dune",
			ExternalID: "OL893415W",
		},
	}
	mux := setupHandlerTest(svc)

	recorder := doRequest(mux, http.MethodPost, "/api/entity-schemas/import", "user-1",
		`{"identifier": "OL893415W", "details_script_id": "`+uuid.NewString()+`"}`)

	require.Equal(t, http.StatusOK, recorder.Code)

	var result services.ImportResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, entityID, result.EntityID)
	assert.True(t, result.Created)
	assert.Equal(t, "Dune", result.Name)
}

func TestList_Success(t *testing.T) {
	svc := &mockEntitySchemaService{
		listings: []*services.SchemaListing{
			{ID: uuid.New(), Slug: "book", Name: "Book", ScriptPairs: []services.SchemaScriptPair{}},
		},
	}
	mux := setupHandlerTest(svc)

	recorder := doRequest(mux, http.MethodGet, "/api/entity-schemas", "user-1", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "user-1", svc.lastUserID)

	var response SchemaListResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Total)
	require.Len(t, response.Schemas, 1)
	assert.Equal(t, "book", response.Schemas[0].Slug)
}

func TestList_RequiresIdentity(t *testing.T) {
	mux := setupHandlerTest(&mockEntitySchemaService{})

	recorder := doRequest(mux, http.MethodGet, "/api/entity-schemas", "", "")

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
