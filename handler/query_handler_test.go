package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/northbuild/north-be/service"
	"github.com/northbuild/north-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAI struct{}

func (stubAI) Chat(ctx context.Context, prompt string, messages []types.Message) (string, error) {
	return "synthesized answer", nil
}

func (stubAI) ChatStream(ctx context.Context, prompt string, messages []types.Message, streamHandler types.StreamHandler) error {
	streamHandler("synthesized answer")
	return nil
}

func (stubAI) ChatStructured(ctx context.Context, prompt string, input string, out any) error {
	if d, ok := out.(*types.RoutingDecision); ok {
		d.Agents = []string{types.AgentKnowledgeBase}
	}
	return nil
}

func (stubAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

type stubAgent struct{}

func (stubAgent) Name() string { return types.AgentKnowledgeBase }

func (stubAgent) Answer(ctx context.Context, query string, history []types.Turn) (*types.AgentResult, error) {
	return &types.AgentResult{
		Agent:     types.AgentKnowledgeBase,
		Answer:    "the roof was redone in June",
		Citations: []types.Document{{ID: "doc-1"}},
	}, nil
}

func newTestQueryHandler() *QueryHandler {
	orch := service.NewOrchestratorService(
		stubAI{},
		[]service.Agent{stubAgent{}},
		service.NewContextService(4),
		nil,
		time.Second,
	)
	return NewQueryHandler(orch)
}

func TestHandleQuery(t *testing.T) {
	h := newTestQueryHandler()

	body, _ := json.Marshal(types.QueryRequest{Query: "when was the roof redone"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleQuery().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp types.DataResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "success", resp.Status)

	payload, _ := json.Marshal(resp.Data)
	var result types.QueryResult
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.Equal(t, "the roof was redone in June", result.Answer)
	assert.Len(t, result.Citations, 1)
}

func TestHandleQueryEmpty(t *testing.T) {
	h := newTestQueryHandler()

	body, _ := json.Marshal(types.QueryRequest{Query: "   "})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleQuery().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueryBadBody(t *testing.T) {
	h := newTestQueryHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	h.HandleQuery().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueryMethodNotAllowed(t *testing.T) {
	h := newTestQueryHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/query", nil)
	rec := httptest.NewRecorder()
	h.HandleQuery().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleClearContext(t *testing.T) {
	h := newTestQueryHandler()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/context", nil)
	rec := httptest.NewRecorder()
	h.HandleClearContext().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
