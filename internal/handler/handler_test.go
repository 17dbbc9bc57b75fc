package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titi-ai/titi/internal/mode"
	"github.com/titi-ai/titi/internal/model"
	"github.com/titi-ai/titi/internal/service"
	"github.com/titi-ai/titi/internal/store"
	"github.com/titi-ai/titi/pkg/logger"
)

type stubProcessor struct {
	got  *model.TitiRequest
	resp *model.TitiResponse
	err  error
}

func (p *stubProcessor) Process(ctx context.Context, req *model.TitiRequest) (*model.TitiResponse, error) {
	p.got = req
	return p.resp, p.err
}

type readiness bool

func (r readiness) Ready() bool       { return bool(r) }
func (r readiness) IsConnected() bool { return bool(r) }

func newRouter(t *testing.T, agent Processor) (http.Handler, *service.ConversationService) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	log := logger.NewNop()
	conversations := service.NewConversationService(st, nil, log)

	ch := NewConversationHandler(conversations, log)
	th := NewTitiHandler(agent, log)

	r := chi.NewRouter()
	r.Post("/titi", th.Process)
	r.Get("/conversations", ch.List)
	r.Post("/conversations/new", ch.Create)
	r.Get("/conversations/{id}", ch.Get)
	r.Delete("/conversations/{id}", ch.Delete)
	return r, conversations
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTitiSuccess(t *testing.T) {
	agent := &stubProcessor{resp: &model.TitiResponse{
		ConversationID: "c1", Thought: "prompt", Answer: "respuesta", Sources: "fuentes",
	}}
	h, _ := newRouter(t, agent)

	rec := do(t, h, http.MethodPost, "/titi", `{"selection":"texto","instruction":"mejora","mode":"legal"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{
		"conversation_id": "c1", "thought": "prompt", "answer": "respuesta", "sources": "fuentes",
	}, resp)
	assert.Equal(t, "legal", agent.got.Mode)
	assert.Equal(t, "texto", agent.got.Selection)
}

func TestTitiBadRequests(t *testing.T) {
	h, _ := newRouter(t, &stubProcessor{})

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/titi", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/titi", `{"mode":"medical"}`).Code)

	big := fmt.Sprintf(`{"selection":%q}`, strings.Repeat("a", 300_000))
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/titi", big).Code)
}

func TestTitiOversizedConversationID(t *testing.T) {
	agent := &stubProcessor{resp: &model.TitiResponse{ConversationID: "fresh", Answer: "ok"}}
	h, _ := newRouter(t, agent)

	body := fmt.Sprintf(`{"instruction":"x","conversation_id":%q}`, strings.Repeat("c", 200))
	rec := do(t, h, http.MethodPost, "/titi", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, agent.got.ConversationID)
}

func TestTitiGenerationFailure(t *testing.T) {
	agent := &stubProcessor{err: &service.PipelineError{
		Stage:          service.StageGenerated,
		ConversationID: "c9",
		Err:            fmt.Errorf("%w: %w", service.ErrGeneration, errors.New("model crashed")),
	}}
	h, _ := newRouter(t, agent)

	rec := do(t, h, http.MethodPost, "/titi", `{"instruction":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp model.TitiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "c9", resp.ConversationID)
	assert.True(t, strings.HasPrefix(resp.Answer, "Error interno: "))
	assert.Contains(t, resp.Answer, "model crashed")
	assert.Empty(t, resp.Sources)
	assert.Empty(t, resp.Thought)
	assert.NotEmpty(t, resp.Error)
}

func TestTitiUnknownModeFromAgent(t *testing.T) {
	h, _ := newRouter(t, &stubProcessor{err: fmt.Errorf("%w: %q", mode.ErrUnknownMode, "x")})
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/titi", `{}`).Code)
}

func TestConversationEndpoints(t *testing.T) {
	h, conversations := newRouter(t, &stubProcessor{})
	ctx := context.Background()

	rec := do(t, h, http.MethodPost, "/conversations/new", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var created model.NewConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ConversationID)

	_, err := conversations.AppendMessage(ctx, created.ConversationID, model.RoleUser, "Explica la fotosíntesis")
	require.NoError(t, err)

	t.Run("list", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/conversations", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var list []model.ConversationSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, created.ConversationID, list[0].ID)
		assert.Equal(t, "Explica la fotosíntesis...", list[0].Title)
	})

	t.Run("get", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/conversations/"+created.ConversationID, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var conv model.Conversation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
		require.Len(t, conv.Messages, 1)
		assert.Equal(t, "Explica la fotosíntesis", conv.Messages[0].Content)
	})

	t.Run("get malformed and unknown", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/conversations/nope", "").Code)
		rec := do(t, h, http.MethodGet, "/conversations/2b1f0c8e-1d1a-4c3e-9a57-0f4b5f1e2d3c", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"conversation not found"}`, rec.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(t, h, http.MethodDelete, "/conversations/"+created.ConversationID, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"deleted"}`, rec.Body.String())

		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/conversations/"+created.ConversationID, "").Code)
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/conversations/"+created.ConversationID, "").Code)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/conversations", "")
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(readiness(false), nil).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"loading"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(readiness(true), nil).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","agent":"Titi Loaded"}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	tests := []struct {
		name    string
		model   readiness
		journal ConnectionChecker
		status  int
	}{
		{"loading", false, nil, http.StatusServiceUnavailable},
		{"no journal", true, nil, http.StatusOK},
		{"journal down", true, readiness(false), http.StatusServiceUnavailable},
		{"all up", true, readiness(true), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.model, tt.journal).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
