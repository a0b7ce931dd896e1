package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptsignal-chat/internal/api"
	"cryptsignal-chat/internal/repository"
	"cryptsignal-chat/internal/service"
	"cryptsignal-chat/pkg/response"
)

type fixedAsker string

func (a fixedAsker) Ask(context.Context, api.GenerateRequest) string { return string(a) }

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	store := repository.NewMemoryStore(clockwork.NewFakeClock())
	svc := service.NewConversationService(store, fixedAsker("Hi there!"), nil)

	r := gin.New()
	NewConversationHandler(svc).RegisterRoutes(r.Group("/api"))
	return r
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestConversationRoutes_Flow(t *testing.T) {
	r := newRouter()

	w, env := do(t, r, http.MethodPost, "/api/conversations", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var conv struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &conv))
	assert.Equal(t, "New Chat", conv.Title)

	w, env = do(t, r, http.MethodPost, "/api/conversations/1/messages", `{"content":"hello","userId":"3"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var ex struct {
		UserMessage struct{ Content string } `json:"userMessage"`
		AIMessage   struct {
			Role    string
			Content string
		} `json:"aiMessage"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ex))
	assert.Equal(t, "hello", ex.UserMessage.Content)
	assert.Equal(t, "assistant", ex.AIMessage.Role)
	assert.Equal(t, "Hi there!", ex.AIMessage.Content)

	w, env = do(t, r, http.MethodGet, "/api/conversations/1/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	assert.Len(t, msgs, 2)

	w, _ = do(t, r, http.MethodDelete, "/api/conversations/1/messages", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodDelete, "/api/conversations/1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, r, http.MethodGet, "/api/conversations/1/messages", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeConversationNotFound, env.Code)
}

func TestConversationRoutes_Validation(t *testing.T) {
	r := newRouter()
	do(t, r, http.MethodPost, "/api/conversations", `{"title":"Signals"}`)

	w, env := do(t, r, http.MethodPost, "/api/conversations/1/messages", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeBadRequest, env.Code)

	w, _ = do(t, r, http.MethodPost, "/api/conversations/1/messages", `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/conversations/abc/messages", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, r, http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "Signals")
}

func TestGenerate(t *testing.T) {
	r := newRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"query":"hi","userId":"1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"Hi there!"}`, w.Body.String())

	w, _ = do(t, r, http.MethodPost, "/api/generate", `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
