package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-chain/internal/chain"
	"github.com/capitalize-ai/chat-chain/internal/knowledge"
	"github.com/capitalize-ai/chat-chain/internal/llm"
	"github.com/capitalize-ai/chat-chain/internal/middleware"
	"github.com/capitalize-ai/chat-chain/internal/model"
	"github.com/capitalize-ai/chat-chain/internal/service"
)

const secret = "handler-secret"

type echoLLM struct{}

func (echoLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if req.Temperature > 0 {
		return &llm.CompletionResponse{Content: "hi"}, nil
	}
	return &llm.CompletionResponse{Content: "Hello back"}, nil
}

func (e echoLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, cb llm.StreamCallback) (*llm.CompletionResponse, error) {
	resp, _ := e.Complete(ctx, req)
	for i, tok := range strings.Fields(resp.Content) {
		if err := cb(tok, i); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (echoLLM) Name() string     { return "echo" }
func (echoLLM) Models() []string { return nil }

type fakeKnowledge struct {
	collection string
	docs       []knowledge.Document
	tags       map[string]string
}

func (f *fakeKnowledge) AddParts(ctx context.Context, collection string, docs []knowledge.Document) ([]string, error) {
	f.collection = collection
	f.docs = docs
	return []string{"p1"}, nil
}

func (f *fakeKnowledge) SetTagPrompt(ctx context.Context, tag, prompt string) error {
	if f.tags == nil {
		f.tags = map[string]string{}
	}
	f.tags[tag] = prompt
	return nil
}

// brokenStreamLLM classifies like echoLLM but fails every answer stream.
type brokenStreamLLM struct{ echoLLM }

func (brokenStreamLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, cb llm.StreamCallback) (*llm.CompletionResponse, error) {
	return nil, errors.New("dial tcp 10.0.0.5:443: upstream-secret-host refused")
}

func newTestRouter(t *testing.T, checks map[string]Checker) http.Handler {
	return newTestRouterWith(t, checks, nil)
}

func newTestRouterWith(t *testing.T, checks map[string]Checker, kw KnowledgeWriter) http.Handler {
	return newRouterWithLLM(t, echoLLM{}, checks, kw)
}

func newRouterWithLLM(t *testing.T, client llm.Client, checks map[string]Checker, kw KnowledgeWriter) http.Handler {
	t.Helper()

	g := chain.NewGraph("greet")
	require.NoError(t, g.Add(&chain.Mode{
		Name:    "greet",
		Prompt:  "Reply hi. {message}",
		Options: []chain.ModeOption{chain.Option(chain.Equals("hi"), chain.Transaction(greet))},
	}))

	convs := service.NewConversationService(g, time.Minute, nil)
	msgs := service.NewMessageService(convs, chain.NewDispatcher(client, nil, chain.DispatcherConfig{}, nil),
		client, nil, nil, service.MessageConfig{}, nil)

	return NewRouter(RouterConfig{
		Conversations:  convs,
		Messages:       msgs,
		Knowledge:      kw,
		Checks:         checks,
		JWTSecret:      secret,
		KnowledgeScope: "knowledge:write",
	})
}

func greet(ctx context.Context, c *chain.Conversation, message, response string) ([]chain.Message, error) {
	return []chain.Message{chain.SystemMessage("Greet the user.")}, nil
}

func bearer(t *testing.T, tenant string, scopes ...string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		TenantID:         tenant,
		Scopes:           scopes,
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, h http.Handler, method, path, tenant, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if tenant != "" {
		req.Header.Set("Authorization", bearer(t, tenant))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestConversationRoutes(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/conversations", "acme", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv model.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conv))
	assert.Equal(t, "greet", conv.Mode)

	rec = do(t, h, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "acme", `{"content":"hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var sent model.SendMessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sent))
	assert.Equal(t, "Hello back", sent.Message.Content)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", "acme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var log model.ListMessagesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&log))
	assert.Len(t, log.Messages, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/"+conv.ID, "other", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/not-a-uuid", "acme", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "acme", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/conversations/"+conv.ID, "acme", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/"+conv.ID, "acme", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStreamRoute(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/conversations", "acme", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv model.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conv))

	rec = do(t, h, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/stream", "acme", `{"content":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: token\ndata: {\"token\":\"Hello\",\"index\":0}\n\n")
	assert.Contains(t, body, "event: token\ndata: {\"token\":\"back\",\"index\":1}\n\n")
	assert.Contains(t, body, "event: message_complete\n")
	assert.Contains(t, body, "event: done\n")
}

func TestStreamErrorHidesUpstreamDetail(t *testing.T) {
	h := newRouterWithLLM(t, brokenStreamLLM{}, nil, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/conversations", "acme", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv model.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conv))

	rec = do(t, h, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/stream", "acme", `{"content":"hello"}`)
	body := rec.Body.String()
	assert.Contains(t, body, "event: error\ndata: {\"code\":\"stream_error\",\"message\":\"failed to generate response\"}\n\n")
	assert.NotContains(t, body, "upstream-secret-host")
	assert.NotContains(t, body, "10.0.0.5")
	assert.NotContains(t, body, "event: done")
}

func TestReady(t *testing.T) {
	h := newTestRouter(t, map[string]Checker{
		"nats": func(ctx context.Context) error { return errors.New("not connected") },
	})

	rec := do(t, h, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "nats: not connected")

	rec = do(t, newTestRouter(t, nil), http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestKnowledgeRoutes(t *testing.T) {
	kw := &fakeKnowledge{}
	h := newTestRouterWith(t, nil, kw)

	send := func(method, path, body string, scopes ...string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t, "acme", scopes...))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	body := `{"parts":[{"content":"Algebra comes from al-jabr.","tags":["math"]}]}`

	rec := send(http.MethodPost, "/api/v1/knowledge/docs/parts", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(http.MethodPost, "/api/v1/knowledge/docs/parts", body, "knowledge:write")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"collection":"docs","ids":["p1"]}`, rec.Body.String())
	assert.Equal(t, "docs", kw.collection)
	assert.Equal(t, []knowledge.Document{{Content: "Algebra comes from al-jabr.", Tags: []string{"math"}}}, kw.docs)

	rec = send(http.MethodPost, "/api/v1/knowledge/docs/parts", `{"parts":[]}`, "knowledge:write")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodPut, "/api/v1/knowledge/tags/faq", `{"prompt":"Have a nice day"}`, "knowledge:write")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, map[string]string{"faq": "Have a nice day"}, kw.tags)

	rec = do(t, newTestRouter(t, nil), http.MethodPut, "/api/v1/knowledge/tags/faq", "acme", `{"prompt":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
