// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daognosis/govgate/config"
	"github.com/daognosis/govgate/events"
	"github.com/daognosis/govgate/llm"
	"github.com/daognosis/govgate/mcp"
	"github.com/daognosis/govgate/metrics"
	"github.com/daognosis/govgate/sessions"
)

type fakeUpstream struct {
	tools []mcpgo.Tool
	text  string
}

func (f *fakeUpstream) ListTools(ctx context.Context) ([]mcpgo.Tool, error) {
	return f.tools, nil
}

func (f *fakeUpstream) ListPrompts(ctx context.Context) ([]mcpgo.Prompt, error) {
	return nil, nil
}

func (f *fakeUpstream) ListResources(ctx context.Context) ([]mcpgo.Resource, error) {
	return nil, nil
}

func (f *fakeUpstream) CallTool(ctx context.Context, toolName string, args map[string]any) (*mcpgo.CallToolResult, error) {
	return &mcpgo.CallToolResult{
		Content: []mcpgo.Content{mcpgo.NewTextContent(f.text)},
	}, nil
}

func (f *fakeUpstream) Close() error {
	return nil
}

type stubModel struct {
	responses []string
	calls     int
}

func (s *stubModel) next() string {
	i := s.calls
	s.calls++
	if i < len(s.responses) {
		return s.responses[i]
	}
	return ""
}

func (s *stubModel) ChatCompletion(request llm.CompletionRequest, opts ...llm.LanguageModelOption) (*llm.TextStreamResult, error) {
	return llm.NewStreamFromString(s.next()), nil
}

func (s *stubModel) ChatCompletionNoStream(request llm.CompletionRequest, opts ...llm.LanguageModelOption) (string, error) {
	return s.next(), nil
}

func newTestAPI(t *testing.T, model llm.LanguageModel) (*gin.Engine, *sessions.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	manager := sessions.NewManager(log, metrics.NewNoopMetrics(), events.NewEmitter(log), func(apiKey string) llm.LanguageModel {
		return model
	})
	t.Cleanup(manager.Close)

	a := New(log, metrics.NewNoopMetrics(), config.NewContainer(config.Default()), manager)
	return a.Router(), manager
}

// primeSession wires a fake upstream into the named session's registry.
func primeSession(t *testing.T, manager *sessions.Manager, sessionID string, upstream mcp.Upstream, dialErr error) {
	t.Helper()
	session := manager.GetOrCreate(sessionID)
	session.Registry.SetDialFunc(func(ctx context.Context, cfg mcp.ServerConfig) (mcp.Upstream, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return upstream, nil
	})
}

func doJSON(router *gin.Engine, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHealth(t *testing.T) {
	router, _ := newTestAPI(t, &stubModel{})

	recorder := doJSON(router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestAPI(t, &stubModel{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Headers", "X-Custom-Header")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))

	allowed := recorder.Header().Get("Access-Control-Allow-Headers")
	assert.Contains(t, allowed, "Content-Type")
	assert.Contains(t, allowed, "Authorization")
	assert.Contains(t, allowed, "X-API-Key")
	assert.Contains(t, allowed, "Mcp-Session-Id")
	assert.Contains(t, allowed, "Mcp-Protocol-Version")
	assert.Contains(t, allowed, "X-Custom-Header")
}

func TestAddAndDescribeMCP(t *testing.T) {
	router, manager := newTestAPI(t, &stubModel{})
	primeSession(t, manager, "s1", &fakeUpstream{
		tools: []mcpgo.Tool{{Name: "list_proposals"}},
	}, nil)

	recorder := doJSON(router, http.MethodPost, "/api/v1/add-mcp", "s1", gin.H{
		"name": "dao-governance",
		"url":  "http://dao.test/mcp",
		"type": "direct",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(router, http.MethodGet, "/api/v1/mcp-state", "s1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var snapshot mcp.Snapshot
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &snapshot))
	require.Contains(t, snapshot.Servers, "dao-governance")
	assert.Equal(t, mcp.StateReady, snapshot.Servers["dao-governance"].State)
	require.Len(t, snapshot.Tools, 1)
	assert.NotNil(t, snapshot.Prompts)
	assert.NotNil(t, snapshot.Resources)
}

func TestAddMCPHandshakeFailureStillListed(t *testing.T) {
	router, manager := newTestAPI(t, &stubModel{})
	primeSession(t, manager, "s1", nil, errors.New("connection refused"))

	recorder := doJSON(router, http.MethodPost, "/api/v1/add-mcp", "s1", gin.H{
		"name": "broken",
		"url":  "http://broken.test/mcp",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(router, http.MethodGet, "/api/v1/mcp-state", "s1", nil)
	var snapshot mcp.Snapshot
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &snapshot))
	require.Contains(t, snapshot.Servers, "broken")
	assert.Equal(t, mcp.StateError, snapshot.Servers["broken"].State)
}

func TestAddMCPValidation(t *testing.T) {
	router, _ := newTestAPI(t, &stubModel{})
	recorder := doJSON(router, http.MethodPost, "/api/v1/add-mcp", "", gin.H{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRemoveMCPNotFound(t *testing.T) {
	router, _ := newTestAPI(t, &stubModel{})
	recorder := doJSON(router, http.MethodPost, "/api/v1/remove-mcp", "", gin.H{"serverId": "ghost"})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCallToolUnknownServer(t *testing.T) {
	router, _ := newTestAPI(t, &stubModel{})
	recorder := doJSON(router, http.MethodPost, "/api/v1/call-tool", "", gin.H{
		"toolName": "list_proposals",
		"serverId": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestQueryRequiresAPIKey(t *testing.T) {
	router, _ := newTestAPI(t, &stubModel{})
	recorder := doJSON(router, http.MethodPost, "/api/v1/query", "", gin.H{"query": "active proposals"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestQuerySynchronousEndToEnd(t *testing.T) {
	model := &stubModel{responses: []string{
		`{"relevant_proposal_ids": ["p1"], "relevant_discussion_ids": [], "explanation": "active", "confidence": 0.8}`,
		`{"answer": "Treasury Budget is active.", "analysis": "One active proposal."}`,
	}}
	router, manager := newTestAPI(t, model)
	primeSession(t, manager, "s1", &fakeUpstream{
		tools: []mcpgo.Tool{{Name: "list_proposals"}},
		text:  `{"proposals":[{"id":"p1","title":"Treasury Budget","status":"active"}]}`,
	}, nil)

	recorder := doJSON(router, http.MethodPost, "/api/v1/add-mcp", "s1", gin.H{
		"name": "dao-governance",
		"url":  "http://dao.test/mcp",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(router, http.MethodPost, "/api/v1/query", "s1", gin.H{
		"query":     "active proposals",
		"llmApiKey": "test-key",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var result sessions.QueryResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, "Treasury Budget is active.", result.Message)
	require.Len(t, result.Proposals, 1)
	assert.Equal(t, 0.8, result.Confidence)
}

func TestQueryWithEventsReturnsSessionID(t *testing.T) {
	router, _ := newTestAPI(t, &stubModel{})
	recorder := doJSON(router, http.MethodPost, "/api/v1/query-with-events", "", gin.H{
		"query":     "active proposals",
		"llmApiKey": "test-key",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.NotEmpty(t, body["sessionId"])
}

func TestEventsRequiresSessionParam(t *testing.T) {
	router, _ := newTestAPI(t, &stubModel{})
	recorder := doJSON(router, http.MethodGet, "/api/v1/events", "", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
