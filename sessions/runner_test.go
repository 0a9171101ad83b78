// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daognosis/govgate/events"
	"github.com/daognosis/govgate/llm"
	"github.com/daognosis/govgate/mcp"
	"github.com/daognosis/govgate/metrics"
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
	mu        sync.Mutex
	responses []string
	calls     int
}

func (s *stubModel) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
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

type memSink struct {
	mu     sync.Mutex
	events []events.Event
	closed bool
}

func (s *memSink) WriteEvent(event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *memSink) snapshot() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event{}, s.events...)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestManager(t *testing.T, model llm.LanguageModel) *Manager {
	t.Helper()
	log := testLogger()
	manager := NewManager(log, metrics.NewNoopMetrics(), events.NewEmitter(log), func(apiKey string) llm.LanguageModel {
		return model
	})
	t.Cleanup(manager.Close)
	return manager
}

func setupRegistry(t *testing.T, session *Session) {
	t.Helper()

	upstreams := map[string]mcp.Upstream{
		"dao-governance": &fakeUpstream{
			tools: []mcpgo.Tool{{Name: "list_proposals"}},
			text:  `{"proposals":[{"id":"p1","title":"Treasury Budget","status":"active"}]}`,
		},
		"community-forum": &fakeUpstream{
			tools: []mcpgo.Tool{{Name: "latest_topics"}},
			text:  `{"topics":[{"id":"t1","title":"Treasury Budget talk"}]}`,
		},
	}
	session.Registry.SetDialFunc(func(ctx context.Context, config mcp.ServerConfig) (mcp.Upstream, error) {
		upstream, ok := upstreams[config.Name]
		if !ok {
			return nil, errors.New("unknown server")
		}
		return upstream, nil
	})
	for name := range upstreams {
		status := session.Registry.Add(context.Background(), mcp.ServerConfig{
			Name:      name,
			BaseURL:   "http://" + name + ".test",
			Transport: mcp.TransportSSE,
		})
		require.Equal(t, mcp.StateReady, status.State)
	}
}

func TestQuerySynchronous(t *testing.T) {
	model := &stubModel{responses: []string{
		`{"relevant_proposal_ids": ["p1"], "relevant_discussion_ids": [], "explanation": "active proposals", "confidence": 0.8}`,
		`{"answer": "One active proposal: Treasury Budget.", "analysis": "The treasury budget proposal is active."}`,
	}}
	manager := newTestManager(t, model)
	session := manager.GetOrCreate("")
	setupRegistry(t, session)

	result := manager.Query(context.Background(), session, "active proposals", "test-key")

	assert.Equal(t, "One active proposal: Treasury Budget.", result.Message)
	require.Len(t, result.Proposals, 1)
	assert.Equal(t, "p1", result.Proposals[0].ID)
	assert.Equal(t, 0.8, result.Confidence)
	require.NotNil(t, result.Analysis)
	assert.NotNil(t, result.Discussions)
	assert.NotNil(t, result.CrossReferences)
}

func TestQueryFailsOpenWithoutModel(t *testing.T) {
	// A model that never returns JSON: filter and analyze both degrade.
	model := &stubModel{responses: []string{"no idea", "still no idea"}}
	manager := newTestManager(t, model)
	session := manager.GetOrCreate("")
	setupRegistry(t, session)

	result := manager.Query(context.Background(), session, "active proposals", "test-key")

	// Unfiltered data passes through.
	require.Len(t, result.Proposals, 1)
	assert.Equal(t, 0.8, result.Confidence)
	require.NotNil(t, result.Analysis)
	assert.Equal(t, "still no idea", *result.Analysis)
}

func TestStartQueryStreamsEvents(t *testing.T) {
	model := &stubModel{responses: []string{
		`{"relevant_proposal_ids": ["p1"], "relevant_discussion_ids": [], "explanation": "active", "confidence": 0.8}`,
		`{"answer": "Treasury Budget is active.", "analysis": null}`,
	}}
	manager := newTestManager(t, model)
	session := manager.GetOrCreate("")
	setupRegistry(t, session)

	runID := manager.StartQuery(session, "active proposals", "test-key")
	require.NotEmpty(t, runID)

	sink := &memSink{}
	manager.Emitter().Attach(runID, sink)

	var finished *events.Event
	require.Eventually(t, func() bool {
		for _, event := range sink.snapshot() {
			if event.Type == events.TypeRunFinished {
				finished = &event
				return true
			}
		}
		return false
	}, 10*time.Second, 20*time.Millisecond)

	result, ok := finished.Result.(QueryResult)
	require.True(t, ok)
	assert.NotEmpty(t, result.Proposals)
	assert.Equal(t, 0.8, result.Confidence)

	got := sink.snapshot()
	assert.Equal(t, events.TypeRunStarted, got[0].Type)

	// The streamed message keeps the start/content/end discipline.
	var order []events.Type
	for _, event := range got {
		switch event.Type {
		case events.TypeTextMessageStart, events.TypeTextMessageContent, events.TypeTextMessageEnd:
			order = append(order, event.Type)
		}
	}
	require.Len(t, order, 3)
	assert.Equal(t, []events.Type{
		events.TypeTextMessageStart,
		events.TypeTextMessageContent,
		events.TypeTextMessageEnd,
	}, order)
}

func TestCloseDetachesRunSinks(t *testing.T) {
	model := &stubModel{responses: []string{
		`{"relevant_proposal_ids": [], "relevant_discussion_ids": [], "explanation": "none", "confidence": 0.8}`,
		`{"answer": "Nothing relevant.", "analysis": null}`,
	}}
	manager := newTestManager(t, model)
	session := manager.GetOrCreate("")
	setupRegistry(t, session)

	runID := manager.StartQuery(session, "active proposals", "test-key")
	sink := &memSink{}
	manager.Emitter().Attach(runID, sink)

	require.Eventually(t, func() bool {
		for _, event := range sink.snapshot() {
			if event.Type == events.TypeRunFinished {
				return true
			}
		}
		return false
	}, 10*time.Second, 20*time.Millisecond)

	// Close tears down the run immediately, without the detach grace.
	manager.Close()
	assert.True(t, sink.isClosed())
}

func TestGetOrCreateSessionsAreIsolated(t *testing.T) {
	manager := newTestManager(t, &stubModel{})

	a := manager.GetOrCreate("a")
	b := manager.GetOrCreate("b")
	again := manager.GetOrCreate("a")

	assert.Same(t, a, again)
	assert.NotSame(t, a.Registry, b.Registry)
}

func TestGetOrCreateDefaultSession(t *testing.T) {
	manager := newTestManager(t, &stubModel{})
	assert.Same(t, manager.GetOrCreate(""), manager.GetOrCreate(DefaultSessionID))
}
