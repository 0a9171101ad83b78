// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/daognosis/govgate/events"
	"github.com/daognosis/govgate/governance"
	"github.com/daognosis/govgate/orchestrator"
	"github.com/daognosis/govgate/pipeline"
)

// backgroundRunTimeout bounds one query-with-events pipeline run.
const backgroundRunTimeout = 5 * time.Minute

// QueryResult is the terminal payload of one query, returned directly by
// the synchronous endpoint and carried by RUN_FINISHED on the stream.
type QueryResult struct {
	Message         string                      `json:"message"`
	Proposals       []governance.Proposal       `json:"proposals"`
	Discussions     []governance.Discussion     `json:"discussions"`
	CrossReferences []governance.CrossReference `json:"crossReferences"`
	Confidence      float64                     `json:"confidence"`
	Explanation     string                      `json:"explanation"`
	Analysis        *string                     `json:"analysis"`
}

// Query runs the full pipeline synchronously with no event stream.
func (m *Manager) Query(ctx context.Context, session *Session, query, apiKey string) QueryResult {
	session.touch()
	return m.runPipeline(ctx, session, query, apiKey, "")
}

// StartQuery launches a background pipeline run and returns the run's
// session id for the caller to open an event stream against. Events
// emitted before the stream attaches are dropped after a bounded wait.
func (m *Manager) StartQuery(session *Session, query, apiKey string) string {
	session.touch()
	runID := uuid.NewString()
	m.registerRun(runID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundRunTimeout)
		defer cancel()
		defer m.finishRun(runID)
		defer func() {
			if r := recover(); r != nil {
				m.log.WithField("run_id", runID).Errorf("Query run panicked: %v", r)
				m.emitter.Emit(runID, events.RunError(fmt.Sprintf("internal error: %v", r)))
			}
		}()

		m.emitter.WaitForSink(ctx, runID)
		m.runPipeline(ctx, session, query, apiKey, runID)
	}()

	return runID
}

// runPipeline drives plan/execute/extract, then filter and analyze. With a
// runID it narrates the run on the event stream; a terminal RUN_FINISHED
// or RUN_ERROR always closes the narration.
func (m *Manager) runPipeline(ctx context.Context, session *Session, query, apiKey, runID string) QueryResult {
	log := m.log.WithFields(logrus.Fields{"session_id": session.ID, "run_id": runID})

	emit := func(event events.Event) {
		if runID != "" {
			m.emitter.Emit(runID, event)
		}
	}

	emit(events.RunStarted())

	orch := orchestrator.New(m.log, m.metrics, orchestrator.Hooks{
		OnStage: func(stage orchestrator.Stage) {
			emit(events.Custom("stage", string(stage)))
		},
		OnToolStart: func(plan orchestrator.ToolInvocationPlan) {
			emit(events.Custom("tool_call_start", plan))
		},
		OnToolResult: func(result orchestrator.ToolInvocationResult) {
			emit(events.Custom("tool_call_result", result))
		},
	})
	gathered := orch.Run(ctx, query, session.Registry)

	model := m.newModel(apiKey)
	pipe := pipeline.New(m.log, m.metrics, model)

	emit(events.Custom("stage", "FILTERING"))
	filtered := pipe.Filter(ctx, query, gathered.Data)

	emit(events.Custom("stage", "ANALYZING"))
	analysis := pipe.Analyze(ctx, query, filtered)

	result := composeResult(filtered, analysis)
	log.WithFields(logrus.Fields{
		"proposals":   len(result.Proposals),
		"discussions": len(result.Discussions),
	}).Info("Query pipeline finished")

	if runID != "" {
		writer := m.emitter.NewMessageWriter(runID)
		writer.WriteDelta(result.Message)
		writer.Close()
		emit(events.RunFinished(result))
		emit(events.Custom("stage", "DONE"))
	}
	return result
}

func composeResult(filtered pipeline.FilterResult, analysis pipeline.AnalyzeResult) QueryResult {
	message := fallbackMessage(filtered)
	if analysis.Answer != nil && *analysis.Answer != "" {
		message = *analysis.Answer
	} else if analysis.Analysis != nil && *analysis.Analysis != "" {
		message = *analysis.Analysis
	}

	result := QueryResult{
		Message:         message,
		Proposals:       filtered.Proposals,
		Discussions:     filtered.Discussions,
		CrossReferences: filtered.CrossReferences,
		Confidence:      filtered.Confidence,
		Explanation:     filtered.Explanation,
		Analysis:        analysis.Analysis,
	}
	if result.Proposals == nil {
		result.Proposals = []governance.Proposal{}
	}
	if result.Discussions == nil {
		result.Discussions = []governance.Discussion{}
	}
	if result.CrossReferences == nil {
		result.CrossReferences = []governance.CrossReference{}
	}
	return result
}

func fallbackMessage(filtered pipeline.FilterResult) string {
	return fmt.Sprintf("Found %d proposals and %d discussions relevant to your query.",
		len(filtered.Proposals), len(filtered.Discussions))
}
