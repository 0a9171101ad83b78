// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package orchestrator

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/daognosis/govgate/governance"
	"github.com/daognosis/govgate/mcp"
	"github.com/daognosis/govgate/metrics"
)

// Stage is one phase of a query run.
type Stage string

const (
	StagePlanning   Stage = "PLANNING"
	StageExecuting  Stage = "EXECUTING"
	StageExtracting Stage = "EXTRACTING"
)

// Hooks observe a query run. All hooks are optional.
type Hooks struct {
	OnStage      func(stage Stage)
	OnToolStart  func(plan ToolInvocationPlan)
	OnToolResult func(result ToolInvocationResult)
}

// Orchestrator runs the plan/execute/extract phases for one query.
type Orchestrator struct {
	log     *logrus.Logger
	metrics metrics.Metrics
	hooks   Hooks
}

// New creates an orchestrator.
func New(log *logrus.Logger, metricsService metrics.Metrics, hooks Hooks) *Orchestrator {
	return &Orchestrator{
		log:     log,
		metrics: metricsService,
		hooks:   hooks,
	}
}

// RunResult is the gathered output of the tool phases, before LLM
// filtering.
type RunResult struct {
	Plans       []ToolInvocationPlan
	Invocations []ToolInvocationResult
	Data        governance.ExtractResult
}

// Run executes the three tool phases. Partial failure is expected: the
// extract result holds whatever the successful invocations produced.
func (o *Orchestrator) Run(ctx context.Context, query string, registry *mcp.Registry) RunResult {
	o.stage(StagePlanning)
	snapshot := registry.Describe(ctx)
	plans := PlanCalls(query, snapshot)
	o.log.WithFields(logrus.Fields{"query": query, "plans": len(plans)}).Debug("Planned tool calls")

	o.stage(StageExecuting)
	invocations := o.ExecuteAll(ctx, registry, plans)

	o.stage(StageExtracting)
	payloads := make([]governance.RawPayload, 0, len(invocations))
	for _, invocation := range invocations {
		if !invocation.Success {
			continue
		}
		payloads = append(payloads, governance.RawPayload{
			ToolName: invocation.Plan.Tool,
			Server:   invocation.Plan.Server,
			Text:     invocation.Text,
		})
	}
	data := governance.Extract(payloads)

	return RunResult{
		Plans:       plans,
		Invocations: invocations,
		Data:        data,
	}
}

func (o *Orchestrator) stage(stage Stage) {
	if o.hooks.OnStage != nil {
		o.hooks.OnStage(stage)
	}
}
