// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daognosis/govgate/mcp"
)

// toolCallTimeout bounds one upstream tool invocation.
const toolCallTimeout = 60 * time.Second

// ToolInvocationResult is the outcome of one planned call. A failed call is
// recorded here rather than aborting its siblings; no retry happens at this
// layer.
type ToolInvocationResult struct {
	Plan    ToolInvocationPlan `json:"plan"`
	Success bool               `json:"success"`
	Error   string             `json:"error,omitempty"`
	Text    string             `json:"text,omitempty"`
}

// ExecuteAll runs every planned invocation concurrently against its
// resolved connection. The result slice preserves plan order. Calls
// targeting the same upstream serialize on that connection's own
// request/response discipline.
func (o *Orchestrator) ExecuteAll(ctx context.Context, registry *mcp.Registry, plans []ToolInvocationPlan) []ToolInvocationResult {
	results := make([]ToolInvocationResult, len(plans))

	var g errgroup.Group
	for i, plan := range plans {
		g.Go(func() error {
			results[i] = o.executeOne(ctx, registry, plan)
			return nil
		})
	}
	// Invocation failures are captured per result, never as group errors.
	_ = g.Wait()

	return results
}

func (o *Orchestrator) executeOne(ctx context.Context, registry *mcp.Registry, plan ToolInvocationPlan) ToolInvocationResult {
	result := ToolInvocationResult{Plan: plan}

	if o.hooks.OnToolStart != nil {
		o.hooks.OnToolStart(plan)
	}
	defer func() {
		o.metrics.ObserveToolCall(plan.Server, result.Success)
		if o.hooks.OnToolResult != nil {
			o.hooks.OnToolResult(result)
		}
	}()

	conn, err := registry.Resolve(plan.Server)
	if err != nil {
		result.Error = err.Error()
		o.log.WithField("server", plan.Server).WithError(err).Warn("Tool invocation skipped, server unavailable")
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
	defer cancel()

	raw, err := conn.CallTool(callCtx, plan.Tool, plan.Args)
	if err != nil {
		result.Error = err.Error()
		o.log.WithField("tool", plan.Tool).WithError(err).Warn("Tool invocation failed")
		return result
	}
	if raw != nil && raw.IsError {
		result.Error = mcp.TextFromResult(raw)
		return result
	}

	result.Success = true
	result.Text = mcp.TextFromResult(raw)
	return result
}
