// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package orchestrator turns a free-text governance query into a set of
// upstream tool invocations and normalizes what comes back. It runs in
// three phases per query: plan, execute, extract.
package orchestrator

import (
	"strings"

	"github.com/daognosis/govgate/mcp"
)

// Role names the function a server or tool plays for a query.
type Role string

const (
	RoleProposals   Role = "proposals"
	RoleDiscussions Role = "discussions"
)

// ToolInvocationPlan is one planned upstream call.
type ToolInvocationPlan struct {
	Server string         `json:"server"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
	Role   Role           `json:"role"`
}

// Server-role vocabularies. Classification is by name substring and is
// deliberately naive; false positives are tolerated.
var (
	proposalServerHints   = []string{"stake", "gov", "proposal", "bitte", "dao"}
	discussionServerHints = []string{"discourse", "forum", "discussion", "community"}

	proposalQueryHints   = []string{"proposal", "vote", "voting", "treasury", "validator", "budget", "grant", "quorum"}
	discussionQueryHints = []string{"discussion", "forum", "topic", "post", "comment", "sentiment", "thread"}
)

// PlanCalls classifies the query against a fixed keyword vocabulary and
// plans tool calls on the servers matching each wanted role. Ambiguity
// favors over-inclusion: a query matching neither vocabulary plans calls
// for both roles rather than none.
func PlanCalls(query string, snapshot mcp.Snapshot) []ToolInvocationPlan {
	q := strings.ToLower(query)

	proposalHit := containsAny(q, proposalQueryHints)
	discussionHit := containsAny(q, discussionQueryHints)

	wantProposals := proposalHit || !discussionHit
	wantDiscussions := discussionHit || !proposalHit

	plans := []ToolInvocationPlan{}
	if wantProposals {
		plans = append(plans, plansForRole(q, snapshot, RoleProposals, proposalServerHints, []string{"proposal"})...)
	}
	if wantDiscussions {
		plans = append(plans, plansForRole(q, snapshot, RoleDiscussions, discussionServerHints, []string{"topic", "post", "discussion"})...)
	}
	return plans
}

// plansForRole plans calls on every server whose name marks it as the
// role's provider, using that server's tools whose names match the role.
// If no server matches the role, no calls are planned for it.
func plansForRole(query string, snapshot mcp.Snapshot, role Role, serverHints, toolHints []string) []ToolInvocationPlan {
	plans := []ToolInvocationPlan{}
	for serverName := range snapshot.Servers {
		if !containsAny(strings.ToLower(serverName), serverHints) {
			continue
		}
		for _, tool := range snapshot.Tools {
			if tool.Server != serverName {
				continue
			}
			toolName := strings.ToLower(tool.Name)
			if !containsAny(toolName, toolHints) && !strings.Contains(toolName, "search") && !strings.Contains(toolName, "list") {
				continue
			}
			plans = append(plans, ToolInvocationPlan{
				Server: serverName,
				Tool:   tool.Name,
				Args:   argsForQuery(query, toolName),
				Role:   role,
			})
		}
	}
	return plans
}

func argsForQuery(query, toolName string) map[string]any {
	args := map[string]any{}
	if strings.Contains(toolName, "search") {
		args["query"] = query
	}
	if strings.Contains(query, "active") {
		args["status"] = "active"
	}
	return args
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
