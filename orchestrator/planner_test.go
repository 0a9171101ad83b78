// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daognosis/govgate/mcp"
)

func testSnapshot() mcp.Snapshot {
	return mcp.Snapshot{
		Servers: map[string]mcp.ServerStatus{
			"dao-governance":  {State: mcp.StateReady},
			"community-forum": {State: mcp.StateReady},
		},
		Tools: []mcp.ToolDescriptor{
			{Name: "list_proposals", Server: "dao-governance"},
			{Name: "search_proposals", Server: "dao-governance"},
			{Name: "latest_topics", Server: "community-forum"},
			{Name: "render_chart", Server: "community-forum"},
		},
	}
}

func plansByRole(plans []ToolInvocationPlan) map[Role][]ToolInvocationPlan {
	byRole := map[Role][]ToolInvocationPlan{}
	for _, plan := range plans {
		byRole[plan.Role] = append(byRole[plan.Role], plan)
	}
	return byRole
}

func TestPlanCallsProposalQuery(t *testing.T) {
	plans := PlanCalls("show me active proposals", testSnapshot())
	byRole := plansByRole(plans)

	require.NotEmpty(t, byRole[RoleProposals])
	for _, plan := range byRole[RoleProposals] {
		assert.Equal(t, "dao-governance", plan.Server)
	}
	assert.Empty(t, byRole[RoleDiscussions])
}

func TestPlanCallsDiscussionQuery(t *testing.T) {
	plans := PlanCalls("what is the forum sentiment", testSnapshot())
	byRole := plansByRole(plans)

	require.NotEmpty(t, byRole[RoleDiscussions])
	for _, plan := range byRole[RoleDiscussions] {
		assert.Equal(t, "community-forum", plan.Server)
		assert.Equal(t, "latest_topics", plan.Tool)
	}
	assert.Empty(t, byRole[RoleProposals])
}

func TestPlanCallsAmbiguousQueryOverIncludes(t *testing.T) {
	plans := PlanCalls("what happened this week", testSnapshot())
	byRole := plansByRole(plans)

	assert.NotEmpty(t, byRole[RoleProposals])
	assert.NotEmpty(t, byRole[RoleDiscussions])
}

func TestPlanCallsNoMatchingServer(t *testing.T) {
	snapshot := mcp.Snapshot{
		Servers: map[string]mcp.ServerStatus{
			"weather-service": {State: mcp.StateReady},
		},
		Tools: []mcp.ToolDescriptor{
			{Name: "get_forecast", Server: "weather-service"},
		},
	}

	assert.Empty(t, PlanCalls("active proposals", snapshot))
}

func TestPlanCallsSkipsUnrelatedTools(t *testing.T) {
	plans := PlanCalls("forum discussion", testSnapshot())
	for _, plan := range plans {
		assert.NotEqual(t, "render_chart", plan.Tool)
	}
}

func TestPlanCallsArgs(t *testing.T) {
	plans := PlanCalls("search active proposals", testSnapshot())

	var searchPlan *ToolInvocationPlan
	for i := range plans {
		if plans[i].Tool == "search_proposals" {
			searchPlan = &plans[i]
		}
	}
	require.NotNil(t, searchPlan)
	assert.Equal(t, "search active proposals", searchPlan.Args["query"])
	assert.Equal(t, "active", searchPlan.Args["status"])
}
