// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package pipeline

import (
	"context"
	"encoding/json"

	"github.com/daognosis/govgate/governance"
	"github.com/daognosis/govgate/llm"
)

// DefaultConfidence is reported when the model does not supply a usable
// confidence value, and on every fail-open path.
const DefaultConfidence = 0.8

const filterSystemPrompt = `You are a governance data filter. You receive a user query and JSON lists of governance proposals and forum discussions. Select the items relevant to the query.

Rules:
- If the query names explicit item IDs (e.g. "proposal 2"), return exactly those IDs. Do not expand to similar items.
- If the query is broad or asks for the latest activity, return multiple relevant items.
- Otherwise filter by topic and status relevance.

Respond with only a JSON object of this shape:
{"relevant_proposal_ids": [...], "relevant_discussion_ids": [...], "explanation": "...", "confidence": 0.8}`

// filterResponse is the wire shape the filter step asks the model for.
type filterResponse struct {
	RelevantProposalIDs   IDList  `json:"relevant_proposal_ids"`
	RelevantDiscussionIDs IDList  `json:"relevant_discussion_ids"`
	Explanation           string  `json:"explanation"`
	Confidence            float64 `json:"confidence"`
}

// FilterResult is the outcome of the filter step. Filtered is false when
// the step failed open and the full data set passed through untouched.
type FilterResult struct {
	Proposals       []governance.Proposal
	Discussions     []governance.Discussion
	CrossReferences []governance.CrossReference
	Explanation     string
	Confidence      float64
	Filtered        bool
}

// Filter asks the model which proposals and discussions matter for the
// query. Any failure returns the unfiltered data with default confidence.
func (p *Pipeline) Filter(ctx context.Context, query string, data governance.ExtractResult) FilterResult {
	failOpen := FilterResult{
		Proposals:       data.Proposals,
		Discussions:     data.Discussions,
		CrossReferences: data.CrossReferences,
		Explanation:     "Returning all gathered data.",
		Confidence:      DefaultConfidence,
	}

	if len(data.Proposals) == 0 && len(data.Discussions) == 0 {
		return failOpen
	}

	prompt, err := filterUserPrompt(query, data)
	if err != nil {
		p.log.WithError(err).Error("Failed to build filter prompt")
		return failOpen
	}

	text, err := p.callWithRetry("filter", func() (string, error) {
		return p.model.ChatCompletionNoStream(
			llm.NewCompletionRequest(filterSystemPrompt, prompt),
			llm.WithJSONOutput(),
		)
	})
	if err != nil {
		p.log.WithError(err).Warn("Filter step failed, passing through unfiltered data")
		return failOpen
	}

	var response filterResponse
	if err := DecodeLooseJSON(text, &response); err != nil {
		p.log.WithError(err).Warn("Filter response was not JSON, passing through unfiltered data")
		return failOpen
	}

	result := FilterResult{
		Proposals:   selectProposals(data.Proposals, response.RelevantProposalIDs),
		Discussions: selectDiscussions(data.Discussions, response.RelevantDiscussionIDs),
		Explanation: response.Explanation,
		Confidence:  response.Confidence,
		Filtered:    true,
	}
	result.CrossReferences = prunedCrossReferences(data.CrossReferences, result.Proposals, result.Discussions)
	if result.Confidence <= 0 || result.Confidence > 1 {
		result.Confidence = DefaultConfidence
	}
	if result.Explanation == "" {
		result.Explanation = "Filtered by relevance to the query."
	}
	return result
}

func filterUserPrompt(query string, data governance.ExtractResult) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"query":       query,
		"proposals":   data.Proposals,
		"discussions": data.Discussions,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func selectProposals(proposals []governance.Proposal, ids IDList) []governance.Proposal {
	wanted := idSet(ids)
	selected := make([]governance.Proposal, 0, len(ids))
	for _, proposal := range proposals {
		if wanted[proposal.ID] {
			selected = append(selected, proposal)
		}
	}
	return selected
}

func selectDiscussions(discussions []governance.Discussion, ids IDList) []governance.Discussion {
	wanted := idSet(ids)
	selected := make([]governance.Discussion, 0, len(ids))
	for _, discussion := range discussions {
		if wanted[discussion.ID] {
			selected = append(selected, discussion)
		}
	}
	return selected
}

func idSet(ids IDList) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// prunedCrossReferences keeps only edges whose both endpoints survived the
// filter.
func prunedCrossReferences(
	refs []governance.CrossReference,
	proposals []governance.Proposal,
	discussions []governance.Discussion,
) []governance.CrossReference {
	proposalIDs := make(map[string]bool, len(proposals))
	for _, p := range proposals {
		proposalIDs[p.ID] = true
	}
	discussionIDs := make(map[string]bool, len(discussions))
	for _, d := range discussions {
		discussionIDs[d.ID] = true
	}

	kept := make([]governance.CrossReference, 0, len(refs))
	for _, ref := range refs {
		if proposalIDs[ref.ProposalID] && discussionIDs[ref.DiscussionID] {
			kept = append(kept, ref)
		}
	}
	return kept
}
