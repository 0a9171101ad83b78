// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package governance

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawPayload is the text output of one successful tool invocation before
// classification.
type RawPayload struct {
	ToolName string
	Server   string
	Text     string
}

// Kind tags the outcome of payload classification.
type Kind int

const (
	KindProposals Kind = iota
	KindDiscussions
	KindOpaque
)

// Classification is the tagged result of classifying one raw payload.
type Classification struct {
	Kind        Kind
	Proposals   []Proposal
	Discussions []Discussion
	Opaque      *Opaque
}

// ExtractResult aggregates the classified output of a whole execute phase.
type ExtractResult struct {
	Proposals       []Proposal       `json:"proposals"`
	Discussions     []Discussion     `json:"discussions"`
	CrossReferences []CrossReference `json:"crossReferences"`
	Opaque          []Opaque         `json:"opaque,omitempty"`
}

// Extract classifies and normalizes every payload, then cross-references
// proposals against discussions.
func Extract(payloads []RawPayload) ExtractResult {
	result := ExtractResult{
		Proposals:       []Proposal{},
		Discussions:     []Discussion{},
		CrossReferences: []CrossReference{},
	}

	for _, payload := range payloads {
		classification := Classify(payload)
		switch classification.Kind {
		case KindProposals:
			result.Proposals = append(result.Proposals, classification.Proposals...)
		case KindDiscussions:
			result.Discussions = append(result.Discussions, classification.Discussions...)
		case KindOpaque:
			result.Opaque = append(result.Opaque, *classification.Opaque)
		}
	}

	result.CrossReferences = BuildCrossReferences(result.Proposals, result.Discussions)
	return result
}

// Classify applies the extraction strategies to one payload in fixed order:
//
//  1. unwrap a content-block envelope and parse the embedded JSON
//  2. proposal strategy: tool name contains "proposal", or the object has a
//     proposals/proposal field
//  3. discussion strategy: tool name contains "topic" or "post", or the
//     object has a topics/posts/topic field
//  4. otherwise the payload is preserved as an opaque blob
//
// A JSON parse failure short-circuits to the opaque strategy; the raw text
// is never discarded.
func Classify(payload RawPayload) Classification {
	value, ok := parseLoose(payload.Text)
	if !ok {
		return opaque(payload)
	}

	if embedded, ok := envelopeText(value); ok {
		inner, parsed := parseLoose(embedded)
		if !parsed {
			return opaqueText(payload, embedded)
		}
		value = inner
	}

	toolName := strings.ToLower(payload.ToolName)

	if items, ok := proposalItems(toolName, value); ok {
		proposals := make([]Proposal, 0, len(items))
		for _, item := range items {
			proposals = append(proposals, normalizeProposal(item, payload.Server))
		}
		return Classification{Kind: KindProposals, Proposals: proposals}
	}

	if items, ok := discussionItems(toolName, value); ok {
		discussions := make([]Discussion, 0, len(items))
		for _, item := range items {
			discussions = append(discussions, normalizeDiscussion(item, payload.Server))
		}
		return Classification{Kind: KindDiscussions, Discussions: discussions}
	}

	return opaque(payload)
}

func opaque(payload RawPayload) Classification {
	return opaqueText(payload, payload.Text)
}

// opaqueText preserves both the embedded text and the raw payload when
// classification gives up partway through unwrapping.
func opaqueText(payload RawPayload, text string) Classification {
	return Classification{
		Kind: KindOpaque,
		Opaque: &Opaque{
			ToolName: payload.ToolName,
			Server:   payload.Server,
			Text:     text,
			Raw:      payload.Text,
		},
	}
}

// envelopeText detects a generic content-block envelope and returns the
// joined text of its text-typed parts. Some transports hand the envelope
// through verbatim instead of unwrapping it.
func envelopeText(value any) (string, bool) {
	obj, ok := value.(map[string]any)
	if !ok {
		return "", false
	}
	blocks, ok := obj["content"].([]any)
	if !ok {
		return "", false
	}

	var parts []string
	for _, block := range blocks {
		part, ok := block.(map[string]any)
		if !ok {
			continue
		}
		if kind, _ := part["type"].(string); kind != "text" {
			continue
		}
		if text, ok := part["text"].(string); ok {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

// parseLoose parses the payload text as JSON.
func parseLoose(text string) (any, bool) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, false
	}
	switch value.(type) {
	case map[string]any, []any:
		return value, true
	default:
		return nil, false
	}
}

// proposalItems returns the list of loose proposal objects if the payload
// matches the proposal strategy.
func proposalItems(toolName string, value any) ([]map[string]any, bool) {
	byName := strings.Contains(toolName, "proposal")

	switch v := value.(type) {
	case []any:
		if byName {
			return looseObjects(v), true
		}
	case map[string]any:
		if field, ok := v["proposals"]; ok {
			if list, ok := field.([]any); ok {
				return looseObjects(list), true
			}
		}
		if field, ok := v["proposal"]; ok {
			if obj, ok := field.(map[string]any); ok {
				return []map[string]any{obj}, true
			}
		}
		if byName {
			return []map[string]any{v}, true
		}
	}
	return nil, false
}

// discussionItems returns the list of loose discussion objects if the
// payload matches the discussion strategy.
func discussionItems(toolName string, value any) ([]map[string]any, bool) {
	byName := strings.Contains(toolName, "topic") || strings.Contains(toolName, "post") || strings.Contains(toolName, "discussion")

	switch v := value.(type) {
	case []any:
		if byName {
			return looseObjects(v), true
		}
	case map[string]any:
		for _, key := range []string{"topics", "posts"} {
			if field, ok := v[key]; ok {
				if list, ok := field.([]any); ok {
					return looseObjects(list), true
				}
			}
		}
		if field, ok := v["topic"]; ok {
			if obj, ok := field.(map[string]any); ok {
				return []map[string]any{obj}, true
			}
		}
		if byName {
			return []map[string]any{v}, true
		}
	}
	return nil, false
}

func looseObjects(list []any) []map[string]any {
	objects := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			objects = append(objects, obj)
		}
	}
	return objects
}

func normalizeProposal(obj map[string]any, server string) Proposal {
	proposal := Proposal{
		ID:           stringField(obj, "id", "proposal_id", "proposalId"),
		Title:        stringField(obj, "title", "name"),
		Description:  stringField(obj, "description", "summary", "body"),
		Status:       stringField(obj, "status", "state"),
		VotesFor:     intField(obj, "votes_for", "votesFor", "yes_votes", "ayes"),
		VotesAgainst: intField(obj, "votes_against", "votesAgainst", "no_votes", "nays"),
		CreatedAt:    stringField(obj, "created_at", "createdAt", "submission_time"),
		Server:       server,
	}

	if proposal.ID == "" {
		proposal.ID = fallbackID("proposal")
	}
	proposal.Title = titleOrDefault(proposal.Title, proposal.Description)
	if proposal.Status == "" {
		proposal.Status = StatusUnknown
	}
	return proposal
}

func normalizeDiscussion(obj map[string]any, server string) Discussion {
	discussion := Discussion{
		ID:         stringField(obj, "id", "topic_id", "topicId"),
		Title:      stringField(obj, "title", "fancy_title", "name"),
		Excerpt:    stringField(obj, "excerpt", "cooked", "body", "blurb"),
		ReplyCount: intField(obj, "reply_count", "replyCount", "posts_count"),
		CreatedAt:  stringField(obj, "created_at", "createdAt"),
		Server:     server,
	}

	if discussion.ID == "" {
		discussion.ID = fallbackID("discussion")
	}
	discussion.Title = titleOrDefault(discussion.Title, discussion.Excerpt)
	if discussion.Excerpt == "" {
		discussion.Excerpt = DefaultExcerpt
	}
	return discussion
}

// stringField returns the first present key rendered as a string. Numeric
// ids are common upstream and are formatted without an exponent.
func stringField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := obj[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return formatNumber(v)
		case bool:
			if v {
				return "true"
			}
			return "false"
		}
	}
	return ""
}

func intField(obj map[string]any, keys ...string) int {
	for _, key := range keys {
		value, ok := obj[key]
		if !ok {
			continue
		}
		if v, ok := value.(float64); ok {
			return int(v)
		}
	}
	return 0
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
