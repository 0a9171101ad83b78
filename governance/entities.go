// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package governance normalizes heterogeneous MCP tool payloads into the
// canonical proposal and discussion records served to clients.
package governance

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	// StatusUnknown is the default proposal status when the upstream
	// payload does not carry one.
	StatusUnknown = "unknown"
	// DefaultExcerpt is the placeholder for discussions without body text.
	DefaultExcerpt = "No excerpt available"
	// DefaultTitle is the placeholder for records without a usable title.
	DefaultTitle = "Untitled"

	titleFromDescriptionLimit = 60
)

// Proposal is a normalized governance proposal.
type Proposal struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	VotesFor     int    `json:"votesFor"`
	VotesAgainst int    `json:"votesAgainst"`
	CreatedAt    string `json:"createdAt,omitempty"`
	Server       string `json:"server,omitempty"`
}

// Discussion is a normalized forum discussion.
type Discussion struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Excerpt    string `json:"excerpt"`
	ReplyCount int    `json:"replyCount"`
	CreatedAt  string `json:"createdAt,omitempty"`
	Server     string `json:"server,omitempty"`
}

// CrossReference links a proposal to a discussion that appears to be about
// it.
type CrossReference struct {
	ProposalID   string  `json:"proposalId"`
	DiscussionID string  `json:"discussionId"`
	Confidence   float64 `json:"confidence"`
}

// Opaque preserves an upstream payload that could not be classified. The
// raw text is kept for downstream display rather than being discarded.
type Opaque struct {
	ToolName string `json:"toolName"`
	Server   string `json:"server,omitempty"`
	Text     string `json:"text"`
	Raw      string `json:"raw"`
}

// fallbackID derives a placeholder identifier when the upstream record has
// none.
func fallbackID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixMilli())
}

// titleOrDefault falls back to a truncated description, then the literal
// default.
func titleOrDefault(title, description string) string {
	if title != "" {
		return title
	}
	if description != "" {
		if len(description) > titleFromDescriptionLimit {
			cut := titleFromDescriptionLimit
			for cut > 0 && !utf8.RuneStart(description[cut]) {
				cut--
			}
			return description[:cut]
		}
		return description
	}
	return DefaultTitle
}
