// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package governance

import "strings"

// CrossReferenceConfidence is the fixed score assigned to every match.
// Matching is a naive containment check, not fuzzy scoring.
const CrossReferenceConfidence = 0.8

// BuildCrossReferences links every proposal whose title appears verbatim
// (case-insensitively) inside a discussion's title or excerpt. O(P×D) over
// the normalized sets.
func BuildCrossReferences(proposals []Proposal, discussions []Discussion) []CrossReference {
	refs := []CrossReference{}
	for _, proposal := range proposals {
		title := strings.ToLower(proposal.Title)
		if title == "" || title == strings.ToLower(DefaultTitle) {
			continue
		}
		for _, discussion := range discussions {
			haystack := strings.ToLower(discussion.Title + " " + discussion.Excerpt)
			if strings.Contains(haystack, title) {
				refs = append(refs, CrossReference{
					ProposalID:   proposal.ID,
					DiscussionID: discussion.ID,
					Confidence:   CrossReferenceConfidence,
				})
			}
		}
	}
	return refs
}
