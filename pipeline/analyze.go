// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package pipeline

import (
	"context"
	"encoding/json"

	"github.com/daognosis/govgate/llm"
)

const analyzeSystemPrompt = `You are a governance analyst. You receive a user query and the JSON data already filtered as relevant to it.

- If the query asks a pointed question, read the answer directly off the data (e.g. a vote count, a status, a specific field) and state it plainly.
- Otherwise produce a short general summary of the filtered data.

Respond with only a JSON object: {"answer": "...", "analysis": "..."}. Use null for a field you cannot produce.`

// AnalyzeResult is the outcome of the analyze step. Both fields are nil
// when the step failed open; consumers must render null gracefully.
type AnalyzeResult struct {
	Answer   *string `json:"answer"`
	Analysis *string `json:"analysis"`
}

type analyzeResponse struct {
	Answer   *string `json:"answer"`
	Analysis *string `json:"analysis"`
}

// Analyze produces a direct answer and an analysis from the filtered data.
// Any failure returns nil fields. A non-JSON model response is preserved
// verbatim as the analysis rather than discarded.
func (p *Pipeline) Analyze(ctx context.Context, query string, filtered FilterResult) AnalyzeResult {
	prompt, err := analyzeUserPrompt(query, filtered)
	if err != nil {
		p.log.WithError(err).Error("Failed to build analyze prompt")
		return AnalyzeResult{}
	}

	text, err := p.callWithRetry("analyze", func() (string, error) {
		return p.model.ChatCompletionNoStream(
			llm.NewCompletionRequest(analyzeSystemPrompt, prompt),
			llm.WithJSONOutput(),
		)
	})
	if err != nil {
		p.log.WithError(err).Warn("Analyze step failed, returning null answer")
		return AnalyzeResult{}
	}

	var response analyzeResponse
	if err := DecodeLooseJSON(text, &response); err != nil {
		p.log.WithError(err).Debug("Analyze response was not JSON, keeping raw text")
		raw := text
		return AnalyzeResult{Analysis: &raw}
	}

	return AnalyzeResult{
		Answer:   response.Answer,
		Analysis: response.Analysis,
	}
}

func analyzeUserPrompt(query string, filtered FilterResult) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"query":           query,
		"proposals":       filtered.Proposals,
		"discussions":     filtered.Discussions,
		"crossReferences": filtered.CrossReferences,
		"explanation":     filtered.Explanation,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
