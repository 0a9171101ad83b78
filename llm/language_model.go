// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package llm defines the provider-agnostic abstraction for large language
// model completions used by the governance pipeline.
//
// Providers (Anthropic, OpenAI-compatible) implement LanguageModel. The
// pipeline only needs plain text completions: a streaming variant for
// user-facing output and a blocking variant for the structured filter and
// analyze steps. Provider-specific failure modes are normalized to the
// sentinel errors below so retry policy can live in one place.
package llm

import "github.com/pkg/errors"

// ErrOverloaded marks a transient "service overloaded" response from the
// upstream model. It is the only error class the pipeline retries.
var ErrOverloaded = errors.New("llm service overloaded")

type LanguageModel interface {
	ChatCompletion(request CompletionRequest, opts ...LanguageModelOption) (*TextStreamResult, error)
	ChatCompletionNoStream(request CompletionRequest, opts ...LanguageModelOption) (string, error)
}

type LanguageModelConfig struct {
	Model              string
	MaxGeneratedTokens int
	JSONOutput         bool
}

type LanguageModelOption func(*LanguageModelConfig)

func WithModel(model string) LanguageModelOption {
	return func(cfg *LanguageModelConfig) {
		cfg.Model = model
	}
}

func WithMaxGeneratedTokens(maxGeneratedTokens int) LanguageModelOption {
	return func(cfg *LanguageModelConfig) {
		cfg.MaxGeneratedTokens = maxGeneratedTokens
	}
}

// WithJSONOutput hints the provider that the completion must be a JSON
// object. Providers that support a native JSON response format enable it;
// others rely on the prompt alone.
func WithJSONOutput() LanguageModelOption {
	return func(cfg *LanguageModelConfig) {
		cfg.JSONOutput = true
	}
}

type PostRole int

const (
	PostRoleUser PostRole = iota
	PostRoleBot
	PostRoleSystem
)

// Post is one turn of the conversation sent to the model.
type Post struct {
	Role    PostRole
	Message string
}

type CompletionRequest struct {
	Posts []Post
}

// NewCompletionRequest builds the common system+user two-post request.
func NewCompletionRequest(system, user string) CompletionRequest {
	return CompletionRequest{
		Posts: []Post{
			{Role: PostRoleSystem, Message: system},
			{Role: PostRoleUser, Message: user},
		},
	}
}

// ExtractSystemMessage extracts the system message from the conversation.
func (r CompletionRequest) ExtractSystemMessage() string {
	for _, post := range r.Posts {
		if post.Role == PostRoleSystem {
			return post.Message
		}
	}
	return ""
}
