// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package anthropic

import (
	"context"
	"net/http"

	anthropicSDK "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	"github.com/daognosis/govgate/llm"
	"github.com/daognosis/govgate/metrics"
)

const DefaultMaxTokens = 8192

// StatusOverloaded is Anthropic's dedicated overload status code.
const StatusOverloaded = 529

type Config struct {
	APIKey           string `json:"apiKey"`
	APIURL           string `json:"apiURL"`
	DefaultModel     string `json:"defaultModel"`
	OutputTokenLimit int    `json:"outputTokenLimit"`
}

type Anthropic struct {
	client         anthropicSDK.Client
	config         Config
	metricsService metrics.Metrics
}

func New(config Config, httpClient *http.Client, metricsService metrics.Metrics) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithHTTPClient(httpClient),
		// Retry policy lives in the pipeline, not the SDK.
		option.WithMaxRetries(0),
	}
	if config.APIURL != "" {
		opts = append(opts, option.WithBaseURL(config.APIURL))
	}

	return &Anthropic{
		client:         anthropicSDK.NewClient(opts...),
		config:         config,
		metricsService: metricsService,
	}
}

// conversationToMessages creates a system prompt and a slice of input
// messages from conversation posts.
func conversationToMessages(posts []llm.Post) (string, []anthropicSDK.MessageParam) {
	systemMessage := ""
	messages := make([]anthropicSDK.MessageParam, 0, len(posts))

	for _, post := range posts {
		switch post.Role {
		case llm.PostRoleSystem:
			systemMessage += post.Message
		case llm.PostRoleBot:
			messages = append(messages, anthropicSDK.MessageParam{
				Role:    anthropicSDK.MessageParamRoleAssistant,
				Content: []anthropicSDK.ContentBlockParamUnion{anthropicSDK.NewTextBlock(post.Message)},
			})
		case llm.PostRoleUser:
			messages = append(messages, anthropicSDK.MessageParam{
				Role:    anthropicSDK.MessageParamRoleUser,
				Content: []anthropicSDK.ContentBlockParamUnion{anthropicSDK.NewTextBlock(post.Message)},
			})
		}
	}

	return systemMessage, messages
}

func (a *Anthropic) createConfig(opts []llm.LanguageModelOption) llm.LanguageModelConfig {
	cfg := llm.LanguageModelConfig{
		Model:              a.config.DefaultModel,
		MaxGeneratedTokens: DefaultMaxTokens,
	}
	if a.config.OutputTokenLimit > 0 {
		cfg.MaxGeneratedTokens = a.config.OutputTokenLimit
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (a *Anthropic) ChatCompletion(request llm.CompletionRequest, opts ...llm.LanguageModelOption) (*llm.TextStreamResult, error) {
	a.metricsService.ObserveLLMRequest("anthropic")

	cfg := a.createConfig(opts)
	system, messages := conversationToMessages(request.Posts)

	params := anthropicSDK.MessageNewParams{
		Model:     anthropicSDK.Model(cfg.Model),
		MaxTokens: int64(cfg.MaxGeneratedTokens),
		Messages:  messages,
		System: []anthropicSDK.TextBlockParam{{
			Text: system,
		}},
	}

	eventStream := make(chan llm.TextStreamEvent)
	go func() {
		defer close(eventStream)

		stream := a.client.Messages.NewStreaming(context.Background(), params)
		for stream.Next() {
			event := stream.Current()
			switch eventVariant := event.AsAny().(type) {
			case anthropicSDK.ContentBlockDeltaEvent:
				switch deltaVariant := eventVariant.Delta.AsAny().(type) {
				case anthropicSDK.TextDelta:
					eventStream <- llm.TextStreamEvent{
						Type:  llm.EventTypeText,
						Value: deltaVariant.Text,
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			eventStream <- llm.TextStreamEvent{
				Type:  llm.EventTypeError,
				Value: mapError(err),
			}
			return
		}

		eventStream <- llm.TextStreamEvent{
			Type: llm.EventTypeEnd,
		}
	}()

	return &llm.TextStreamResult{Stream: eventStream}, nil
}

func (a *Anthropic) ChatCompletionNoStream(request llm.CompletionRequest, opts ...llm.LanguageModelOption) (string, error) {
	result, err := a.ChatCompletion(request, opts...)
	if err != nil {
		return "", err
	}
	return result.ReadAll()
}

// mapError normalizes the SDK's overload response to the sentinel the
// pipeline retries on.
func mapError(err error) error {
	var apierr *anthropicSDK.Error
	if errors.As(err, &apierr) && apierr.StatusCode == StatusOverloaded {
		return errors.Wrapf(llm.ErrOverloaded, "anthropic: %v", err)
	}
	return errors.Wrap(err, "anthropic request failed")
}
