// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package openai

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	openaiClient "github.com/sashabaranov/go-openai"

	"github.com/daognosis/govgate/llm"
	"github.com/daognosis/govgate/metrics"
)

type Config struct {
	APIKey           string `json:"apiKey"`
	APIURL           string `json:"apiURL"`
	OrgID            string `json:"orgID"`
	DefaultModel     string `json:"defaultModel"`
	OutputTokenLimit int    `json:"outputTokenLimit"`
}

type OpenAI struct {
	client         *openaiClient.Client
	config         Config
	metricsService metrics.Metrics
}

func New(config Config, httpClient *http.Client, metricsService metrics.Metrics) *OpenAI {
	return newOpenAI(config, httpClient, metricsService,
		func(apiKey string) openaiClient.ClientConfig {
			clientConfig := openaiClient.DefaultConfig(apiKey)
			clientConfig.OrgID = config.OrgID
			return clientConfig
		},
	)
}

// NewCompatible targets any OpenAI-compatible completion endpoint.
func NewCompatible(config Config, httpClient *http.Client, metricsService metrics.Metrics) *OpenAI {
	return newOpenAI(config, httpClient, metricsService,
		func(apiKey string) openaiClient.ClientConfig {
			clientConfig := openaiClient.DefaultConfig(apiKey)
			clientConfig.BaseURL = strings.TrimSuffix(config.APIURL, "/")
			return clientConfig
		},
	)
}

func newOpenAI(
	config Config,
	httpClient *http.Client,
	metricsService metrics.Metrics,
	baseConfigFunc func(apiKey string) openaiClient.ClientConfig,
) *OpenAI {
	clientConfig := baseConfigFunc(config.APIKey)
	clientConfig.HTTPClient = httpClient

	return &OpenAI{
		client:         openaiClient.NewClientWithConfig(clientConfig),
		config:         config,
		metricsService: metricsService,
	}
}

func postsToChatCompletionMessages(posts []llm.Post) []openaiClient.ChatCompletionMessage {
	result := make([]openaiClient.ChatCompletionMessage, 0, len(posts))

	for _, post := range posts {
		role := openaiClient.ChatMessageRoleUser
		switch post.Role {
		case llm.PostRoleBot:
			role = openaiClient.ChatMessageRoleAssistant
		case llm.PostRoleSystem:
			role = openaiClient.ChatMessageRoleSystem
		}
		result = append(result, openaiClient.ChatCompletionMessage{
			Role:    role,
			Content: post.Message,
		})
	}

	return result
}

func (s *OpenAI) completionRequest(request llm.CompletionRequest, opts []llm.LanguageModelOption) openaiClient.ChatCompletionRequest {
	cfg := llm.LanguageModelConfig{
		Model:              s.config.DefaultModel,
		MaxGeneratedTokens: s.config.OutputTokenLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	openAIRequest := openaiClient.ChatCompletionRequest{
		Model:     cfg.Model,
		Messages:  postsToChatCompletionMessages(request.Posts),
		MaxTokens: cfg.MaxGeneratedTokens,
	}
	if cfg.JSONOutput {
		openAIRequest.ResponseFormat = &openaiClient.ChatCompletionResponseFormat{
			Type: openaiClient.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return openAIRequest
}

func (s *OpenAI) ChatCompletion(request llm.CompletionRequest, opts ...llm.LanguageModelOption) (*llm.TextStreamResult, error) {
	s.metricsService.ObserveLLMRequest("openai")

	openAIRequest := s.completionRequest(request, opts)
	openAIRequest.Stream = true

	eventStream := make(chan llm.TextStreamEvent)
	go func() {
		defer close(eventStream)

		stream, err := s.client.CreateChatCompletionStream(context.Background(), openAIRequest)
		if err != nil {
			eventStream <- llm.TextStreamEvent{
				Type:  llm.EventTypeError,
				Value: mapError(err),
			}
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				eventStream <- llm.TextStreamEvent{
					Type: llm.EventTypeEnd,
				}
				return
			}
			if err != nil {
				eventStream <- llm.TextStreamEvent{
					Type:  llm.EventTypeError,
					Value: mapError(err),
				}
				return
			}
			if len(response.Choices) == 0 {
				continue
			}
			if delta := response.Choices[0].Delta.Content; delta != "" {
				eventStream <- llm.TextStreamEvent{
					Type:  llm.EventTypeText,
					Value: delta,
				}
			}
		}
	}()

	return &llm.TextStreamResult{Stream: eventStream}, nil
}

func (s *OpenAI) ChatCompletionNoStream(request llm.CompletionRequest, opts ...llm.LanguageModelOption) (string, error) {
	s.metricsService.ObserveLLMRequest("openai")

	response, err := s.client.CreateChatCompletion(context.Background(), s.completionRequest(request, opts))
	if err != nil {
		return "", mapError(err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}

// mapError normalizes overload-style responses (rate limited or upstream
// saturated) to the sentinel the pipeline retries on.
func mapError(err error) error {
	var apiErr *openaiClient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, 529:
			return errors.Wrapf(llm.ErrOverloaded, "openai: %v", err)
		}
	}
	return errors.Wrap(err, "openai request failed")
}
