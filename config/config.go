// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package config loads the gateway configuration from a TOML file with
// GOVGATE_* environment overrides, and holds it in an atomically swappable
// container so reloads never race readers.
package config

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/daognosis/govgate/anthropic"
	"github.com/daognosis/govgate/mcp"
	"github.com/daognosis/govgate/openai"
)

// ProviderAnthropic and ProviderOpenAI select the LLM backend.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

type HTTPConfig struct {
	ListenAddress string `toml:"listen_address" json:"listenAddress"`
}

type LLMConfig struct {
	Provider         string `toml:"provider" json:"provider"`
	APIKey           string `toml:"api_key" json:"apiKey"`
	APIURL           string `toml:"api_url" json:"apiURL"`
	OrgID            string `toml:"org_id" json:"orgID"`
	DefaultModel     string `toml:"default_model" json:"defaultModel"`
	OutputTokenLimit int    `toml:"output_token_limit" json:"outputTokenLimit"`
}

// UpstreamConfig declares an MCP server to register at startup, before
// any add-mcp request arrives.
type UpstreamConfig struct {
	Name      string            `toml:"name" json:"name"`
	URL       string            `toml:"url" json:"url"`
	Transport string            `toml:"transport" json:"transport"`
	Headers   map[string]string `toml:"headers" json:"headers"`
}

type Config struct {
	HTTP           HTTPConfig       `toml:"http" json:"http"`
	LLM            LLMConfig        `toml:"llm" json:"llm"`
	Upstreams      []UpstreamConfig `toml:"upstreams" json:"upstreams"`
	EnableLLMTrace bool             `toml:"enable_llm_trace" json:"enableLLMTrace"`
	Debug          bool             `toml:"debug" json:"debug"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{ListenAddress: ":8080"},
		LLM: LLMConfig{
			Provider:     ProviderAnthropic,
			DefaultModel: "claude-sonnet-4-20250514",
		},
	}
}

func (c *Config) Clone() *Config {
	clone, err := DeepCopyJSON(*c)
	if err != nil {
		panic(fmt.Sprintf("failed to clone configuration: %v", err))
	}
	return &clone
}

// AnthropicConfig translates the LLM section for the anthropic provider,
// substituting the per-request API key when one was supplied.
func (c *Config) AnthropicConfig(apiKey string) anthropic.Config {
	if apiKey == "" {
		apiKey = c.LLM.APIKey
	}
	return anthropic.Config{
		APIKey:           apiKey,
		APIURL:           c.LLM.APIURL,
		DefaultModel:     c.LLM.DefaultModel,
		OutputTokenLimit: c.LLM.OutputTokenLimit,
	}
}

// OpenAIConfig translates the LLM section for the openai provider.
func (c *Config) OpenAIConfig(apiKey string) openai.Config {
	if apiKey == "" {
		apiKey = c.LLM.APIKey
	}
	return openai.Config{
		APIKey:           apiKey,
		APIURL:           c.LLM.APIURL,
		OrgID:            c.LLM.OrgID,
		DefaultModel:     c.LLM.DefaultModel,
		OutputTokenLimit: c.LLM.OutputTokenLimit,
	}
}

// ServerConfigs converts the declared upstreams into registry configs.
func (c *Config) ServerConfigs() []mcp.ServerConfig {
	configs := make([]mcp.ServerConfig, 0, len(c.Upstreams))
	for _, upstream := range c.Upstreams {
		kind := mcp.TransportSSE
		if upstream.Transport == string(mcp.TransportHTTPStreaming) {
			kind = mcp.TransportHTTPStreaming
		}
		configs = append(configs, mcp.ServerConfig{
			Name:      upstream.Name,
			BaseURL:   upstream.URL,
			Transport: kind,
			Headers:   upstream.Headers,
		})
	}
	return configs
}

type UpdateListener func()

// Container holds the live configuration behind an atomic pointer.
type Container struct {
	cfg       atomic.Pointer[Config]
	listeners []UpdateListener
}

func NewContainer(cfg *Config) *Container {
	c := &Container{}
	c.Update(cfg)
	return c
}

// Config returns the whole configuration readonly.
func (c *Container) Config() *Config {
	return c.cfg.Load()
}

func (c *Container) GetEnableLLMTrace() bool {
	return c.cfg.Load().EnableLLMTrace
}

func (c *Container) RegisterUpdateListener(listener UpdateListener) {
	c.listeners = append(c.listeners, listener)
}

// Update swaps in the new configuration. It is deep-copied so the old and
// new configurations stay independent.
func (c *Container) Update(newConfig *Config) {
	if newConfig == nil {
		c.cfg.Store(nil)
		return
	}
	clone, err := DeepCopyJSON(*newConfig)
	if err != nil {
		panic(fmt.Sprintf("failed to deep copy configuration: %v", err))
	}

	c.cfg.Store(&clone)

	for _, listener := range c.listeners {
		listener()
	}
}

// DeepCopyJSON creates a deep copy of JSON-serializable structs
func DeepCopyJSON[T any](src T) (T, error) {
	var dst T
	data, err := json.Marshal(src)
	if err != nil {
		return dst, err
	}
	err = json.Unmarshal(data, &dst)
	return dst, err
}
