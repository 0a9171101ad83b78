// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daognosis/govgate/mcp"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.ListenAddress)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "govgate.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[http]
listen_address = ":9999"

[llm]
provider = "openai"
default_model = "gpt-4o"

[[upstreams]]
name = "dao-governance"
url = "http://dao.test/mcp"
transport = "http-streaming"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.ListenAddress)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.DefaultModel)

	servers := cfg.ServerConfigs()
	require.Len(t, servers, 1)
	assert.Equal(t, mcp.TransportHTTPStreaming, servers[0].Transport)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GOVGATE_LISTEN_ADDRESS", ":7777")
	t.Setenv("GOVGATE_LLM_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.HTTP.ListenAddress)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.ListenAddress)
}

func TestContainerUpdateNotifiesListeners(t *testing.T) {
	container := NewContainer(Default())

	notified := 0
	container.RegisterUpdateListener(func() {
		notified++
	})

	updated := Default()
	updated.Debug = true
	container.Update(updated)

	assert.Equal(t, 1, notified)
	assert.True(t, container.Config().Debug)

	// The container holds its own copy.
	updated.Debug = false
	assert.True(t, container.Config().Debug)
}
