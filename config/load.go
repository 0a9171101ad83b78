// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Load reads the TOML file at path (optional), then applies GOVGATE_*
// environment overrides on top. A missing file is not an error; a
// malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "failed to parse config file %s", path)
			}
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTP.ListenAddress, "GOVGATE_LISTEN_ADDRESS")
	setString(&cfg.LLM.Provider, "GOVGATE_LLM_PROVIDER")
	setString(&cfg.LLM.APIKey, "GOVGATE_LLM_API_KEY")
	setString(&cfg.LLM.APIURL, "GOVGATE_LLM_API_URL")
	setString(&cfg.LLM.DefaultModel, "GOVGATE_LLM_MODEL")
	setInt(&cfg.LLM.OutputTokenLimit, "GOVGATE_LLM_OUTPUT_TOKEN_LIMIT")
	setBool(&cfg.Debug, "GOVGATE_DEBUG")
	setBool(&cfg.EnableLLMTrace, "GOVGATE_LLM_TRACE")
}

func setString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*target = value
	}
}

func setInt(target *int, key string) {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func setBool(target *bool, key string) {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}
