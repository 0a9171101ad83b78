// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daognosis/govgate/anthropic"
	"github.com/daognosis/govgate/api"
	"github.com/daognosis/govgate/config"
	"github.com/daognosis/govgate/events"
	"github.com/daognosis/govgate/llm"
	"github.com/daognosis/govgate/metrics"
	"github.com/daognosis/govgate/openai"
	"github.com/daognosis/govgate/sessions"
)

// version is set at build time via -ldflags.
var version = "dev"

const (
	startupDialTimeout = 30 * time.Second
	shutdownTimeout    = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "govgate.toml", "path to the TOML configuration file")
	flag.Parse()

	log := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	container := config.NewContainer(cfg)
	metricsService := metrics.NewMetrics(metrics.InstanceInfo{Version: version})
	emitter := events.NewEmitter(log)

	httpClient := &http.Client{}
	newModel := func(apiKey string) llm.LanguageModel {
		current := container.Config()
		if current.LLM.Provider == config.ProviderOpenAI {
			return openai.New(current.OpenAIConfig(apiKey), httpClient, metricsService)
		}
		return anthropic.New(current.AnthropicConfig(apiKey), httpClient, metricsService)
	}

	manager := sessions.NewManager(log, metricsService, emitter, newModel)
	defer manager.Close()

	registerConfiguredUpstreams(log, manager, cfg)

	server := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           api.New(log, metricsService, container, manager).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("address", cfg.HTTP.ListenAddress).Info("govgate listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown was not clean")
	}
}

// registerConfiguredUpstreams connects the default session to the servers
// declared in the config file. Failures are visible in mcp-state, not
// fatal at startup.
func registerConfiguredUpstreams(log *logrus.Logger, manager *sessions.Manager, cfg *config.Config) {
	serverConfigs := cfg.ServerConfigs()
	if len(serverConfigs) == 0 {
		return
	}

	session := manager.GetOrCreate(sessions.DefaultSessionID)
	ctx, cancel := context.WithTimeout(context.Background(), startupDialTimeout)
	defer cancel()

	for _, serverConfig := range serverConfigs {
		status := session.Registry.Add(ctx, serverConfig)
		log.WithFields(logrus.Fields{
			"server": serverConfig.Name,
			"state":  status.State,
		}).Info("Registered configured upstream")
	}
}
