// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package api is the HTTP façade of the gateway: connection management,
// direct tool invocation, the query pipeline endpoints and the SSE event
// stream, served through gin.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/daognosis/govgate/config"
	"github.com/daognosis/govgate/metrics"
	"github.com/daognosis/govgate/sessions"
)

// SessionHeader carries the caller's session id. Requests without it share
// the default session.
const SessionHeader = "Mcp-Session-Id"

// API represents the HTTP functionality of the gateway.
type API struct {
	log            *logrus.Logger
	metricsService metrics.Metrics
	config         *config.Container
	manager        *sessions.Manager
}

// New creates a new API instance.
func New(
	log *logrus.Logger,
	metricsService metrics.Metrics,
	configContainer *config.Container,
	manager *sessions.Manager,
) *API {
	return &API{
		log:            log,
		metricsService: metricsService,
		config:         configContainer,
		manager:        manager,
	}
}

// Router builds the gin engine with all routes registered. The same
// handlers are reachable under /api/v1 and at the bare paths for legacy
// clients.
func (a *API) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(a.ginlogger)
	router.Use(a.metricsMiddleware)
	router.Use(a.corsMiddleware)

	for _, group := range []*gin.RouterGroup{router.Group("/api/v1"), router.Group("")} {
		group.POST("/add-mcp", a.handleAddMCP)
		group.POST("/remove-mcp", a.handleRemoveMCP)
		group.GET("/mcp-state", a.handleMCPState)
		group.POST("/call-tool", a.handleCallTool)
		group.POST("/query", a.handleQuery)
		group.POST("/query-with-events", a.handleQueryWithEvents)
		group.GET("/query-with-events", a.handleEvents)
		group.GET("/events", a.handleEvents)
		group.GET("/health", a.handleHealth)
	}

	registry := a.metricsService.GetRegistry()
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return router
}

func (a *API) session(c *gin.Context) *sessions.Session {
	return a.manager.GetOrCreate(c.GetHeader(SessionHeader))
}

func (a *API) ginlogger(c *gin.Context) {
	c.Next()

	for _, ginErr := range c.Errors {
		a.log.Error(ginErr.Error())
	}
}

func (a *API) metricsMiddleware(c *gin.Context) {
	a.metricsService.IncrementHTTPRequests()
	now := time.Now()

	c.Next()

	elapsed := float64(time.Since(now)) / float64(time.Second)

	status := c.Writer.Status()

	if status < 200 || status > 299 {
		a.metricsService.IncrementHTTPErrors()
	}

	endpoint := c.HandlerName()
	a.metricsService.ObserveAPIEndpointDuration(endpoint, c.Request.Method, strconv.Itoa(status), elapsed)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
