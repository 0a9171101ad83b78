// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/daognosis/govgate/mcp"
)

type addMCPRequest struct {
	Name    string            `json:"name" binding:"required"`
	URL     string            `json:"url" binding:"required"`
	Type    string            `json:"type"`
	Headers map[string]string `json:"headers"`
}

// transportForType maps the wire-level connection type to a transport
// kind: bitte-proxy servers speak streamable HTTP, everything else SSE.
func transportForType(connectionType string) mcp.TransportKind {
	if strings.EqualFold(connectionType, "bitte-proxy") {
		return mcp.TransportHTTPStreaming
	}
	return mcp.TransportSSE
}

func (a *API) handleAddMCP(c *gin.Context) {
	var request addMCPRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and url are required"})
		return
	}

	session := a.session(c)
	status := session.Registry.Add(c.Request.Context(), mcp.ServerConfig{
		Name:      request.Name,
		BaseURL:   request.URL,
		Transport: transportForType(request.Type),
		Headers:   request.Headers,
	})

	c.JSON(http.StatusOK, gin.H{
		"name":   request.Name,
		"status": status,
	})
}

type removeMCPRequest struct {
	ServerID string `json:"serverId" binding:"required"`
}

func (a *API) handleRemoveMCP(c *gin.Context) {
	var request removeMCPRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serverId is required"})
		return
	}

	session := a.session(c)
	if err := session.Registry.Remove(request.ServerID); err != nil {
		if errors.Is(err, mcp.ErrServerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": request.ServerID})
}

func (a *API) handleMCPState(c *gin.Context) {
	session := a.session(c)
	c.JSON(http.StatusOK, session.Registry.Describe(c.Request.Context()))
}

type callToolRequest struct {
	ToolName string         `json:"toolName" binding:"required"`
	Args     map[string]any `json:"args"`
	ServerID string         `json:"serverId" binding:"required"`
}

func (a *API) handleCallTool(c *gin.Context) {
	var request callToolRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "toolName and serverId are required"})
		return
	}

	session := a.session(c)
	conn, err := session.Registry.Resolve(request.ServerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	result, err := conn.CallTool(c.Request.Context(), request.ToolName, request.Args)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

type queryRequest struct {
	Query     string `json:"query" binding:"required"`
	LLMAPIKey string `json:"llmApiKey"`
}

// resolveAPIKey prefers the per-request key, falling back to the
// configured one. An empty result is a terminal validation error.
func (a *API) resolveAPIKey(request queryRequest) (string, bool) {
	key := strings.TrimSpace(request.LLMAPIKey)
	if key == "" {
		key = a.config.Config().LLM.APIKey
	}
	return key, key != ""
}

func (a *API) handleQuery(c *gin.Context) {
	var request queryRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	apiKey, ok := a.resolveAPIKey(request)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "llmApiKey is required"})
		return
	}

	session := a.session(c)
	result := a.manager.Query(c.Request.Context(), session, request.Query, apiKey)
	c.JSON(http.StatusOK, result)
}

func (a *API) handleQueryWithEvents(c *gin.Context) {
	var request queryRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	apiKey, ok := a.resolveAPIKey(request)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "llmApiKey is required"})
		return
	}

	session := a.session(c)
	runID := a.manager.StartQuery(session, request.Query, apiKey)
	c.JSON(http.StatusOK, gin.H{"sessionId": runID})
}
