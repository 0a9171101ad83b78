// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// requiredCORSHeaders must always be allowed: upstream MCP transports need
// protocol headers passed through, and they vary by server.
var requiredCORSHeaders = []string{
	"Content-Type",
	"Authorization",
	"X-API-Key",
	"Mcp-Session-Id",
	"Mcp-Protocol-Version",
}

// corsMiddleware is intentionally permissive: any origin, with the
// caller's requested headers reflected back unioned with the required set.
func (a *API) corsMiddleware(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", allowedHeaders(c.GetHeader("Access-Control-Request-Headers")))
	c.Header("Access-Control-Expose-Headers", SessionHeader)

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	c.Next()
}

func allowedHeaders(requested string) string {
	seen := make(map[string]bool, len(requiredCORSHeaders))
	allowed := make([]string, 0, len(requiredCORSHeaders))

	add := func(header string) {
		header = strings.TrimSpace(header)
		if header == "" {
			return
		}
		key := strings.ToLower(header)
		if seen[key] {
			return
		}
		seen[key] = true
		allowed = append(allowed, header)
	}

	for _, header := range requiredCORSHeaders {
		add(header)
	}
	for _, header := range strings.Split(requested, ",") {
		add(header)
	}

	return strings.Join(allowed, ", ")
}
