// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package mcp manages connections to upstream Model Context Protocol
// servers. A Conn wraps one upstream transport; a Registry owns the set of
// named connections belonging to a single session.
package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// TransportKind selects the wire transport used to reach an upstream server.
type TransportKind string

const (
	TransportSSE           TransportKind = "sse"
	TransportHTTPStreaming TransportKind = "http-streaming"
)

// ServerConfig contains the configuration for a single MCP server.
type ServerConfig struct {
	Name      string            `json:"name"`
	BaseURL   string            `json:"baseURL"`
	Transport TransportKind     `json:"transport"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// Upstream is the operations surface of one connected MCP server. Conn is
// the production implementation; tests substitute fakes.
type Upstream interface {
	ListTools(ctx context.Context) ([]mcpgo.Tool, error)
	ListPrompts(ctx context.Context) ([]mcpgo.Prompt, error)
	ListResources(ctx context.Context) ([]mcpgo.Resource, error)
	CallTool(ctx context.Context, toolName string, args map[string]any) (*mcpgo.CallToolResult, error)
	Close() error
}

// Conn represents the live connection to a single MCP server.
type Conn struct {
	config ServerConfig
	client *client.Client
}

const clientName = "govgate"

// dialTimeout bounds the transport start plus MCP handshake.
const dialTimeout = 30 * time.Second

// Dial opens the transport for the given server and performs the MCP
// handshake.
func Dial(ctx context.Context, config ServerConfig) (*Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c, err := newTransportClient(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create MCP client")
	}

	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "failed to start MCP transport")
	}

	initRequest := mcpgo.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcpgo.Implementation{
		Name:    clientName,
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initRequest); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "MCP handshake failed")
	}

	return &Conn{config: config, client: c}, nil
}

func newTransportClient(config ServerConfig) (*client.Client, error) {
	switch config.Transport {
	case TransportHTTPStreaming:
		var opts []transport.StreamableHTTPCOption
		if len(config.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(config.Headers))
		}
		return client.NewStreamableHttpClient(config.BaseURL, opts...)
	default:
		var opts []transport.ClientOption
		if len(config.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(config.Headers))
		}
		return client.NewSSEMCPClient(config.BaseURL, opts...)
	}
}

// ListTools fetches the current tool list from the upstream server. Tool
// sets can change between connects so results are never cached.
func (c *Conn) ListTools(ctx context.Context) ([]mcpgo.Tool, error) {
	result, err := c.client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list tools on server %s", c.config.Name)
	}
	return result.Tools, nil
}

// ListPrompts fetches the current prompt list from the upstream server.
func (c *Conn) ListPrompts(ctx context.Context) ([]mcpgo.Prompt, error) {
	result, err := c.client.ListPrompts(ctx, mcpgo.ListPromptsRequest{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list prompts on server %s", c.config.Name)
	}
	return result.Prompts, nil
}

// ListResources fetches the current resource list from the upstream server.
func (c *Conn) ListResources(ctx context.Context) ([]mcpgo.Resource, error) {
	result, err := c.client.ListResources(ctx, mcpgo.ListResourcesRequest{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list resources on server %s", c.config.Name)
	}
	return result.Resources, nil
}

// CallTool invokes the named tool with the given arguments and returns the
// raw result.
func (c *Conn) CallTool(ctx context.Context, toolName string, args map[string]any) (*mcpgo.CallToolResult, error) {
	request := mcpgo.CallToolRequest{}
	request.Params.Name = toolName
	request.Params.Arguments = args

	result, err := c.client.CallTool(ctx, request)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call tool %s on server %s", toolName, c.config.Name)
	}
	return result, nil
}

// Close shuts the transport down.
func (c *Conn) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// TextFromResult concatenates the text content blocks of a tool result.
// Non-text blocks are skipped.
func TextFromResult(result *mcpgo.CallToolResult) string {
	if result == nil {
		return ""
	}
	var sb strings.Builder
	for _, content := range result.Content {
		if textContent, ok := mcpgo.AsTextContent(content); ok {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(textContent.Text)
		}
	}
	return sb.String()
}

// SchemaFromTool converts an upstream tool input schema to a typed JSON
// schema for the state snapshot.
func SchemaFromTool(tool mcpgo.Tool) (*jsonschema.Schema, error) {
	properties, err := convertViaJSON(tool.InputSchema.Properties)
	if err != nil {
		return nil, err
	}
	return &jsonschema.Schema{
		Type:       tool.InputSchema.Type,
		Properties: properties,
		Required:   tool.InputSchema.Required,
	}, nil
}

func convertViaJSON(source map[string]any) (*orderedmap.OrderedMap[string, *jsonschema.Schema], error) {
	var target orderedmap.OrderedMap[string, *jsonschema.Schema]
	jsonData, err := json.Marshal(source)
	if err != nil {
		return nil, err
	}
	err = json.Unmarshal(jsonData, &target)
	return &target, err
}
