// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrServerNotFound is returned when a logical server name is not present
// in the registry.
var ErrServerNotFound = errors.New("mcp server not found")

// ErrServerNotReady is returned when a registered server cannot serve tool
// calls in its current state.
var ErrServerNotReady = errors.New("mcp server not ready")

// State is the lifecycle state of one registered server.
type State string

const (
	StateConnecting State = "connecting"
	StateReady      State = "ready"
	StateError      State = "error"
)

// listTimeout bounds each per-server listing call during Describe.
const listTimeout = 15 * time.Second

// DialFunc opens a connection to an upstream server. Overridable in tests.
type DialFunc func(ctx context.Context, config ServerConfig) (Upstream, error)

// ToolDescriptor describes one tool offered by a registered server.
type ToolDescriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"inputSchema,omitempty"`
	Server      string             `json:"server"`
}

// ServerStatus is the externally visible state of one registered server.
type ServerStatus struct {
	State State  `json:"state"`
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// Snapshot is the aggregate state of all registered servers, with tool,
// prompt and resource listings fetched fresh from every ready connection.
type Snapshot struct {
	Tools     []ToolDescriptor        `json:"tools"`
	Servers   map[string]ServerStatus `json:"servers"`
	Prompts   []PromptDescriptor      `json:"prompts"`
	Resources []ResourceDescriptor    `json:"resources"`
}

// PromptDescriptor describes one prompt offered by a registered server.
type PromptDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Server      string `json:"server"`
}

// ResourceDescriptor describes one resource offered by a registered server.
type ResourceDescriptor struct {
	URI    string `json:"uri"`
	Name   string `json:"name,omitempty"`
	Server string `json:"server"`
}

type entry struct {
	config    ServerConfig
	conn      Upstream
	state     State
	lastError string
}

// Registry owns the named upstream connections of one session. It is only
// mutated by that session's own add/remove calls; reads may interleave and
// can observe a connection in StateConnecting.
type Registry struct {
	log  *logrus.Logger
	dial DialFunc

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{
		log: log,
		dial: func(ctx context.Context, config ServerConfig) (Upstream, error) {
			return Dial(ctx, config)
		},
		entries: make(map[string]*entry),
	}
}

// SetDialFunc replaces the connection factory. Used by tests.
func (r *Registry) SetDialFunc(dial DialFunc) {
	r.dial = dial
}

// Add registers the named server and connects to it. Adding a name that is
// already ready or mid-registration is a no-op. A handshake failure still
// creates the registry slot in StateError so the failure is visible in the
// state snapshot; Add reports the resulting status rather than an error.
func (r *Registry) Add(ctx context.Context, config ServerConfig) ServerStatus {
	r.mu.Lock()
	if existing, ok := r.entries[config.Name]; ok && existing.state != StateError {
		status := existing.status()
		r.mu.Unlock()
		r.log.WithField("server", config.Name).Debug("Server already registered, add is a no-op")
		return status
	}
	placeholder := &entry{config: config, state: StateConnecting}
	r.entries[config.Name] = placeholder
	r.mu.Unlock()

	conn, err := r.dial(ctx, config)

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.entries[config.Name]
	if !ok || current != placeholder {
		// Removed or replaced while we were connecting.
		if conn != nil {
			conn.Close()
		}
		if !ok {
			return ServerStatus{State: StateError, URL: config.BaseURL, Error: "server removed during registration"}
		}
		return current.status()
	}

	if err != nil {
		current.state = StateError
		current.lastError = err.Error()
		r.log.WithField("server", config.Name).WithError(err).Error("Failed to connect to MCP server")
		return current.status()
	}

	current.conn = conn
	current.state = StateReady
	current.lastError = ""
	r.log.WithFields(logrus.Fields{"server": config.Name, "transport": config.Transport}).Debug("MCP server connected")

	// Initial tool listing is best effort: a failure is logged but does
	// not change the handshake outcome.
	go r.warmTools(config.Name, conn)

	return current.status()
}

func (r *Registry) warmTools(name string, conn Upstream) {
	ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
	defer cancel()
	tools, err := conn.ListTools(ctx)
	if err != nil {
		r.log.WithField("server", name).WithError(err).Warn("Initial tool listing failed")
		return
	}
	r.log.WithFields(logrus.Fields{"server": name, "tools": len(tools)}).Debug("Initial tool listing complete")
}

// Remove closes the named connection and deletes the registry slot. The
// close is best effort; the local entry is always removed.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	existing, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return errors.Wrap(ErrServerNotFound, name)
	}
	delete(r.entries, name)
	r.mu.Unlock()

	if existing.conn != nil {
		if err := existing.conn.Close(); err != nil {
			r.log.WithField("server", name).WithError(err).Warn("Failed to close MCP connection")
		}
	}
	return nil
}

// Resolve returns the connection for the given server name. The connection
// must be ready; anything else fails fast.
func (r *Registry) Resolve(name string) (Upstream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	existing, ok := r.entries[name]
	if !ok {
		return nil, errors.Wrap(ErrServerNotFound, name)
	}
	if existing.state != StateReady || existing.conn == nil {
		return nil, errors.Wrapf(ErrServerNotReady, "server %s (state %s)", name, existing.state)
	}
	return existing.conn, nil
}

// Names returns the registered server names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// Describe lists tools, prompts and resources across every registered
// server. Listing failures are isolated per server: a failing server is
// reported in StateError while the rest of the snapshot is unaffected.
func (r *Registry) Describe(ctx context.Context) Snapshot {
	type target struct {
		config ServerConfig
		conn   Upstream
		status ServerStatus
	}

	r.mu.RLock()
	targets := make(map[string]target, len(r.entries))
	for name, e := range r.entries {
		targets[name] = target{config: e.config, conn: e.conn, status: e.status()}
	}
	r.mu.RUnlock()

	snapshot := Snapshot{
		Tools:     []ToolDescriptor{},
		Servers:   make(map[string]ServerStatus, len(targets)),
		Prompts:   []PromptDescriptor{},
		Resources: []ResourceDescriptor{},
	}

	for name, e := range targets {
		if e.status.State != StateReady || e.conn == nil {
			snapshot.Servers[name] = e.status
			continue
		}

		listCtx, cancel := context.WithTimeout(ctx, listTimeout)
		tools, err := e.conn.ListTools(listCtx)
		cancel()
		if err != nil {
			r.log.WithField("server", name).WithError(err).Warn("Tool listing failed during describe")
			r.markError(name, err.Error())
			snapshot.Servers[name] = ServerStatus{State: StateError, URL: e.config.BaseURL, Error: err.Error()}
			continue
		}

		for _, tool := range tools {
			schema, err := SchemaFromTool(tool)
			if err != nil {
				r.log.WithFields(logrus.Fields{"server": name, "tool": tool.Name}).WithError(err).Warn("Failed to convert tool input schema")
				schema = nil
			}
			snapshot.Tools = append(snapshot.Tools, ToolDescriptor{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: schema,
				Server:      name,
			})
		}

		// Prompts and resources are optional capabilities; a failure here
		// does not degrade the server state.
		listCtx, cancel = context.WithTimeout(ctx, listTimeout)
		if prompts, err := e.conn.ListPrompts(listCtx); err == nil {
			for _, prompt := range prompts {
				snapshot.Prompts = append(snapshot.Prompts, PromptDescriptor{
					Name:        prompt.Name,
					Description: prompt.Description,
					Server:      name,
				})
			}
		}
		cancel()

		listCtx, cancel = context.WithTimeout(ctx, listTimeout)
		if resources, err := e.conn.ListResources(listCtx); err == nil {
			for _, resource := range resources {
				snapshot.Resources = append(snapshot.Resources, ResourceDescriptor{
					URI:    resource.URI,
					Name:   resource.Name,
					Server: name,
				})
			}
		}
		cancel()

		snapshot.Servers[name] = ServerStatus{State: StateReady, URL: e.config.BaseURL}
	}

	return snapshot
}

// Close tears down every connection. Called on session eviction.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for name, e := range entries {
		if e.conn == nil {
			continue
		}
		if err := e.conn.Close(); err != nil {
			r.log.WithField("server", name).WithError(err).Warn("Failed to close MCP connection")
		}
	}
}

func (r *Registry) markError(name, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.state = StateError
		e.lastError = message
	}
}

func (e *entry) status() ServerStatus {
	return ServerStatus{
		State: e.state,
		URL:   e.config.BaseURL,
		Error: e.lastError,
	}
}
