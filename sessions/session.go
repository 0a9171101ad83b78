// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package sessions owns the per-session actors: each session holds its own
// connection registry, and query runs rendezvous with their event streams
// through the shared emitter.
package sessions

import (
	"sync"
	"time"

	"github.com/daognosis/govgate/mcp"
)

// Session is one logical user connection. Its registry is exclusively
// owned; connections are never shared across sessions.
type Session struct {
	ID        string
	Registry  *mcp.Registry
	CreatedAt time.Time

	mu         sync.Mutex
	lastActive time.Time
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
