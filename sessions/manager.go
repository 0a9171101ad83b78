// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package sessions

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daognosis/govgate/events"
	"github.com/daognosis/govgate/llm"
	"github.com/daognosis/govgate/mcp"
	"github.com/daognosis/govgate/metrics"
)

const (
	// DefaultSessionID keys requests that carry no session header.
	DefaultSessionID = "default"

	// completedRunGrace is how long a finished query run's bookkeeping
	// survives so a late stream consumer can still attach and detach.
	completedRunGrace = 30 * time.Second

	sessionIdleTimeout = 30 * time.Minute
	cleanupInterval    = time.Minute
)

// ModelFactory builds a language model client for the API key a query
// supplied.
type ModelFactory func(apiKey string) llm.LanguageModel

// Manager owns all live sessions and their query runs.
type Manager struct {
	log      *logrus.Logger
	metrics  metrics.Metrics
	emitter  *events.Emitter
	newModel ModelFactory

	mu       sync.Mutex
	sessions map[string]*Session
	runs     map[string]time.Time

	stop chan struct{}
	once sync.Once
}

func NewManager(log *logrus.Logger, metricsService metrics.Metrics, emitter *events.Emitter, newModel ModelFactory) *Manager {
	m := &Manager{
		log:      log,
		metrics:  metricsService,
		emitter:  emitter,
		newModel: newModel,
		sessions: make(map[string]*Session),
		runs:     make(map[string]time.Time),
		stop:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// GetOrCreate returns the session for the id, creating it with a fresh
// registry on first use. Empty ids fall back to the default session.
func (m *Manager) GetOrCreate(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		session = &Session{
			ID:        id,
			Registry:  mcp.NewRegistry(m.log),
			CreatedAt: time.Now(),
		}
		m.sessions[id] = session
		m.log.WithField("session_id", id).Debug("Created session")
	}
	session.touch()
	return session
}

// Emitter exposes the shared event emitter for stream attachment.
func (m *Manager) Emitter() *events.Emitter {
	return m.emitter
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

// evictIdle tears down sessions that have seen no activity. The default
// session is kept alive for the lifetime of the process.
func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-sessionIdleTimeout)

	m.mu.Lock()
	var evicted []*Session
	for id, session := range m.sessions {
		if id == DefaultSessionID {
			continue
		}
		if session.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, session)
		}
	}
	m.mu.Unlock()

	for _, session := range evicted {
		m.log.WithField("session_id", session.ID).Debug("Evicting idle session")
		session.Registry.Close()
	}
}

// Close stops the cleanup loop and tears down every session.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	runIDs := make([]string, 0, len(m.runs))
	for id := range m.runs {
		runIDs = append(runIDs, id)
	}
	m.runs = make(map[string]time.Time)
	m.mu.Unlock()

	for _, id := range runIDs {
		m.emitter.Detach(id)
	}
	for _, session := range sessions {
		session.Registry.Close()
	}
}

func (m *Manager) registerRun(runID string) {
	m.mu.Lock()
	m.runs[runID] = time.Now()
	m.mu.Unlock()
}

// finishRun schedules the run's teardown after the grace period so a
// consumer that attached late can still drain the stream.
func (m *Manager) finishRun(runID string) {
	m.mu.Lock()
	started, ok := m.runs[runID]
	m.mu.Unlock()
	if ok {
		m.log.WithFields(logrus.Fields{"run_id": runID, "elapsed": time.Since(started).String()}).Debug("Query run finished")
	}

	time.AfterFunc(completedRunGrace, func() {
		m.mu.Lock()
		delete(m.runs, runID)
		m.mu.Unlock()
		m.emitter.Detach(runID)
	})
}
