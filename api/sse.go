// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/daognosis/govgate/events"
)

// sseSink adapts one open text/event-stream response into an events.Sink.
// Writes race with the handler's keep-alive ticker, so every write locks.
type sseSink struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	closed  bool
	done    chan struct{}
}

func newSSESink(writer io.Writer, flusher http.Flusher) *sseSink {
	return &sseSink{
		writer:  writer,
		flusher: flusher,
		done:    make(chan struct{}),
	}
}

func (s *sseSink) WriteEvent(event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sink closed")
	}
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// writeKeepAlive sends an SSE comment line that consumers ignore but
// intermediaries count as traffic.
func (s *sseSink) writeKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sink closed")
	}
	if _, err := io.WriteString(s.writer, ": keep-alive\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// handleEvents opens the long-lived event stream for a query run. The
// first event is always CONNECTION_ESTABLISHED; the stream then carries
// pipeline events until the client disconnects or the lifetime cap hits.
func (a *API) handleEvents(c *gin.Context) {
	sessionID := c.Query("session")
	if sessionID == "" {
		sessionID = c.Query("sessionId")
	}
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session query parameter is required"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := newSSESink(c.Writer, flusher)
	defer sink.Close()

	a.metricsService.ObserveActiveStreams(1)
	defer a.metricsService.ObserveActiveStreams(-1)

	emitter := a.manager.Emitter()
	emitter.Attach(sessionID, sink)

	if err := sink.WriteEvent(events.ConnectionEstablished(sessionID)); err != nil {
		return
	}

	keepAlive := time.NewTicker(events.KeepAliveInterval)
	defer keepAlive.Stop()
	lifetime := time.NewTimer(events.MaxStreamLifetime)
	defer lifetime.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-sink.done:
			return
		case <-lifetime.C:
			a.log.WithField("session_id", sessionID).Debug("Event stream hit max lifetime")
			return
		case <-keepAlive.C:
			if err := sink.writeKeepAlive(); err != nil {
				return
			}
		}
	}
}
