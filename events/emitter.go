// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// KeepAliveInterval spaces the idle signals written to an attached
	// stream to defeat intermediary timeouts.
	KeepAliveInterval = 15 * time.Second

	// MaxStreamLifetime caps how long one attached stream may stay open.
	MaxStreamLifetime = 5 * time.Minute

	sinkWaitAttempts = 20
	sinkWaitInterval = 250 * time.Millisecond
)

// Sink is the output channel a session's events are written to. A write
// failure means the consumer is gone; the emitter evicts the sink.
type Sink interface {
	WriteEvent(event Event) error
	Close() error
}

// Emitter routes events to the single sink attached per session id.
type Emitter struct {
	log *logrus.Logger

	mu    sync.Mutex
	sinks map[string]Sink
}

func NewEmitter(log *logrus.Logger) *Emitter {
	return &Emitter{
		log:   log,
		sinks: make(map[string]Sink),
	}
}

// Attach registers the sink for the session, replacing and closing any
// prior one. Only one sink may be active per session.
func (e *Emitter) Attach(sessionID string, sink Sink) {
	e.mu.Lock()
	prior := e.sinks[sessionID]
	e.sinks[sessionID] = sink
	e.mu.Unlock()

	if prior != nil {
		_ = prior.Close()
	}
}

// Detach removes and closes the session's sink if one is attached.
func (e *Emitter) Detach(sessionID string) {
	e.mu.Lock()
	sink := e.sinks[sessionID]
	delete(e.sinks, sessionID)
	e.mu.Unlock()

	if sink != nil {
		_ = sink.Close()
	}
}

// HasSink reports whether a sink is currently attached for the session.
func (e *Emitter) HasSink(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sinks[sessionID]
	return ok
}

// Emit writes the event to the session's sink. With no sink attached the
// event is dropped. A failed write evicts the sink; later emits become
// no-ops until a new sink attaches.
func (e *Emitter) Emit(sessionID string, event Event) {
	e.mu.Lock()
	sink := e.sinks[sessionID]
	e.mu.Unlock()

	if sink == nil {
		return
	}

	if err := sink.WriteEvent(event); err != nil {
		e.log.WithError(err).WithField("session_id", sessionID).Debug("Event sink write failed, evicting sink")
		e.mu.Lock()
		if e.sinks[sessionID] == sink {
			delete(e.sinks, sessionID)
		}
		e.mu.Unlock()
		_ = sink.Close()
	}
}

// WaitForSink polls for a sink to attach before emission-heavy work
// begins. It gives up after a bounded number of attempts; the caller then
// proceeds without a sink and events are dropped.
func (e *Emitter) WaitForSink(ctx context.Context, sessionID string) bool {
	for attempt := 0; attempt < sinkWaitAttempts; attempt++ {
		if e.HasSink(sessionID) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(sinkWaitInterval):
		}
	}
	return e.HasSink(sessionID)
}
