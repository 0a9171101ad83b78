// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	mu       sync.Mutex
	events   []Event
	writeErr error
	closed   bool
}

func (s *memSink) WriteEvent(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

func (s *memSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func testEmitter() *Emitter {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewEmitter(log)
}

func TestEmitWithoutSinkIsNoop(t *testing.T) {
	emitter := testEmitter()
	require.NotPanics(t, func() {
		emitter.Emit("nobody", RunStarted())
	})
}

func TestEmitDeliversToAttachedSink(t *testing.T) {
	emitter := testEmitter()
	sink := &memSink{}
	emitter.Attach("s1", sink)

	emitter.Emit("s1", RunStarted())
	emitter.Emit("s1", RunError("boom"))

	got := sink.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, TypeRunStarted, got[0].Type)
	assert.Equal(t, TypeRunError, got[1].Type)
	assert.Equal(t, "boom", got[1].Message)
}

func TestAttachReplacesPriorSink(t *testing.T) {
	emitter := testEmitter()
	first := &memSink{}
	second := &memSink{}

	emitter.Attach("s1", first)
	emitter.Attach("s1", second)
	emitter.Emit("s1", RunStarted())

	assert.True(t, first.isClosed())
	assert.Empty(t, first.snapshot())
	assert.Len(t, second.snapshot(), 1)
}

func TestEmitEvictsSinkOnWriteFailure(t *testing.T) {
	emitter := testEmitter()
	sink := &memSink{writeErr: errors.New("stream gone")}
	emitter.Attach("s1", sink)

	emitter.Emit("s1", RunStarted())

	assert.True(t, sink.isClosed())
	assert.False(t, emitter.HasSink("s1"))

	// Further emits are dropped without error.
	require.NotPanics(t, func() {
		emitter.Emit("s1", RunStarted())
	})
}

func TestDetachClosesSink(t *testing.T) {
	emitter := testEmitter()
	sink := &memSink{}
	emitter.Attach("s1", sink)
	emitter.Detach("s1")

	assert.True(t, sink.isClosed())
	assert.False(t, emitter.HasSink("s1"))
}

func TestWaitForSinkAttachedLate(t *testing.T) {
	emitter := testEmitter()

	go func() {
		time.Sleep(2 * sinkWaitInterval)
		emitter.Attach("s1", &memSink{})
	}()

	assert.True(t, emitter.WaitForSink(context.Background(), "s1"))
}

func TestWaitForSinkCancelled(t *testing.T) {
	emitter := testEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, emitter.WaitForSink(ctx, "s1"))
}

func TestMessageWriterOrdering(t *testing.T) {
	emitter := testEmitter()
	sink := &memSink{}
	emitter.Attach("s1", sink)

	writer := emitter.NewMessageWriter("s1")
	writer.WriteDelta("Hello ")
	writer.WriteDelta("world")
	writer.Close()

	got := sink.snapshot()
	require.Len(t, got, 4)
	assert.Equal(t, TypeTextMessageStart, got[0].Type)
	assert.Equal(t, TypeTextMessageContent, got[1].Type)
	assert.Equal(t, "Hello ", got[1].Delta)
	assert.Equal(t, TypeTextMessageContent, got[2].Type)
	assert.Equal(t, "world", got[2].Delta)
	assert.Equal(t, TypeTextMessageEnd, got[3].Type)

	for _, event := range got {
		assert.Equal(t, writer.MessageID(), event.MessageID)
	}
}

func TestMessageWriterWithoutDeltasEmitsNothing(t *testing.T) {
	emitter := testEmitter()
	sink := &memSink{}
	emitter.Attach("s1", sink)

	writer := emitter.NewMessageWriter("s1")
	writer.Close()
	writer.WriteDelta("after close")

	assert.Empty(t, sink.snapshot())
}
