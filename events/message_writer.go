// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package events

import "github.com/google/uuid"

// MessageWriter streams one logical assistant message to a session. It
// guarantees the wire ordering for its message id: one TEXT_MESSAGE_START,
// then content deltas in write order, then one TEXT_MESSAGE_END.
type MessageWriter struct {
	emitter   *Emitter
	sessionID string
	messageID string
	started   bool
	ended     bool
}

func (e *Emitter) NewMessageWriter(sessionID string) *MessageWriter {
	return &MessageWriter{
		emitter:   e,
		sessionID: sessionID,
		messageID: uuid.NewString(),
	}
}

func (w *MessageWriter) MessageID() string {
	return w.messageID
}

// WriteDelta emits the next content delta, opening the message on first
// use. Writes after Close are ignored.
func (w *MessageWriter) WriteDelta(delta string) {
	if w.ended || delta == "" {
		return
	}
	if !w.started {
		w.started = true
		w.emitter.Emit(w.sessionID, TextMessageStart(w.messageID))
	}
	w.emitter.Emit(w.sessionID, TextMessageContent(w.messageID, delta))
}

// Close ends the message. A writer that never produced a delta emits
// nothing at all.
func (w *MessageWriter) Close() {
	if w.ended || !w.started {
		w.ended = true
		return
	}
	w.ended = true
	w.emitter.Emit(w.sessionID, TextMessageEnd(w.messageID))
}
