// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package events fans typed lifecycle events out to per-session output
// sinks. A session has at most one attached sink; events emitted while no
// sink is attached are dropped, never buffered.
package events

// Type discriminates the wire events sent to a session's stream.
type Type string

const (
	TypeConnectionEstablished Type = "CONNECTION_ESTABLISHED"
	TypeRunStarted            Type = "RUN_STARTED"
	TypeTextMessageStart      Type = "TEXT_MESSAGE_START"
	TypeTextMessageContent    Type = "TEXT_MESSAGE_CONTENT"
	TypeTextMessageEnd        Type = "TEXT_MESSAGE_END"
	TypeRunFinished           Type = "RUN_FINISHED"
	TypeRunError              Type = "RUN_ERROR"
	TypeCustom                Type = "CUSTOM"
)

// Event is one wire event. Only the fields relevant to its type are set;
// the JSON shape is a contract with stream consumers and must not change.
type Event struct {
	Type      Type   `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Delta     string `json:"delta,omitempty"`
	Result    any    `json:"result,omitempty"`
	Message   string `json:"message,omitempty"`
	Name      string `json:"name,omitempty"`
	Value     any    `json:"value,omitempty"`
}

func ConnectionEstablished(sessionID string) Event {
	return Event{Type: TypeConnectionEstablished, SessionID: sessionID}
}

func RunStarted() Event {
	return Event{Type: TypeRunStarted}
}

func TextMessageStart(messageID string) Event {
	return Event{Type: TypeTextMessageStart, MessageID: messageID}
}

func TextMessageContent(messageID, delta string) Event {
	return Event{Type: TypeTextMessageContent, MessageID: messageID, Delta: delta}
}

func TextMessageEnd(messageID string) Event {
	return Event{Type: TypeTextMessageEnd, MessageID: messageID}
}

func RunFinished(result any) Event {
	return Event{Type: TypeRunFinished, Result: result}
}

func RunError(message string) Event {
	return Event{Type: TypeRunError, Message: message}
}

func Custom(name string, value any) Event {
	return Event{Type: TypeCustom, Name: name, Value: value}
}
