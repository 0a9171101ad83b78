// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package llm

// EventType represents the type of event in the text stream
type EventType int

const (
	// EventTypeText represents a text chunk event
	EventTypeText EventType = iota
	// EventTypeEnd represents the end of the stream
	EventTypeEnd
	// EventTypeError represents an error event
	EventTypeError
)

// TextStreamEvent represents an event in the text stream
type TextStreamEvent struct {
	Type  EventType
	Value any
}

// TextStreamResult represents a stream of text events
type TextStreamResult struct {
	Stream <-chan TextStreamEvent
}

// NewStreamFromString returns a stream that emits the given text as a
// single chunk followed by the end event.
func NewStreamFromString(text string) *TextStreamResult {
	stream := make(chan TextStreamEvent)

	go func() {
		stream <- TextStreamEvent{
			Type:  EventTypeText,
			Value: text,
		}
		stream <- TextStreamEvent{
			Type: EventTypeEnd,
		}
		close(stream)
	}()

	return &TextStreamResult{
		Stream: stream,
	}
}

// ReadAll drains the stream and concatenates the text chunks. The first
// error event aborts the read and is returned.
func (t *TextStreamResult) ReadAll() (string, error) {
	result := ""
	for event := range t.Stream {
		switch event.Type {
		case EventTypeText:
			if textChunk, ok := event.Value.(string); ok {
				result += textChunk
			}
		case EventTypeError:
			if err, ok := event.Value.(error); ok {
				return "", err
			}
		case EventTypeEnd:
			continue
		}
	}

	return result, nil
}
