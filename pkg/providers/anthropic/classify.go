package anthropic

import (
	"encoding/json"

	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/wire"
)

// Name is the provider slug used in configuration and the classifier
// registry.
const Name = "anthropic"

// Dialect describes the Messages API stream framing: SSE with a "type"
// discriminator in every payload and no done marker; message_stop ends the
// stream, then the body closes.
var Dialect = wire.Dialect{
	Name:           Name,
	EventTypeField: "type",
	SkipKeepalives: true,
}

func init() {
	events.MustRegisterClassifier(Name, events.ClassifierFunc(Classify))
}

// Classify maps one Messages API stream payload to its canonical event.
//
// Only payloads that project onto a canonical event by themselves are
// mapped: text and thinking deltas, thinking block starts, and errors.
// Structural payloads (message_start, block stops, message_delta) and tool
// argument fragments need cross-payload state to mean anything, so they come
// back unrecognized and the stream assembler gives them meaning.
func Classify(metadata events.EventMetadata, eventType string, payload json.RawMessage) events.Event {
	var se StreamingEvent
	if err := json.Unmarshal(payload, &se); err != nil {
		return events.NewUnrecognizedEvent(metadata, eventType, payload)
	}

	switch se.Type {
	case ContentBlockStartType:
		if se.ContentBlock != nil && se.ContentBlock.Type == ContentTypeThinking {
			ev := events.NewThinkingStartEvent(metadata)
			ev.SetPayload(payload)
			return ev
		}

	case ContentBlockDeltaType:
		if se.Delta == nil {
			break
		}
		switch se.Delta.Type {
		case TextDeltaType:
			ev := events.NewPartialEvent(metadata, se.Delta.Text, "")
			ev.SetPayload(payload)
			return ev
		case ThinkingDeltaType:
			ev := events.NewPartialThinkingEvent(metadata, se.Delta.Thinking)
			ev.SetPayload(payload)
			return ev
		}

	case ErrorType:
		if se.Error != nil {
			ev := events.NewErrorEvent(metadata, apiError(*se.Error))
			ev.SetPayload(payload)
			return ev
		}
	}

	return events.NewUnrecognizedEvent(metadata, eventType, payload)
}

// apiError adapts APIError to the error interface without losing the type.
type apiError APIError

func (e apiError) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return e.Type + ": " + e.Message
}
