package openai

import (
	"encoding/json"

	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/wire"
)

// Name is the provider slug used in configuration and the classifier
// registry.
const Name = "openai"

// Dialect describes the chat completions stream framing: SSE without a
// discriminator field (payloads are told apart by shape) and a [DONE]
// sentinel ending the stream.
var Dialect = wire.Dialect{
	Name:           Name,
	DoneMarker:     "[DONE]",
	SkipKeepalives: true,
}

func init() {
	events.MustRegisterClassifier(Name, events.ClassifierFunc(Classify))
}

// Classify maps one chat completions stream chunk to its canonical event.
//
// Content deltas become partials and error payloads become errors. Tool
// call deltas arrive as fragments spread over many chunks, so they come
// back unrecognized and the stream assembler merges them by index.
func Classify(metadata events.EventMetadata, eventType string, payload json.RawMessage) events.Event {
	var envelope errorEnvelope
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Error != nil {
		ev := events.NewErrorEvent(metadata, streamError{
			errType: envelope.Error.Type,
			message: envelope.Error.Message,
		})
		ev.SetPayload(payload)
		return ev
	}

	var chunk go_openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return events.NewUnrecognizedEvent(metadata, eventType, payload)
	}

	if len(chunk.Choices) > 0 {
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			ev := events.NewPartialEvent(metadata, delta.Content, "")
			ev.SetPayload(payload)
			return ev
		}
	}

	return events.NewUnrecognizedEvent(metadata, eventType, payload)
}

type streamError struct {
	errType string
	message string
}

func (e streamError) Error() string {
	if e.errType == "" {
		return e.message
	}
	return e.errType + ": " + e.message
}
