package ollama

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/wire"
)

// Name is the provider slug used in configuration and the classifier
// registry.
const Name = "ollama"

// Dialect describes the native chat endpoint framing: newline-delimited
// JSON with no SSE prefixes. There is no sentinel line; the payload's done
// flag marks the last chunk.
var Dialect = wire.Dialect{
	Name:          Name,
	BareJSONLines: true,
}

func init() {
	events.MustRegisterClassifier(Name, events.ClassifierFunc(Classify))
}

// chatChunk mirrors the subset of chat response fields that classification
// and assembly read. The final chunk may omit the message object entirely,
// so the fields are decoded into values rather than through the client
// library's response type.
type chatChunk struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// Classify maps one chat stream line to its canonical event. Content
// chunks become partials and error lines become errors; the final done
// chunk only carries metrics and stays unrecognized.
func Classify(metadata events.EventMetadata, eventType string, payload json.RawMessage) events.Event {
	var line errorLine
	if err := json.Unmarshal(payload, &line); err == nil && line.Error != "" {
		ev := events.NewErrorEvent(metadata, errors.New(line.Error))
		ev.SetPayload(payload)
		return ev
	}

	var chunk chatChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return events.NewUnrecognizedEvent(metadata, eventType, payload)
	}

	if chunk.Message.Content != "" {
		ev := events.NewPartialEvent(metadata, chunk.Message.Content, "")
		ev.SetPayload(payload)
		return ev
	}

	return events.NewUnrecognizedEvent(metadata, eventType, payload)
}
