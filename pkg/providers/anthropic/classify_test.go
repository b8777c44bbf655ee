package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/loom/pkg/events"
)

func classifyRaw(t *testing.T, raw string) events.Event {
	t.Helper()
	md := events.EventMetadata{ID: uuid.New(), RequestID: uuid.New()}

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &fields))
	eventType := ""
	if typeRaw, ok := fields["type"]; ok {
		require.NoError(t, json.Unmarshal(typeRaw, &eventType))
	}

	return Classify(md, eventType, json.RawMessage(raw))
}

func TestClassifyTextDelta(t *testing.T) {
	ev := classifyRaw(t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`)

	partial, ok := ev.(*events.EventPartial)
	require.True(t, ok, "expected a partial event, got %T", ev)
	assert.Equal(t, "Hello", partial.Delta)
	assert.Empty(t, partial.Completion)
	assert.NotEmpty(t, partial.Payload())
}

func TestClassifyThinking(t *testing.T) {
	start := classifyRaw(t, `{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`)
	assert.Equal(t, events.EventTypeThinkingStart, start.Type())

	delta := classifyRaw(t, `{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"hmm"}}`)
	thinking, ok := delta.(*events.EventPartialThinking)
	require.True(t, ok, "expected a partial thinking event, got %T", delta)
	assert.Equal(t, "hmm", thinking.Delta)
}

func TestClassifyError(t *testing.T) {
	ev := classifyRaw(t, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)

	errEv, ok := ev.(*events.EventError)
	require.True(t, ok, "expected an error event, got %T", ev)
	assert.Contains(t, errEv.ErrorString, "overloaded_error")
	assert.Contains(t, errEv.ErrorString, "Overloaded")
}

func TestClassifyStructuralPayloadsAreUnrecognized(t *testing.T) {
	// These payloads only mean something relative to stream state, so the
	// pure projection must not claim them.
	for _, raw := range []string{
		`{"type":"ping"}`,
		`{"type":"message_start","message":{"id":"msg_01","model":"m"}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_01","name":"get_weather","input":{}}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"a\":"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":4}}`,
		`{"type":"message_stop"}`,
		`{"type":"some_future_event"}`,
	} {
		ev := classifyRaw(t, raw)
		assert.Equal(t, events.EventTypeUnrecognized, ev.Type(), raw)
	}
}

func TestClassifyIsRegistered(t *testing.T) {
	c, ok := events.LookupClassifier(Name)
	require.True(t, ok)

	ev := c.Classify(events.EventMetadata{}, "content_block_delta",
		json.RawMessage(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`))
	assert.Equal(t, events.EventTypePartial, ev.Type())
}
