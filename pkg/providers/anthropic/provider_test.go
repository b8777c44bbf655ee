package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/loom/pkg/conversation"
	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/inference/tools"
	"github.com/go-go-golems/loom/pkg/providers"
)

func sseServer(t *testing.T, lines []string, inspect func(req *MessageRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, DefaultAPIVersion, r.Header.Get("anthropic-version"))

		var req MessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		if inspect != nil {
			inspect(&req)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}))
}

func newTestProvider(t *testing.T, serverURL string, options ...Option) *Provider {
	t.Helper()
	client, err := NewClient("test-key", WithBaseURL(serverURL), WithAllowLocalEndpoints())
	require.NoError(t, err)
	return New(client, options...)
}

func userRequest(text string) *providers.Request {
	return &providers.Request{
		Model:    "claude-sonnet-4-0",
		Messages: conversation.Thread{conversation.NewChatMessage(conversation.RoleUser, text)},
		Metadata: events.EventMetadata{ID: uuid.New(), RequestID: uuid.New(), ChatID: "chat-1"},
	}
}

func TestStreamAccumulatesText(t *testing.T) {
	server := sseServer(t, []string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-0","usage":{"input_tokens":12,"output_tokens":1}}}`,
		``,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`data: {"type":"ping"}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":", world"}}`,
		`data: {"type":"content_block_stop","index":0}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":9}}`,
		`data: {"type":"message_stop"}`,
	}, nil)
	defer server.Close()

	p := newTestProvider(t, server.URL)
	req := userRequest("hi")

	var emitted []events.Event
	result, err := p.Stream(context.Background(), req, func(ev events.Event) {
		emitted = append(emitted, ev)
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello, world", result.Text)
	assert.Equal(t, "end_turn", result.StopReason)
	assert.Empty(t, result.ToolCalls)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 12, result.Usage.InputTokens)
	assert.Equal(t, 9, result.Usage.OutputTokens)

	require.Len(t, emitted, 2)
	first := emitted[0].(*events.EventPartial)
	assert.Equal(t, "Hello", first.Delta)
	assert.Equal(t, "Hello", first.Completion)
	second := emitted[1].(*events.EventPartial)
	assert.Equal(t, ", world", second.Delta)
	assert.Equal(t, "Hello, world", second.Completion)
	assert.Equal(t, req.Metadata.RequestID, second.Metadata().RequestID)
}

func TestStreamAssemblesFragmentedToolCall(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"type":"message_start","message":{"id":"msg_02","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-0","usage":{"input_tokens":40,"output_tokens":2}}}`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Let me check the weather."}}`,
		`data: {"type":"content_block_stop","index":0}`,
		`data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_01","name":"get_weather","input":{}}}`,
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"Paris\"}"}}`,
		`data: {"type":"content_block_stop","index":1}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":31}}`,
		`data: {"type":"message_stop"}`,
	}, nil)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	var emitted []events.Event
	result, err := p.Stream(context.Background(), userRequest("weather in paris?"), func(ev events.Event) {
		emitted = append(emitted, ev)
	})
	require.NoError(t, err)

	assert.Equal(t, "Let me check the weather.", result.Text)
	assert.Equal(t, "tool_use", result.StopReason)
	require.Len(t, result.ToolCalls, 1)
	call := result.ToolCalls[0]
	assert.Equal(t, "toolu_01", call.CallID)
	assert.Equal(t, "get_weather", call.ToolID)
	assert.JSONEq(t, `{"city":"Paris"}`, string(call.Parameters))

	// one partial for the text, then the assembled tool call
	require.Len(t, emitted, 2)
	assert.Equal(t, events.EventTypePartial, emitted[0].Type())
	toolEv, ok := emitted[1].(*events.EventToolCall)
	require.True(t, ok, "expected a tool call event, got %T", emitted[1])
	assert.JSONEq(t, `{"city":"Paris"}`, string(toolEv.ToolCall.Parameters))
}

func TestStreamEmitsThinkingLifecycle(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"type":"message_start","message":{"id":"msg_03","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-0","usage":{"input_tokens":5,"output_tokens":1}}}`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"the user wants"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":" a greeting"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"c2ln"}}`,
		`data: {"type":"content_block_stop","index":0}`,
		`data: {"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`,
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Hi!"}}`,
		`data: {"type":"content_block_stop","index":1}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":12}}`,
		`data: {"type":"message_stop"}`,
	}, nil)
	defer server.Close()

	p := newTestProvider(t, server.URL, WithThinkingBudget(2048))

	var types []events.EventType
	result, err := p.Stream(context.Background(), userRequest("hello"), func(ev events.Event) {
		types = append(types, ev.Type())
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi!", result.Text)
	assert.Equal(t, []events.EventType{
		events.EventTypeThinkingStart,
		events.EventTypePartialThinking,
		events.EventTypePartialThinking,
		events.EventTypeThinkingDone,
		events.EventTypePartial,
	}, types)
}

func TestStreamToleratesMalformedLines(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"type":"message_start","message":{"id":"msg_04","type":"message","role":"assistant","content":[],"model":"m","usage":{"input_tokens":1,"output_tokens":1}}}`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`data: {not json at all`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"ok"}}`,
		`data: {"type":"content_block_stop","index":0}`,
		`data: {"type":"message_stop"}`,
	}, nil)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	result, err := p.Stream(context.Background(), userRequest("hi"), func(events.Event) {})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
}

func TestStreamSurfacesAPIErrorEvents(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"type":"message_start","message":{"id":"msg_05","type":"message","role":"assistant","content":[],"model":"m","usage":{"input_tokens":1,"output_tokens":1}}}`,
		`data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
	}, nil)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.Stream(context.Background(), userRequest("hi"), func(events.Event) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Overloaded")
}

func TestStreamSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.Stream(context.Background(), userRequest("hi"), func(events.Event) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid x-api-key")
}

func TestStreamStopsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"type":"message_start","message":{"id":"msg_06","type":"message","role":"assistant","content":[],"model":"m","usage":{"input_tokens":1,"output_tokens":1}}}` + "\n"))
		_, _ = w.Write([]byte(`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}` + "\n"))
		_, _ = w.Write([]byte(`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"partial"}}` + "\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := p.Stream(ctx, userRequest("hi"), func(ev events.Event) {
		if ev.Type() == events.EventTypePartial {
			cancel()
		}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildRequestCarriesToolsAndSystem(t *testing.T) {
	type weatherInput struct {
		City string `json:"city"`
	}
	registry := tools.NewInMemoryRegistry()
	require.NoError(t, registry.Register(tools.MustNewToolFromFunc(
		"get_weather", "Look up the weather", func(in weatherInput) string { return "sunny in " + in.City },
	)))

	var captured *MessageRequest
	server := sseServer(t, []string{
		`data: {"type":"message_start","message":{"id":"msg_07","type":"message","role":"assistant","content":[],"model":"m","usage":{"input_tokens":1,"output_tokens":1}}}`,
		`data: {"type":"message_stop"}`,
	}, func(req *MessageRequest) {
		captured = req
	})
	defer server.Close()

	p := newTestProvider(t, server.URL, WithThinkingBudget(1024))

	req := userRequest("weather?")
	req.SystemPrompt = "You are terse."
	req.MaxTokens = 512
	req.Tools = registry.List()

	_, err := p.Stream(context.Background(), req, func(events.Event) {})
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "You are terse.", captured.System)
	assert.Equal(t, 512, captured.MaxTokens)
	require.NotNil(t, captured.Thinking)
	assert.Equal(t, "enabled", captured.Thinking.Type)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "get_weather", captured.Tools[0].Name)
	assert.Contains(t, string(captured.Tools[0].InputSchema), "city")
}

func TestMessagesFromThreadMergesToolTurns(t *testing.T) {
	thread := conversation.Thread{
		conversation.NewChatMessage(conversation.RoleSystem, "be helpful"),
		conversation.NewChatMessage(conversation.RoleUser, "weather in paris?"),
		conversation.NewChatMessage(conversation.RoleAssistant, "Let me check."),
		conversation.NewToolUseMessage("toolu_01", "get_weather", json.RawMessage(`{"city":"Paris"}`)),
		conversation.NewToolResultMessage("toolu_01", "get_weather", "sunny", false),
		conversation.NewChatMessage(conversation.RoleAssistant, "It is sunny."),
	}

	msgs, system, err := messagesFromThread(thread)
	require.NoError(t, err)
	assert.Equal(t, "be helpful", system)

	require.Len(t, msgs, 4)
	assert.Equal(t, "user", msgs[0].Role)

	// assistant text and its tool_use share one turn
	assert.Equal(t, "assistant", msgs[1].Role)
	require.Len(t, msgs[1].Content, 2)
	assert.Equal(t, ContentTypeText, msgs[1].Content[0].Type)
	assert.Equal(t, ContentTypeToolUse, msgs[1].Content[1].Type)
	assert.Equal(t, "toolu_01", msgs[1].Content[1].ID)

	// the tool result comes back as a user turn
	assert.Equal(t, "user", msgs[2].Role)
	require.Len(t, msgs[2].Content, 1)
	assert.Equal(t, ContentTypeToolResult, msgs[2].Content[0].Type)
	assert.Equal(t, "toolu_01", msgs[2].Content[0].ToolUseID)
	assert.Equal(t, "sunny", msgs[2].Content[0].Content)

	assert.Equal(t, "assistant", msgs[3].Role)
}

func TestMessagesFromThreadRejectsEmptyThread(t *testing.T) {
	p := &Provider{}
	_, err := p.buildRequest(&providers.Request{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty conversation")
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := NewClient("key", WithBaseURL("http://localhost:9999"))
	require.Error(t, err)
	assert.Contains(t, strings.ToLower(err.Error()), "http endpoints")

	_, err = NewClient("key", WithBaseURL("http://localhost:9999"), WithAllowLocalEndpoints())
	require.NoError(t, err)
}
