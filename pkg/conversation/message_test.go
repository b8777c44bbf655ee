package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageMarshalCarriesContentType(t *testing.T) {
	msg := NewToolUseMessage("call-1", "get_weather", json.RawMessage(`{"city":"Paris"}`))

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "tool-use", raw["contentType"])

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))

	content, ok := decoded.Content.(*ToolUseContent)
	require.True(t, ok)
	assert.Equal(t, "call-1", content.CallID)
	assert.Equal(t, "get_weather", content.ToolID)
	assert.JSONEq(t, `{"city":"Paris"}`, string(content.Input))
}

func TestMessageUnmarshalToolResult(t *testing.T) {
	msg := NewToolResultMessage("call-1", "get_weather", "connection refused", true)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))

	content, ok := decoded.Content.(*ToolResultContent)
	require.True(t, ok)
	assert.Equal(t, "connection refused", content.Result)
	assert.True(t, content.IsError)
}

func TestMessageUnmarshalLegacyWithoutContentType(t *testing.T) {
	data := []byte(`{
		"id": "` + NewMessageID().String() + `",
		"content": {"role": "user", "text": "hello from before"}
	}`)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))

	content, ok := decoded.Content.(*ChatMessageContent)
	require.True(t, ok)
	assert.Equal(t, RoleUser, content.Role)
	assert.Equal(t, "hello from before", content.Text)
}

func TestMessageUnmarshalUnknownContentType(t *testing.T) {
	data := []byte(`{"contentType": "hologram", "content": {}}`)

	var decoded Message
	err := json.Unmarshal(data, &decoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hologram")
}

func TestThreadGetSinglePrompt(t *testing.T) {
	single := Thread{NewChatMessage(RoleUser, "just this")}
	assert.Equal(t, "just this", single.GetSinglePrompt())

	multi := Thread{
		NewChatMessage(RoleSystem, "be brief"),
		NewChatMessage(RoleUser, "hi"),
	}
	assert.Equal(t, "[system]: be brief\n[user]: hi\n", multi.GetSinglePrompt())
}

func TestThreadToStringMarksToolResults(t *testing.T) {
	thread := Thread{
		NewChatMessage(RoleUser, "what time is it?"),
		NewToolResultMessage("call-1", "get_time", "boom", true),
	}

	rendered := thread.ToString()
	assert.Contains(t, rendered, "[user]: what time is it?")
	assert.Contains(t, rendered, "[tool-result (error)]: boom")
}
