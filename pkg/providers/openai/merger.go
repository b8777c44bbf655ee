package openai

import (
	"encoding/json"

	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/loom/pkg/events"
)

// toolCallMerger reassembles tool calls from stream fragments. The API
// spreads one call's id, name and argument JSON over many chunks, keyed by
// the call's index; later fragments carry only the argument tail.
type toolCallMerger struct {
	calls map[int]go_openai.ToolCall
	order []int
}

func newToolCallMerger() *toolCallMerger {
	return &toolCallMerger{
		calls: make(map[int]go_openai.ToolCall),
	}
}

func (m *toolCallMerger) add(toolCalls []go_openai.ToolCall) {
	for _, call := range toolCalls {
		index := 0
		if call.Index != nil {
			index = *call.Index
		}
		if existing, found := m.calls[index]; found {
			if call.ID != "" {
				existing.ID = call.ID
			}
			existing.Function.Name += call.Function.Name
			existing.Function.Arguments += call.Function.Arguments
			m.calls[index] = existing
		} else {
			m.calls[index] = call
			m.order = append(m.order, index)
		}
	}
}

// toolCalls renders the merged calls in first-seen order.
func (m *toolCallMerger) toolCalls() []events.ToolCall {
	var result []events.ToolCall
	for _, index := range m.order {
		call := m.calls[index]
		arguments := call.Function.Arguments
		if arguments == "" {
			arguments = "{}"
		}
		result = append(result, events.ToolCall{
			CallID:     call.ID,
			ToolID:     call.Function.Name,
			Parameters: json.RawMessage(arguments),
		})
	}
	return result
}
