package anthropic

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/loom/pkg/events"
)

// pendingBlock is one content block being assembled from stream fragments.
type pendingBlock struct {
	kind string

	text     string
	thinking string

	// tool_use fields; partialJSON accumulates input_json_delta fragments.
	toolID      string
	toolName    string
	partialJSON string

	startedAt time.Time
}

// blockMerger reassembles a full message from stream events. It is fed every
// payload in order, enriches the classified event where cross-payload state
// is needed (running completion, block boundaries), and synthesizes the
// events that only exist at block boundaries: tool calls and thinking done.
//
// A merger serves exactly one stream.
type blockMerger struct {
	metadata events.EventMetadata

	blocks map[int]*pendingBlock

	text      string
	toolCalls []events.ToolCall

	messageID  string
	model      string
	stopReason string
	usage      *events.Usage
}

func newBlockMerger(metadata events.EventMetadata) *blockMerger {
	return &blockMerger{
		metadata: metadata,
		blocks:   make(map[int]*pendingBlock),
	}
}

// Absorb folds one stream payload into the assembly state and returns the
// canonical events to deliver for it, in order. classified is the pure
// per-payload projection; Absorb fills in what the projection could not
// know. A non-nil error aborts the stream.
func (m *blockMerger) Absorb(payload json.RawMessage, classified events.Event) ([]events.Event, error) {
	if errEv, ok := classified.(*events.EventError); ok {
		return nil, errors.New(errEv.ErrorString)
	}

	var se StreamingEvent
	if err := json.Unmarshal(payload, &se); err != nil {
		return nil, errors.Wrap(err, "could not decode streaming event")
	}

	switch se.Type {
	case PingType:
		return nil, nil

	case MessageStartType:
		if se.Message == nil {
			return nil, errors.New("message_start event must carry a message")
		}
		m.messageID = se.Message.ID
		m.model = se.Message.Model
		if se.Message.Usage != nil {
			m.usage = &events.Usage{
				InputTokens:  se.Message.Usage.InputTokens,
				OutputTokens: se.Message.Usage.OutputTokens,
			}
		}
		return nil, nil

	case ContentBlockStartType:
		if se.ContentBlock == nil {
			return nil, errors.New("content_block_start event must carry a content block")
		}
		if _, exists := m.blocks[se.Index]; exists {
			return nil, errors.Errorf("content block %d started twice", se.Index)
		}
		m.blocks[se.Index] = &pendingBlock{
			kind:      se.ContentBlock.Type,
			text:      se.ContentBlock.Text,
			toolID:    se.ContentBlock.ID,
			toolName:  se.ContentBlock.Name,
			startedAt: time.Now(),
		}
		if se.ContentBlock.Type == ContentTypeThinking {
			return []events.Event{classified}, nil
		}
		return nil, nil

	case ContentBlockDeltaType:
		if se.Delta == nil {
			return nil, errors.New("content_block_delta event must carry a delta")
		}
		block, exists := m.blocks[se.Index]
		if !exists {
			return nil, errors.Errorf("content block %d got a delta before starting", se.Index)
		}
		switch se.Delta.Type {
		case TextDeltaType:
			block.text += se.Delta.Text
			m.text += se.Delta.Text
			if partial, ok := classified.(*events.EventPartial); ok {
				partial.Completion = m.text
				return []events.Event{partial}, nil
			}
			return nil, nil
		case ThinkingDeltaType:
			block.thinking += se.Delta.Thinking
			return []events.Event{classified}, nil
		case InputJSONDeltaType:
			block.partialJSON += se.Delta.PartialJSON
			return nil, nil
		default:
			// signature_delta and future delta kinds carry nothing we
			// assemble.
			return nil, nil
		}

	case ContentBlockStopType:
		block, exists := m.blocks[se.Index]
		if !exists {
			return nil, errors.Errorf("content block %d stopped before starting", se.Index)
		}
		delete(m.blocks, se.Index)

		switch block.kind {
		case ContentTypeText:
			return nil, nil

		case ContentTypeThinking:
			elapsed := time.Since(block.startedAt)
			status := fmt.Sprintf("Thought for %.1fs", elapsed.Seconds())
			return []events.Event{
				events.NewThinkingDoneEvent(m.metadata, elapsed.Seconds(), status),
			}, nil

		case ContentTypeToolUse:
			input := json.RawMessage(block.partialJSON)
			if block.partialJSON == "" {
				input = json.RawMessage(`{}`)
			}
			call := events.ToolCall{
				CallID:     block.toolID,
				ToolID:     block.toolName,
				Parameters: input,
			}
			m.toolCalls = append(m.toolCalls, call)
			return []events.Event{
				events.NewToolCallEvent(m.metadata, call),
			}, nil

		default:
			return nil, errors.Errorf("unknown content block type %q", block.kind)
		}

	case MessageDeltaType:
		if se.Delta != nil && se.Delta.StopReason != "" {
			m.stopReason = se.Delta.StopReason
		}
		if se.Usage != nil {
			if m.usage == nil {
				m.usage = &events.Usage{}
			}
			m.usage.OutputTokens = se.Usage.OutputTokens
		}
		return nil, nil

	case MessageStopType:
		return nil, nil

	default:
		// Unknown event types are skipped for forward compatibility; the
		// classifier already marked them unrecognized.
		return nil, nil
	}
}
