// Package events defines the canonical stream events emitted while an
// inference request runs, and the pub/sub plumbing used to fan them out to
// UIs, loggers and other subscribers.
package events

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type EventType string

const (
	// EventTypePartial is a chunk of assistant text.
	EventTypePartial EventType = "partial"

	EventTypeThinkingStart   EventType = "thinking-start"
	EventTypePartialThinking EventType = "partial-thinking"
	EventTypeThinkingDone    EventType = "thinking-done"

	EventTypeToolCall   EventType = "tool-call"
	EventTypeToolResult EventType = "tool-result"

	// EventTypeMessagesAdded signals that messages were persisted to the
	// conversation and subscribers should reload their view of it.
	EventTypeMessagesAdded EventType = "messages-added"

	EventTypeStatus EventType = "status"
	EventTypeFinal  EventType = "final"
	EventTypeError  EventType = "error"

	// EventTypeUnrecognized is produced for wire events no classifier
	// claims. The raw payload is preserved for diagnostics.
	EventTypeUnrecognized EventType = "unrecognized"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// payload is the raw JSON the event was decoded from, if any.
	payload []byte
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

var _ Event = &EventImpl{}

// ToolCall is a provider's request to invoke a registered tool.
type ToolCall struct {
	// CallID identifies this invocation so the result can be matched up.
	CallID string `json:"call_id" yaml:"call_id"`
	// ToolID names the tool in the registry.
	ToolID     string          `json:"tool_id" yaml:"tool_id"`
	Parameters json.RawMessage `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// ToolResult is the outcome of executing a tool call. IsError marks results
// that report an execution failure back to the model.
type ToolResult struct {
	CallID  string `json:"call_id" yaml:"call_id"`
	ToolID  string `json:"tool_id" yaml:"tool_id"`
	Result  string `json:"result" yaml:"result"`
	IsError bool   `json:"is_error,omitempty" yaml:"is_error,omitempty"`
}

type EventPartial struct {
	EventImpl

	Delta string `json:"delta"`
	// Completion is the text accumulated so far, including Delta.
	Completion string `json:"completion"`
}

func NewPartialEvent(metadata EventMetadata, delta string, completion string) *EventPartial {
	return &EventPartial{
		EventImpl: EventImpl{
			Type_:     EventTypePartial,
			Metadata_: metadata,
		},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventPartial{}

type EventThinkingStart struct {
	EventImpl
}

func NewThinkingStartEvent(metadata EventMetadata) *EventThinkingStart {
	return &EventThinkingStart{
		EventImpl: EventImpl{
			Type_:     EventTypeThinkingStart,
			Metadata_: metadata,
		},
	}
}

var _ Event = &EventThinkingStart{}

type EventPartialThinking struct {
	EventImpl

	Delta string `json:"delta"`
}

func NewPartialThinkingEvent(metadata EventMetadata, delta string) *EventPartialThinking {
	return &EventPartialThinking{
		EventImpl: EventImpl{
			Type_:     EventTypePartialThinking,
			Metadata_: metadata,
		},
		Delta: delta,
	}
}

var _ Event = &EventPartialThinking{}

// EventThinkingDone closes a thinking block. Status is a short human readable
// summary such as "Thought for 4 seconds".
type EventThinkingDone struct {
	EventImpl

	DurationSeconds float64 `json:"duration_seconds"`
	Status          string  `json:"status,omitempty"`
}

func NewThinkingDoneEvent(metadata EventMetadata, durationSeconds float64, status string) *EventThinkingDone {
	return &EventThinkingDone{
		EventImpl: EventImpl{
			Type_:     EventTypeThinkingDone,
			Metadata_: metadata,
		},
		DurationSeconds: durationSeconds,
		Status:          status,
	}
}

var _ Event = &EventThinkingDone{}

type EventToolCall struct {
	EventImpl

	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCall {
	return &EventToolCall{
		EventImpl: EventImpl{
			Type_:     EventTypeToolCall,
			Metadata_: metadata,
		},
		ToolCall: toolCall,
	}
}

var _ Event = &EventToolCall{}

type EventToolResult struct {
	EventImpl

	ToolResult ToolResult `json:"tool_result"`
}

func NewToolResultEvent(metadata EventMetadata, toolResult ToolResult) *EventToolResult {
	return &EventToolResult{
		EventImpl: EventImpl{
			Type_:     EventTypeToolResult,
			Metadata_: metadata,
		},
		ToolResult: toolResult,
	}
}

var _ Event = &EventToolResult{}

type EventMessagesAdded struct {
	EventImpl

	MessageIDs []string `json:"message_ids"`
}

func NewMessagesAddedEvent(metadata EventMetadata, messageIDs []string) *EventMessagesAdded {
	return &EventMessagesAdded{
		EventImpl: EventImpl{
			Type_:     EventTypeMessagesAdded,
			Metadata_: metadata,
		},
		MessageIDs: messageIDs,
	}
}

var _ Event = &EventMessagesAdded{}

// EventStatus reports a lifecycle transition of the request, for example
// "streaming" or "tool-pending".
type EventStatus struct {
	EventImpl

	Status string `json:"status"`
}

func NewStatusEvent(metadata EventMetadata, status string) *EventStatus {
	return &EventStatus{
		EventImpl: EventImpl{
			Type_:     EventTypeStatus,
			Metadata_: metadata,
		},
		Status: status,
	}
}

var _ Event = &EventStatus{}

// EventFinal carries the full assistant text of a completed request.
type EventFinal struct {
	EventImpl

	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{
			Type_:     EventTypeFinal,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventFinal{}

type EventError struct {
	EventImpl

	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl: EventImpl{
			Type_:     EventTypeError,
			Metadata_: metadata,
		},
		ErrorString: err.Error(),
	}
}

func (e *EventError) Error() string {
	return e.ErrorString
}

var _ Event = &EventError{}

type EventUnrecognized struct {
	EventImpl

	// WireType is the discriminator value the provider sent, or "" when
	// the payload had none.
	WireType string          `json:"wire_type,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

func NewUnrecognizedEvent(metadata EventMetadata, wireType string, raw json.RawMessage) *EventUnrecognized {
	return &EventUnrecognized{
		EventImpl: EventImpl{
			Type_:     EventTypeUnrecognized,
			Metadata_: metadata,
		},
		WireType: wireType,
		Raw:      raw,
	}
}

var _ Event = &EventUnrecognized{}

// NewEventFromJson decodes a serialized event back into its concrete type.
// Events of an unknown type are returned as a plain *EventImpl so that
// subscribers can still inspect type and metadata.
func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, errors.Wrap(err, "could not unmarshal event")
	}
	e.payload = b

	switch e.Type_ {
	case EventTypePartial:
		ret, ok := ToTypedEvent[EventPartial](e)
		if !ok {
			return nil, errors.Errorf("could not decode %s event", e.Type_)
		}
		ret.payload = b
		return ret, nil
	case EventTypeThinkingStart:
		ret, ok := ToTypedEvent[EventThinkingStart](e)
		if !ok {
			return nil, errors.Errorf("could not decode %s event", e.Type_)
		}
		ret.payload = b
		return ret, nil
	case EventTypePartialThinking:
		ret, ok := ToTypedEvent[EventPartialThinking](e)
		if !ok {
			return nil, errors.Errorf("could not decode %s event", e.Type_)
		}
		ret.payload = b
		return ret, nil
	case EventTypeThinkingDone:
		ret, ok := ToTypedEvent[EventThinkingDone](e)
		if !ok {
			return nil, errors.Errorf("could not decode %s event", e.Type_)
		}
		ret.payload = b
		return ret, nil
	case EventTypeToolCall:
		ret, ok := ToTypedEvent[EventToolCall](e)
		if !ok {
			return nil, errors.Errorf("could not decode %s event", e.Type_)
		}
		ret.payload = b
		return ret, nil
	case EventTypeToolResult:
		ret, ok := ToTypedEvent[EventToolResult](e)
		if !ok {
			return nil, errors.Errorf("could not decode %s event", e.Type_)
		}
		ret.payload = b
		return ret, nil
	case EventTypeMessagesAdded:
		ret, ok := ToTypedEvent[EventMessagesAdded](e)
		if !ok {
			return nil, errors.Errorf("could not decode %s event", e.Type_)
		}
		ret.payload = b
		return ret, nil
	case EventTypeStatus:
		ret, ok := ToTypedEvent[EventStatus](e)
		if !ok {
			return nil, errors.Errorf("could not decode %s event", e.Type_)
		}
		ret.payload = b
		return ret, nil
	case EventTypeFinal:
		ret, ok := ToTypedEvent[EventFinal](e)
		if !ok {
			return nil, errors.Errorf("could not decode %s event", e.Type_)
		}
		ret.payload = b
		return ret, nil
	case EventTypeError:
		ret, ok := ToTypedEvent[EventError](e)
		if !ok {
			return nil, errors.Errorf("could not decode %s event", e.Type_)
		}
		ret.payload = b
		return ret, nil
	case EventTypeUnrecognized:
		ret, ok := ToTypedEvent[EventUnrecognized](e)
		if !ok {
			return nil, errors.Errorf("could not decode %s event", e.Type_)
		}
		ret.payload = b
		return ret, nil
	}

	return e, nil
}

// ToTypedEvent decodes the raw payload of a previously unmarshalled event
// into a concrete event type.
func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil {
		return nil, false
	}

	return ret, true
}
