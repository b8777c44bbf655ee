package events

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Usage is the token usage a provider reported for a single request.
type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
}

// EventMetadata ties an event to the request that produced it. ID is unique
// per event, RequestID is shared by every event of one inference request.
type EventMetadata struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	RequestID uuid.UUID `json:"request_id" yaml:"request_id"`
	ChatID    string    `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`
	Model     string    `json:"model,omitempty" yaml:"model,omitempty"`

	StopReason *string `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	Usage      *Usage  `json:"usage,omitempty" yaml:"usage,omitempty"`

	// Extra carries provider specific fields that have no canonical slot.
	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	if em.ID != uuid.Nil {
		e.Str("event_id", em.ID.String())
	}
	if em.RequestID != uuid.Nil {
		e.Str("request_id", em.RequestID.String())
	}
	if em.ChatID != "" {
		e.Str("chat_id", em.ChatID)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.StopReason != nil {
		e.Str("stop_reason", *em.StopReason)
	}
	if em.Usage != nil {
		e.Int("input_tokens", em.Usage.InputTokens)
		e.Int("output_tokens", em.Usage.OutputTokens)
	}
	for k, v := range em.Extra {
		e.Interface(k, v)
	}
}
