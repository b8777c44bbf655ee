package anthropic

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Streaming event types of the Messages API.
const (
	PingType              = "ping"
	MessageStartType      = "message_start"
	ContentBlockStartType = "content_block_start"
	ContentBlockDeltaType = "content_block_delta"
	ContentBlockStopType  = "content_block_stop"
	MessageDeltaType      = "message_delta"
	MessageStopType       = "message_stop"
	ErrorType             = "error"
)

// Delta types carried by content_block_delta events.
const (
	TextDeltaType      = "text_delta"
	InputJSONDeltaType = "input_json_delta"
	ThinkingDeltaType  = "thinking_delta"
	SignatureDeltaType = "signature_delta"
)

// Content block types.
const (
	ContentTypeText       = "text"
	ContentTypeImage      = "image"
	ContentTypeThinking   = "thinking"
	ContentTypeToolUse    = "tool_use"
	ContentTypeToolResult = "tool_result"
)

// MessageRequest is the Messages API request payload.
type MessageRequest struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	MaxTokens     int             `json:"max_tokens"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream"`
	System        string          `json:"system,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	Thinking      *ThinkingConfig `json:"thinking,omitempty"`
}

// Tool describes one callable tool to the model.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ThinkingConfig enables extended thinking blocks in the response.
type ThinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// Message is a single conversation turn. Content is always sent as an array
// of blocks, never as a bare string.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is the union of all block shapes the Messages API sends and
// receives. Which fields are set depends on Type.
type ContentBlock struct {
	Type string `json:"type"`

	// text blocks
	Text string `json:"text,omitempty"`

	// thinking blocks
	Thinking string `json:"thinking,omitempty"`

	// tool_use blocks
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result blocks
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	// image blocks
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource is an inline base64 image or a URL reference.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

func NewToolUseBlock(id string, name string, input json.RawMessage) ContentBlock {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return ContentBlock{Type: ContentTypeToolUse, ID: id, Name: name, Input: input}
}

func NewToolResultBlock(toolUseID string, content string, isError bool) ContentBlock {
	return ContentBlock{Type: ContentTypeToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

func NewImageBlock(mediaType string, base64Data string) ContentBlock {
	return ContentBlock{
		Type: ContentTypeImage,
		Source: &ImageSource{
			Type:      "base64",
			MediaType: mediaType,
			Data:      base64Data,
		},
	}
}

func NewImageURLBlock(url string) ContentBlock {
	return ContentBlock{
		Type:   ContentTypeImage,
		Source: &ImageSource{Type: "url", URL: url},
	}
}

// MessageResponse is the non-streaming response shape; message_start events
// carry it with empty content.
type MessageResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   string         `json:"stop_reason,omitempty"`
	StopSequence string         `json:"stop_sequence,omitempty"`
	Usage        *Usage         `json:"usage,omitempty"`
}

// Usage is the token accounting attached to message_start and message_delta.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// APIError is the error object inside error events and error responses.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorResponse is the body of a non-200 response.
type ErrorResponse struct {
	Type  string   `json:"type"`
	Error APIError `json:"error"`
}

// StreamingEvent is the decoded form of one SSE payload.
type StreamingEvent struct {
	Type         string           `json:"type"`
	Message      *MessageResponse `json:"message,omitempty"`
	Index        int              `json:"index,omitempty"`
	ContentBlock *ContentBlock    `json:"content_block,omitempty"`
	Delta        *Delta           `json:"delta,omitempty"`
	Usage        *Usage           `json:"usage,omitempty"`
	Error        *APIError        `json:"error,omitempty"`
}

// Delta carries the incremental part of a content_block_delta, or the
// stop fields of a message_delta.
type Delta struct {
	Type         string `json:"type"`
	Text         string `json:"text,omitempty"`
	PartialJSON  string `json:"partial_json,omitempty"`
	Thinking     string `json:"thinking,omitempty"`
	Signature    string `json:"signature,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
	StopSequence string `json:"stop_sequence,omitempty"`
}

func (s StreamingEvent) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", s.Type)
	if s.Index != 0 {
		e.Int("index", s.Index)
	}
	if s.ContentBlock != nil {
		e.Str("block_type", s.ContentBlock.Type)
	}
	if s.Delta != nil {
		e.Object("delta", s.Delta)
	}
	if s.Error != nil {
		e.Str("error_type", s.Error.Type).Str("error_message", s.Error.Message)
	}
}

func (d Delta) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", d.Type)
	if d.Text != "" {
		e.Str("text", d.Text)
	}
	if d.PartialJSON != "" {
		e.Str("partial_json", d.PartialJSON)
	}
	if d.StopReason != "" {
		e.Str("stop_reason", d.StopReason)
	}
}

var (
	_ zerolog.LogObjectMarshaler = StreamingEvent{}
	_ zerolog.LogObjectMarshaler = Delta{}
)
