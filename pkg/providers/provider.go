// Package providers defines the contract between the request orchestrator
// and the model backends. A Provider turns one conversation snapshot into a
// streamed model response, emitting canonical events as the stream arrives.
//
// Providers are stateless across calls. All per-request state, including the
// assembly of tool call arguments that arrive fragmented over several wire
// events, lives inside a single Stream call, which itself runs inside the
// request's single writer task.
package providers

import (
	"context"

	"github.com/go-go-golems/loom/pkg/conversation"
	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/inference/tools"
)

// Request is one inference call: a conversation snapshot plus sampling
// parameters. Messages are read only; the orchestrator owns the conversation.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     conversation.Thread

	// Tools the model may call this request. Nil disables tool use.
	Tools []*tools.Definition

	MaxTokens     int
	Temperature   *float64
	TopP          *float64
	StopSequences []string

	// Metadata is stamped onto every event emitted for this request.
	Metadata events.EventMetadata
}

// Emit delivers one canonical event to the orchestrator. Implementations
// must not block; the orchestrator hands providers a buffered, non-blocking
// sink so a slow subscriber can never stall the network read.
type Emit func(ev events.Event)

// StreamResult is what a cleanly finished stream produced. ToolCalls being
// non-empty means the model paused for a tool round trip and expects a
// continuation call once results are appended to the conversation.
type StreamResult struct {
	// Text is the assistant text accumulated over the whole stream.
	Text string
	// ToolCalls are the completed tool invocations the model requested,
	// in the order the provider finished assembling them.
	ToolCalls []events.ToolCall
	// StopReason is the provider's stated reason for ending the stream,
	// normalized to the provider's own vocabulary ("end_turn",
	// "tool_calls", ...). Empty when the provider never reported one.
	StopReason string
	Usage      *events.Usage
}

// Provider streams model responses for one backend.
type Provider interface {
	// Name returns the provider slug used in configuration, logs and the
	// classifier registry.
	Name() string

	// Stream performs one inference call. It blocks until the stream
	// ends, emitting partial events along the way, and returns the
	// assembled result. Cancelling ctx aborts the network read; the
	// returned error is then ctx.Err(). A non-nil error means the stream
	// did not finish cleanly and the result is nil.
	Stream(ctx context.Context, req *Request, emit Emit) (*StreamResult, error)
}
