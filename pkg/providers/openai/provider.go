// Package openai streams chat completions from the OpenAI API and
// compatible endpoints. Tool calls arrive fragmented across stream chunks
// and are merged by index before being reported, which only completes when
// the stream ends.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/loom/pkg/conversation"
	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/providers"
	"github.com/go-go-golems/loom/pkg/wire"
)

type Provider struct {
	client *Client
}

func New(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string {
	return Name
}

// usageChunk extracts token usage from the final stream chunk when the
// endpoint reports it.
type usageChunk struct {
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *Provider) Stream(ctx context.Context, req *providers.Request, emit providers.Emit) (*providers.StreamResult, error) {
	apiReq, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	logger := log.With().
		Str("provider", Name).
		Str("model", req.Model).
		Str("request_id", req.Metadata.RequestID.String()).
		Logger()
	logger.Debug().
		Int("num_messages", len(apiReq.Messages)).
		Int("num_tools", len(apiReq.Tools)).
		Msg("opening openai stream")

	body, err := p.client.StreamChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = body.Close()
	}()

	merger := newToolCallMerger()
	text := ""
	stopReason := ""
	var usage *events.Usage

	parser := wire.NewParser(Dialect, func(eventType string, payload json.RawMessage) (wire.Action, error) {
		classified := Classify(req.Metadata, eventType, payload)
		switch ev := classified.(type) {
		case *events.EventError:
			return wire.Continue, errors.New(ev.ErrorString)
		case *events.EventPartial:
			text += ev.Delta
			ev.Completion = text
			emit(ev)
		}

		var chunk go_openai.ChatCompletionStreamResponse
		if err := json.Unmarshal(payload, &chunk); err == nil && len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			merger.add(choice.Delta.ToolCalls)
			if choice.FinishReason != "" {
				stopReason = string(choice.FinishReason)
			}
		}
		var uc usageChunk
		if err := json.Unmarshal(payload, &uc); err == nil && uc.Usage != nil {
			usage = &events.Usage{
				InputTokens:  uc.Usage.PromptTokens,
				OutputTokens: uc.Usage.CompletionTokens,
			}
		}

		return wire.Continue, nil
	}, wire.WithLogger(logger))

	if err := parser.Run(ctx, body); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	// tool calls finish assembling only once the stream is done
	toolCalls := merger.toolCalls()
	for _, call := range toolCalls {
		emit(events.NewToolCallEvent(req.Metadata, call))
	}

	result := &providers.StreamResult{
		Text:       text,
		ToolCalls:  toolCalls,
		StopReason: stopReason,
		Usage:      usage,
	}
	logger.Debug().
		Str("stop_reason", result.StopReason).
		Int("num_tool_calls", len(result.ToolCalls)).
		Msg("openai stream finished")
	return result, nil
}

func (p *Provider) buildRequest(req *providers.Request) (*go_openai.ChatCompletionRequest, error) {
	messages, err := messagesFromThread(req.SystemPrompt, req.Messages)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, errors.New("cannot run inference on an empty conversation")
	}

	apiReq := &go_openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		Stop:      req.StopSequences,
	}
	if req.Temperature != nil {
		apiReq.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		apiReq.TopP = float32(*req.TopP)
	}

	for _, def := range req.Tools {
		schema, err := def.SchemaJSON()
		if err != nil {
			return nil, errors.Wrapf(err, "could not render schema for tool %s", def.Name)
		}
		apiReq.Tools = append(apiReq.Tools, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  schema,
			},
		})
	}

	return apiReq, nil
}

// messagesFromThread converts the conversation to chat completion messages.
// Tool use turns fold into the preceding assistant message's tool_calls so
// that tool messages follow the assistant message that requested them, as
// the API requires.
func messagesFromThread(systemPrompt string, thread conversation.Thread) ([]go_openai.ChatCompletionMessage, error) {
	var msgs []go_openai.ChatCompletionMessage
	if systemPrompt != "" {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, msg := range thread {
		switch content := msg.Content.(type) {
		case *conversation.ChatMessageContent:
			role := roleFor(content.Role)
			if len(content.Images) == 0 {
				msgs = append(msgs, go_openai.ChatCompletionMessage{
					Role:    role,
					Content: content.Text,
				})
				continue
			}
			parts := []go_openai.ChatMessagePart{}
			if content.Text != "" {
				parts = append(parts, go_openai.ChatMessagePart{
					Type: go_openai.ChatMessagePartTypeText,
					Text: content.Text,
				})
			}
			for _, img := range content.Images {
				url := img.ImageURL
				if url == "" && len(img.ImageContent) > 0 {
					url = fmt.Sprintf("data:%s;base64,%s",
						img.MediaType, base64.StdEncoding.EncodeToString(img.ImageContent))
				}
				if url == "" {
					continue
				}
				parts = append(parts, go_openai.ChatMessagePart{
					Type: go_openai.ChatMessagePartTypeImageURL,
					ImageURL: &go_openai.ChatMessageImageURL{
						URL:    url,
						Detail: go_openai.ImageURLDetail(img.Detail),
					},
				})
			}
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:         role,
				MultiContent: parts,
			})

		case *conversation.ToolUseContent:
			call := go_openai.ToolCall{
				ID:   content.CallID,
				Type: go_openai.ToolTypeFunction,
				Function: go_openai.FunctionCall{
					Name:      content.ToolID,
					Arguments: string(content.Input),
				},
			}
			if len(msgs) > 0 && msgs[len(msgs)-1].Role == go_openai.ChatMessageRoleAssistant {
				last := &msgs[len(msgs)-1]
				last.ToolCalls = append(last.ToolCalls, call)
				continue
			}
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:      go_openai.ChatMessageRoleAssistant,
				ToolCalls: []go_openai.ToolCall{call},
			})

		case *conversation.ToolResultContent:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:       go_openai.ChatMessageRoleTool,
				Content:    content.Result,
				ToolCallID: content.CallID,
			})

		default:
			return nil, errors.Errorf("unsupported message content type %s", msg.Content.ContentType())
		}
	}

	return msgs, nil
}

func roleFor(role conversation.Role) string {
	switch role {
	case conversation.RoleSystem:
		return go_openai.ChatMessageRoleSystem
	case conversation.RoleAssistant:
		return go_openai.ChatMessageRoleAssistant
	case conversation.RoleTool:
		return go_openai.ChatMessageRoleTool
	default:
		return go_openai.ChatMessageRoleUser
	}
}

var _ providers.Provider = (*Provider)(nil)
