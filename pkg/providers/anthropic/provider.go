// Package anthropic streams chat completions from the Anthropic Messages
// API. Tool call arguments arrive fragmented over input_json_delta events
// and are reassembled per content block before a tool call is reported.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/loom/pkg/conversation"
	"github.com/go-go-golems/loom/pkg/providers"
	"github.com/go-go-golems/loom/pkg/wire"
)

// defaultMaxTokens applies when the request does not cap the response; the
// Messages API requires max_tokens to be set.
const defaultMaxTokens = 4096

type Provider struct {
	client         *Client
	thinkingBudget int
}

type Option func(*Provider)

// WithThinkingBudget enables extended thinking with the given token budget
// on every request.
func WithThinkingBudget(tokens int) Option {
	return func(p *Provider) {
		p.thinkingBudget = tokens
	}
}

func New(client *Client, options ...Option) *Provider {
	p := &Provider{client: client}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *Provider) Name() string {
	return Name
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
		Msg("opening anthropic stream")

	body, err := p.client.StreamMessage(ctx, apiReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = body.Close()
	}()

	merger := newBlockMerger(req.Metadata)
	parser := wire.NewParser(Dialect, func(eventType string, payload json.RawMessage) (wire.Action, error) {
		classified := Classify(req.Metadata, eventType, payload)
		out, err := merger.Absorb(payload, classified)
		if err != nil {
			return wire.Continue, err
		}
		for _, ev := range out {
			emit(ev)
		}
		return wire.Continue, nil
	}, wire.WithLogger(logger))

	if err := parser.Run(ctx, body); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	result := &providers.StreamResult{
		Text:       merger.text,
		ToolCalls:  merger.toolCalls,
		StopReason: merger.stopReason,
		Usage:      merger.usage,
	}
	logger.Debug().
		Str("stop_reason", result.StopReason).
		Int("num_tool_calls", len(result.ToolCalls)).
		Msg("anthropic stream finished")
	return result, nil
}

func (p *Provider) buildRequest(req *providers.Request) (*MessageRequest, error) {
	messages, system, err := messagesFromThread(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, errors.New("cannot run inference on an empty conversation")
	}
	if req.SystemPrompt != "" {
		if system == "" {
			system = req.SystemPrompt
		} else {
			system = req.SystemPrompt + "\n\n" + system
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	apiReq := &MessageRequest{
		Model:         req.Model,
		Messages:      messages,
		MaxTokens:     maxTokens,
		StopSequences: req.StopSequences,
		System:        system,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
	}

	for _, def := range req.Tools {
		schema, err := def.SchemaJSON()
		if err != nil {
			return nil, errors.Wrapf(err, "could not render schema for tool %s", def.Name)
		}
		apiReq.Tools = append(apiReq.Tools, Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		})
	}

	if p.thinkingBudget > 0 {
		apiReq.Thinking = &ThinkingConfig{Type: "enabled", BudgetTokens: p.thinkingBudget}
	}

	return apiReq, nil
}

// messagesFromThread converts the conversation to Messages API turns.
// System messages are folded into the system prompt. Consecutive same-role
// turns are merged into one multi-block message, which also puts
// tool_result blocks directly after the assistant turn that requested them,
// as the API requires.
func messagesFromThread(thread conversation.Thread) ([]Message, string, error) {
	var msgs []Message
	var system string

	appendBlocks := func(role string, blocks ...ContentBlock) {
		if len(msgs) > 0 && msgs[len(msgs)-1].Role == role {
			last := &msgs[len(msgs)-1]
			last.Content = append(last.Content, blocks...)
			return
		}
		msgs = append(msgs, Message{Role: role, Content: blocks})
	}

	for _, msg := range thread {
		switch content := msg.Content.(type) {
		case *conversation.ChatMessageContent:
			if content.Role == conversation.RoleSystem {
				if system != "" {
					system += "\n\n"
				}
				system += content.Text
				continue
			}
			role := string(content.Role)
			if role != "user" && role != "assistant" {
				role = "user"
			}
			var blocks []ContentBlock
			if content.Text != "" {
				blocks = append(blocks, NewTextBlock(content.Text))
			}
			for _, img := range content.Images {
				switch {
				case img.ImageURL != "":
					blocks = append(blocks, NewImageURLBlock(img.ImageURL))
				case len(img.ImageContent) > 0:
					blocks = append(blocks, NewImageBlock(
						img.MediaType,
						base64.StdEncoding.EncodeToString(img.ImageContent),
					))
				}
			}
			if len(blocks) == 0 {
				continue
			}
			appendBlocks(role, blocks...)

		case *conversation.ToolUseContent:
			appendBlocks("assistant", NewToolUseBlock(content.CallID, content.ToolID, content.Input))

		case *conversation.ToolResultContent:
			appendBlocks("user", NewToolResultBlock(content.CallID, content.Result, content.IsError))

		default:
			return nil, "", errors.Errorf("unsupported message content type %s", msg.Content.ContentType())
		}
	}

	return msgs, system, nil
}

var _ providers.Provider = (*Provider)(nil)
