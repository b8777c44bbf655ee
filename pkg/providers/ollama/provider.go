// Package ollama streams chat completions from a local ollama server over
// its native newline-delimited JSON chat endpoint. The endpoint speaks
// plain role and text messages, so requests carrying tools are rejected up
// front and non-text turns in the conversation are skipped.
package ollama

import (
	"context"
	"encoding/json"

	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

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

func (p *Provider) Stream(ctx context.Context, req *providers.Request, emit providers.Emit) (*providers.StreamResult, error) {
	apiReq, err := buildRequest(req)
	if err != nil {
		return nil, err
	}

	logger := log.With().
		Str("provider", Name).
		Str("model", req.Model).
		Str("request_id", req.Metadata.RequestID.String()).
		Logger()
	logger.Debug().Int("num_messages", len(apiReq.Messages)).Msg("opening ollama stream")

	body, err := p.client.StreamChat(ctx, apiReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = body.Close()
	}()

	text := ""
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

		var chunk chatChunk
		if err := json.Unmarshal(payload, &chunk); err == nil && chunk.Done {
			usage = &events.Usage{
				InputTokens:  chunk.PromptEvalCount,
				OutputTokens: chunk.EvalCount,
			}
			return wire.Stop, nil
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
		Text:       text,
		StopReason: "stop",
		Usage:      usage,
	}
	logger.Debug().Int("text_length", len(result.Text)).Msg("ollama stream finished")
	return result, nil
}

func buildRequest(req *providers.Request) (*api.ChatRequest, error) {
	if len(req.Tools) > 0 {
		return nil, errors.New("the ollama chat endpoint does not support tools")
	}

	messages := messagesFromThread(req.SystemPrompt, req.Messages)
	if len(messages) == 0 {
		return nil, errors.New("cannot run inference on an empty conversation")
	}

	options := map[string]interface{}{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		options["top_p"] = *req.TopP
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(req.StopSequences) > 0 {
		options["stop"] = req.StopSequences
	}

	stream := true
	return &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}, nil
}

func messagesFromThread(systemPrompt string, thread conversation.Thread) []api.Message {
	var msgs []api.Message
	if systemPrompt != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: systemPrompt})
	}

	for _, msg := range thread {
		switch content := msg.Content.(type) {
		case *conversation.ChatMessageContent:
			msgs = append(msgs, api.Message{
				Role:    string(content.Role),
				Content: content.Text,
			})
		}
	}
	return msgs
}

var _ providers.Provider = (*Provider)(nil)
