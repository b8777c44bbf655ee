// Package orchestrator drives one conversational turn from dispatch to
// completion: it opens the provider stream, reacts to canonical events,
// pauses for tool execution, resumes with the tool results appended to the
// conversation, and reports exactly one terminal outcome per request.
package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/loom/pkg/conversation"
	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/inference/tools"
	"github.com/go-go-golems/loom/pkg/providers"
	"github.com/go-go-golems/loom/pkg/tokens"
)

// Orchestrator runs requests against one provider and one conversation.
// Every request gets its own single-writer goroutine: only that goroutine
// appends to the request's buffers and persists the messages it produces.
type Orchestrator struct {
	provider providers.Provider
	manager  conversation.Manager

	model         string
	maxTokens     int
	temperature   *float64
	topP          *float64
	stopSequences []string

	toolRegistry tools.Registry
	toolExecutor tools.Executor
	toolConfig   tools.Config

	sinks       []events.EventSink
	registry    *Registry
	tokenBudget int
	logger      zerolog.Logger
}

type Option func(*Orchestrator)

func WithModel(model string) Option {
	return func(o *Orchestrator) { o.model = model }
}

func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) { o.maxTokens = n }
}

func WithTemperature(t float64) Option {
	return func(o *Orchestrator) { o.temperature = &t }
}

func WithTopP(p float64) Option {
	return func(o *Orchestrator) { o.topP = &p }
}

func WithStopSequences(stop []string) Option {
	return func(o *Orchestrator) { o.stopSequences = stop }
}

// WithTools enables tool use. The registry supplies the definitions offered
// to the model, the executor runs the calls the model makes.
func WithTools(registry tools.Registry, executor tools.Executor) Option {
	return func(o *Orchestrator) {
		o.toolRegistry = registry
		o.toolExecutor = executor
	}
}

func WithToolConfig(cfg tools.Config) Option {
	return func(o *Orchestrator) { o.toolConfig = cfg }
}

func WithSinks(sinks ...events.EventSink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, sinks...) }
}

// WithRegistry shares an in-flight registry across orchestrators so one
// cancel surface covers every chat.
func WithRegistry(registry *Registry) Option {
	return func(o *Orchestrator) { o.registry = registry }
}

// WithTokenBudget trims the flattened context to at most n tokens before
// each provider call. Zero disables trimming.
func WithTokenBudget(n int) Option {
	return func(o *Orchestrator) { o.tokenBudget = n }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func New(provider providers.Provider, manager conversation.Manager, options ...Option) *Orchestrator {
	ret := &Orchestrator{
		provider:   provider,
		manager:    manager,
		toolConfig: tools.DefaultConfig(),
		logger:     zerolog.Nop(),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.registry == nil {
		ret.registry = NewRegistry()
	}
	return ret
}

// Registry returns the in-flight registry requests are tracked in.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Start dispatches one turn and returns its handle. The caller is expected
// to have appended the user message to the conversation already.
func (o *Orchestrator) Start(ctx context.Context) (*Handle, error) {
	if o.provider == nil {
		return nil, errors.New("orchestrator has no provider")
	}
	if o.manager == nil {
		return nil, errors.New("orchestrator has no conversation manager")
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := newHandle(uuid.New(), o.manager.ChatID(), cancel)
	o.registry.register(h)

	o.logger.Debug().
		Str("request_id", h.RequestID.String()).
		Str("chat_id", h.ChatID).
		Str("provider", o.provider.Name()).
		Str("model", o.model).
		Msg("starting request")

	go func() {
		defer cancel()
		o.run(runCtx, h)
	}()

	return h, nil
}

// Run dispatches one turn and blocks until it finishes.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	h, err := o.Start(ctx)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}

func (o *Orchestrator) metadata(h *Handle) events.EventMetadata {
	return events.EventMetadata{
		ID:        uuid.New(),
		RequestID: h.RequestID,
		ChatID:    h.ChatID,
		Model:     o.model,
	}
}

// run is the single-writer task of one request. Nothing else touches the
// request's buffers or persists messages on its behalf.
func (o *Orchestrator) run(ctx context.Context, h *Handle) {
	// deferred in reverse order: drain the emitter, drop the registry
	// entry, then release waiters, so Wait returns only after every event
	// reached the sinks and the request left the in-flight registry.
	defer h.markDone()
	defer o.registry.remove(h.RequestID)

	em := newEmitter(o.sinks, o.logger)
	defer em.close()

	var textBuf, thinkingBuf strings.Builder

	// emit mirrors partial deltas into the request buffers and drops
	// everything once the request is terminal. It only ever runs on this
	// goroutine: providers call it synchronously from inside Stream.
	emit := func(ev events.Event) {
		if h.State().IsTerminal() {
			return
		}
		switch e := ev.(type) {
		case *events.EventPartial:
			textBuf.WriteString(e.Delta)
		case *events.EventPartialThinking:
			thinkingBuf.WriteString(e.Delta)
		}
		em.emit(ev)
	}

	h.transition(StateStreaming)
	emit(events.NewStatusEvent(o.metadata(h), StateStreaming.String()))

	maxIterations := o.toolConfig.MaxIterations
	if maxIterations <= 0 {
		maxIterations = tools.DefaultConfig().MaxIterations
	}

	for iteration := 0; ; iteration++ {
		if iteration >= maxIterations {
			o.fail(h, em, errors.Errorf("max tool iterations (%d) reached", maxIterations))
			return
		}

		req := o.buildRequest(h)
		textBuf.Reset()

		result, err := o.provider.Stream(ctx, req, emit)
		if err != nil {
			if ctx.Err() != nil {
				o.finishInterrupted(h, em, textBuf.String(), thinkingBuf.String())
				return
			}
			o.fail(h, em, err)
			return
		}

		if len(result.ToolCalls) == 0 {
			o.complete(h, em, result, thinkingBuf.String())
			return
		}

		// The model paused for tools. Persist what it said so far plus
		// the tool-use records, then execute and resume.
		var added []string
		var msgs []*conversation.Message
		if result.Text != "" {
			msgs = append(msgs, conversation.NewChatMessage(conversation.RoleAssistant, result.Text, conversation.WithModel(o.model)))
		}
		for _, call := range result.ToolCalls {
			msgs = append(msgs, conversation.NewToolUseMessage(call.CallID, call.ToolID, call.Parameters))
		}
		for _, msg := range msgs {
			added = append(added, msg.ID.String())
		}
		o.manager.AppendMessages(msgs...)
		emit(events.NewMessagesAddedEvent(o.metadata(h), added))
		textBuf.Reset()

		h.transition(StateToolPending)
		emit(events.NewStatusEvent(o.metadata(h), StateToolPending.String()))

		results, err := o.executeTools(ctx, h, em, result.ToolCalls)
		if err != nil {
			if ctx.Err() != nil {
				o.finishInterrupted(h, em, "", thinkingBuf.String())
				return
			}
			o.fail(h, em, err)
			return
		}

		added = nil
		msgs = nil
		for i, r := range results {
			call := result.ToolCalls[i]
			msg := conversation.NewToolResultMessage(call.CallID, call.ToolID, r.Text(), r.IsError())
			msgs = append(msgs, msg)
			added = append(added, msg.ID.String())
			emit(events.NewToolResultEvent(o.metadata(h), events.ToolResult{
				CallID:  call.CallID,
				ToolID:  call.ToolID,
				Result:  r.Text(),
				IsError: r.IsError(),
			}))
		}
		o.manager.AppendMessages(msgs...)
		emit(events.NewMessagesAddedEvent(o.metadata(h), added))

		h.transition(StateStreaming)
		emit(events.NewStatusEvent(o.metadata(h), StateStreaming.String()))
	}
}

func (o *Orchestrator) buildRequest(h *Handle) *providers.Request {
	thread := o.manager.Flatten()
	if o.tokenBudget > 0 {
		counter, err := tokens.NewCounter(o.model)
		if err == nil {
			trimmed, trimErr := counter.TrimToBudget(thread, o.tokenBudget)
			if trimErr == nil {
				thread = trimmed
			} else {
				o.logger.Warn().Err(trimErr).Msg("could not trim context to token budget")
			}
		} else {
			o.logger.Warn().Err(err).Str("model", o.model).Msg("could not build token counter")
		}
	}

	return &providers.Request{
		Model:         o.model,
		SystemPrompt:  o.manager.SystemPrompt(),
		Messages:      thread,
		Tools:         o.offeredTools(),
		MaxTokens:     o.maxTokens,
		Temperature:   o.temperature,
		TopP:          o.topP,
		StopSequences: o.stopSequences,
		Metadata:      o.metadata(h),
	}
}

// offeredTools is the policy-filtered tool list handed to the provider. The
// executor checks the policy again at call time; filtering here just keeps
// denied tools out of the model's sight.
func (o *Orchestrator) offeredTools() []*tools.Definition {
	if o.toolRegistry == nil || o.toolExecutor == nil || !o.toolConfig.Enabled {
		return nil
	}
	var defs []*tools.Definition
	for _, def := range o.toolRegistry.List() {
		if o.toolConfig.Policy.IsAllowed(def.Name) {
			defs = append(defs, def)
		}
	}
	return defs
}

func (o *Orchestrator) executeTools(ctx context.Context, h *Handle, em *emitter, toolCalls []events.ToolCall) ([]*tools.Result, error) {
	calls := make([]tools.Call, 0, len(toolCalls))
	for _, tc := range toolCalls {
		calls = append(calls, tools.Call{
			ID:        tc.CallID,
			Name:      tc.ToolID,
			Arguments: json.RawMessage(tc.Parameters),
		})
	}

	// tools publish progress through the context; those events may arrive
	// from executor goroutines, so they go straight to the emitter and
	// never touch the request buffers.
	ctx = events.WithEventSinks(ctx, events.SinkFunc(func(e events.Event) error {
		if h.State().IsTerminal() {
			return nil
		}
		em.emit(e)
		return nil
	}))

	return o.toolExecutor.ExecuteToolCalls(ctx, calls, o.toolRegistry)
}

// complete handles a cleanly finished stream with no pending tool calls.
func (o *Orchestrator) complete(h *Handle, em *emitter, streamResult *providers.StreamResult, thinking string) {
	md := o.metadata(h)
	if streamResult.StopReason != "" {
		md.StopReason = &streamResult.StopReason
	}
	md.Usage = streamResult.Usage

	result := &Result{
		Text:       streamResult.Text,
		Thinking:   thinking,
		StopReason: streamResult.StopReason,
		Usage:      streamResult.Usage,
	}

	if !h.finish(StateCompleted, result, nil) {
		return
	}

	if streamResult.Text != "" {
		msg := conversation.NewChatMessage(conversation.RoleAssistant, streamResult.Text, conversation.WithModel(o.model))
		o.manager.AppendMessages(msg)
		em.emit(events.NewMessagesAddedEvent(o.metadata(h), []string{msg.ID.String()}))
	}
	o.saveConversation(h)

	em.emit(events.NewFinalEvent(md, streamResult.Text))
}

// finishInterrupted resolves a context-cancelled request. A stop keeps the
// buffered text and completes; a cancel discards it and emits nothing more.
func (o *Orchestrator) finishInterrupted(h *Handle, em *emitter, buffered string, thinking string) {
	if h.stopRequested() == stopComplete {
		if !h.finish(StateCompleted, &Result{Text: buffered, Thinking: thinking}, nil) {
			return
		}
		if buffered != "" {
			msg := conversation.NewChatMessage(conversation.RoleAssistant, buffered, conversation.WithModel(o.model))
			o.manager.AppendMessages(msg)
			em.emit(events.NewMessagesAddedEvent(o.metadata(h), []string{msg.ID.String()}))
		}
		o.saveConversation(h)
		em.emit(events.NewFinalEvent(o.metadata(h), buffered))
		return
	}

	if h.finish(StateCancelled, nil, ErrCancelled) {
		o.logger.Debug().Str("request_id", h.RequestID.String()).Msg("request cancelled")
	}
}

// fail resolves a stream-fatal error. Messages already persisted stay; only
// the unsaved buffer is lost.
func (o *Orchestrator) fail(h *Handle, em *emitter, err error) {
	if !h.finish(StateFailed, nil, err) {
		return
	}
	o.logger.Warn().Err(err).Str("request_id", h.RequestID.String()).Msg("request failed")
	em.emit(events.NewErrorEvent(o.metadata(h), err))
}

func (o *Orchestrator) saveConversation(h *Handle) {
	if err := o.manager.Save(); err != nil {
		o.logger.Warn().Err(err).Str("chat_id", h.ChatID).Msg("could not save conversation")
	}
}
