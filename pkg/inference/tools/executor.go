package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"
)

// Call is one tool invocation requested by the model.
type Call struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Result is the outcome of one call. A failed call is not an error return,
// it is a Result with Error set; the conversation continues and the model
// sees the failure. Executors only return a Go error when the whole batch
// has to stop.
type Result struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Value    interface{}   `json:"value,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Retries  int           `json:"retries,omitempty"`
}

func (r *Result) IsError() bool {
	return r != nil && r.Error != ""
}

// Text renders the result the way it is fed back to the model.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	if r.Error != "" {
		return r.Error
	}
	switch v := r.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// Executor runs tool calls against a registry.
type Executor interface {
	ExecuteToolCall(ctx context.Context, call Call, registry Registry) *Result
	ExecuteToolCalls(ctx context.Context, calls []Call, registry Registry) ([]*Result, error)
}

// DefaultExecutor validates arguments against the tool's schema, enforces
// the policy, applies per-call timeouts and retries, and runs batches with
// bounded parallelism.
type DefaultExecutor struct {
	config Config
}

var _ Executor = (*DefaultExecutor)(nil)

func NewDefaultExecutor(config Config) *DefaultExecutor {
	return &DefaultExecutor{config: config}
}

func (e *DefaultExecutor) ExecuteToolCall(ctx context.Context, call Call, registry Registry) *Result {
	start := time.Now()
	result := &Result{ID: call.ID, Name: call.Name}

	defer func() {
		result.Duration = time.Since(start)
	}()

	def, err := registry.Get(call.Name)
	if err != nil {
		result.Error = fmt.Sprintf("tool not found: %s", call.Name)
		return result
	}
	if !e.config.Policy.IsAllowed(call.Name) {
		result.Error = fmt.Sprintf("tool not allowed: %s", call.Name)
		return result
	}

	if err := e.validateArguments(def, call.Arguments); err != nil {
		result.Error = err.Error()
		return result
	}

	value, retries, err := e.callWithRetry(ctx, def, call)
	result.Retries = retries
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Value = value
	return result
}

// ExecuteToolCalls runs a batch, in order on the result slice regardless of
// scheduling. The returned error is non-nil only when ErrorAbort stops the
// batch or the context is cancelled.
func (e *DefaultExecutor) ExecuteToolCalls(ctx context.Context, calls []Call, registry Registry) ([]*Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	results := make([]*Result, len(calls))

	maxParallel := e.config.MaxParallel
	if maxParallel <= 1 || len(calls) == 1 {
		for i, call := range calls {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			results[i] = e.ExecuteToolCall(ctx, call, registry)
			if results[i].IsError() && e.config.ErrorHandling == ErrorAbort {
				return results, errors.Errorf("tool %s failed: %s", call.Name, results[i].Error)
			}
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = e.ExecuteToolCall(gctx, call, registry)
			if results[i].IsError() && e.config.ErrorHandling == ErrorAbort {
				return errors.Errorf("tool %s failed: %s", call.Name, results[i].Error)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// validateArguments checks the call arguments against the tool's parameter
// schema so functions never see malformed input.
func (e *DefaultExecutor) validateArguments(def *Definition, args json.RawMessage) error {
	schemaJSON, err := def.SchemaJSON()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(args)

	validation, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.Wrapf(err, "could not validate arguments for tool %s", def.Name)
	}
	if !validation.Valid() {
		msg := fmt.Sprintf("invalid arguments for tool %s:", def.Name)
		for _, desc := range validation.Errors() {
			msg += "\n- " + desc.String()
		}
		return errors.New(msg)
	}
	return nil
}

func (e *DefaultExecutor) callWithRetry(ctx context.Context, def *Definition, call Call) (interface{}, int, error) {
	var lastErr error
	retries := 0

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			backoff := e.backoff(attempt - 1)
			log.Debug().
				Str("tool", call.Name).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying tool call")
			select {
			case <-ctx.Done():
				return nil, retries, errors.Wrap(ctx.Err(), "cancelled during retry backoff")
			case <-time.After(backoff):
			}
			retries++
		}

		value, err := e.callOnce(ctx, def, call)
		if err == nil {
			return value, retries, nil
		}
		lastErr = err

		if e.config.ErrorHandling != ErrorRetry || attempt >= e.config.Retry.MaxRetries {
			return nil, retries, lastErr
		}
	}
}

func (e *DefaultExecutor) callOnce(ctx context.Context, def *Definition, call Call) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ExecutionTimeout)
		defer cancel()
	}

	return def.Call(ctx, call.Arguments)
}

func (e *DefaultExecutor) backoff(attempt int) time.Duration {
	backoff := float64(e.config.Retry.BackoffBase)
	for i := 0; i < attempt; i++ {
		backoff *= e.config.Retry.BackoffFactor
	}
	return time.Duration(backoff)
}
