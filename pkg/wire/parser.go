package wire

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	dataPrefix       = "data:"
	keepalivePrefix  = ":"
	emptyObjectToken = "{}"
)

// Action tells the parser what to do after an event has been handled.
type Action int

const (
	// Continue keeps reading the stream.
	Continue Action = iota
	// Stop treats the stream as cleanly finished; remaining bytes are not read.
	Stop
)

// EventHandler receives one decoded payload. eventType is the string value of
// the dialect's EventTypeField, or "" when the dialect has none or the field
// is absent or not a string. Returning an error aborts the stream with that
// error; returning Stop ends it cleanly.
type EventHandler func(eventType string, payload json.RawMessage) (Action, error)

// ParseErrorHandler is invoked for payload lines that fail to decode. A
// malformed line never aborts the stream.
type ParseErrorHandler func(raw string, err error)

// DoneHandler is invoked exactly once when the stream ends cleanly, whether
// through the dialect's done marker, a Stop action, or plain EOF.
type DoneHandler func()

// Parser turns a line-oriented byte stream into a sequence of JSON payloads
// according to a Dialect. A Parser is single use: create one per stream.
type Parser struct {
	dialect      Dialect
	onEvent      EventHandler
	onParseError ParseErrorHandler
	onDone       DoneHandler
	logger       zerolog.Logger

	doneFired  bool
	eventCount int
}

type ParserOption func(*Parser)

// WithParseErrorHandler registers a callback for malformed payload lines.
func WithParseErrorHandler(h ParseErrorHandler) ParserOption {
	return func(p *Parser) {
		p.onParseError = h
	}
}

// WithDoneHandler registers the end-of-stream callback.
func WithDoneHandler(h DoneHandler) ParserOption {
	return func(p *Parser) {
		p.onDone = h
	}
}

// WithLogger overrides the parser's logger.
func WithLogger(logger zerolog.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = logger
	}
}

func NewParser(dialect Dialect, onEvent EventHandler, opts ...ParserOption) *Parser {
	p := &Parser{
		dialect: dialect,
		onEvent: onEvent,
		logger:  log.With().Str("dialect", dialect.Name).Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reads r line by line until the stream finishes. It returns nil on a
// clean end of stream (done marker, Stop action, or EOF) and an error when
// the handler aborts, the context is cancelled, or the read itself fails.
func (p *Parser) Run(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			action, err := p.handleLine(line)
			if err != nil {
				return err
			}
			if action == Stop {
				p.finish()
				return nil
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				// Exhausted without a done marker still counts as a
				// clean end of stream.
				p.finish()
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			return errors.Wrap(readErr, "failed to read stream")
		}
	}
}

func (p *Parser) handleLine(line string) (Action, error) {
	if p.dialect.SkipKeepalives && strings.HasPrefix(line, keepalivePrefix) {
		return Continue, nil
	}

	if p.dialect.DoneMarker != "" &&
		(line == p.dialect.DoneMarker || line == dataPrefix+" "+p.dialect.DoneMarker) {
		return Stop, nil
	}

	var body string
	switch {
	case strings.HasPrefix(line, dataPrefix):
		body = strings.TrimSpace(line[len(dataPrefix):])
		if body == "" || body == emptyObjectToken {
			// Heartbeat payloads.
			return Continue, nil
		}
		if p.dialect.DoneMarker != "" && body == p.dialect.DoneMarker {
			return Continue, nil
		}
	case p.dialect.BareJSONLines:
		body = line
	default:
		// Field lines other than data ("event:", "id:", "retry:") carry
		// nothing we need; the payload is self-describing.
		return Continue, nil
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		p.logger.Warn().Err(err).Str("line", body).Msg("Failed to parse stream payload")
		if p.onParseError != nil {
			p.onParseError(body, err)
		}
		return Continue, nil
	}

	eventType := ""
	if p.dialect.EventTypeField != "" {
		if raw, ok := fields[p.dialect.EventTypeField]; ok {
			// A non-string discriminator is treated as absent.
			_ = json.Unmarshal(raw, &eventType)
		}
	}

	p.eventCount++
	p.logger.Trace().
		Str("event_type", eventType).
		Int("event_number", p.eventCount).
		Msg("Parsed stream payload")

	return p.onEvent(eventType, json.RawMessage(body))
}

func (p *Parser) finish() {
	if p.doneFired {
		return
	}
	p.doneFired = true
	p.logger.Debug().Int("total_events", p.eventCount).Msg("Stream finished")
	if p.onDone != nil {
		p.onDone()
	}
}
