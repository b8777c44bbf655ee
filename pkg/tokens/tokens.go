// Package tokens counts tokens and trims conversation context to a budget.
//
// Counter resolves a tokenizer codec from a model name and works on chat
// threads. TextCounter counts raw text without chat framing and backs the
// per-file statistics of the tokens CLI.
package tokens

import (
	"strings"

	"github.com/go-go-golems/loom/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
	"github.com/weaviate/tiktoken-go"
)

// DefaultTextEncoding is the encoding used for raw text when the caller does
// not name one.
const DefaultTextEncoding = "cl100k_base"

// messageOverhead approximates the framing tokens chat endpoints add around
// each message for role markers and separators.
const messageOverhead = 4

// EncodingForModel maps a model name onto the encoding used to approximate
// its token count. Anthropic and local models have no public tokenizer, so
// they fall through to cl100k_base, which is close enough for budget math.
func EncodingForModel(model string) tokenizer.Encoding {
	switch {
	case strings.HasPrefix(model, "text-davinci-002"), strings.HasPrefix(model, "text-davinci-003"):
		return tokenizer.P50kBase
	case strings.HasPrefix(model, "davinci"), strings.HasPrefix(model, "curie"),
		strings.HasPrefix(model, "babbage"), strings.HasPrefix(model, "ada"):
		return tokenizer.R50kBase
	default:
		return tokenizer.Cl100kBase
	}
}

// Counter counts tokens for strings, messages, and whole threads using a
// single codec.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter resolves a codec for the given model, falling back to the
// approximated encoding when the model is not one the tokenizer knows.
func NewCounter(model string) (*Counter, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(model)); err == nil {
		return &Counter{codec: codec}, nil
	}

	codec, err := tokenizer.Get(EncodingForModel(model))
	if err != nil {
		return nil, errors.Wrapf(err, "could not load tokenizer for model %s", model)
	}
	return &Counter{codec: codec}, nil
}

// NewCounterForEncoding builds a counter on an explicitly named encoding,
// for callers that want codec control instead of model-name resolution.
func NewCounterForEncoding(encoding string) (*Counter, error) {
	codec, err := tokenizer.Get(tokenizer.Encoding(encoding))
	if err != nil {
		return nil, errors.Wrapf(err, "could not load encoding %s", encoding)
	}
	return &Counter{codec: codec}, nil
}

func (c *Counter) Count(text string) (int, error) {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "could not encode text")
	}
	return len(ids), nil
}

// CountMessage counts the message content plus the per-message overhead.
func (c *Counter) CountMessage(msg *conversation.Message) (int, error) {
	n, err := c.Count(contentText(msg.Content))
	if err != nil {
		return 0, err
	}
	return n + messageOverhead, nil
}

func (c *Counter) CountThread(thread conversation.Thread) (int, error) {
	total := 0
	for _, msg := range thread {
		n, err := c.CountMessage(msg)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// TrimToBudget drops whole messages from the oldest end of the thread until
// the remaining context fits the budget. Leading system messages are pinned
// and the newest message is never dropped, so the result can still exceed
// the budget when those alone are larger than it. A budget of zero or less
// disables trimming.
//
// Tool results whose tool-use partner was dropped are dropped as well, a
// dangling result at the front of the context is rejected by providers.
func (c *Counter) TrimToBudget(thread conversation.Thread, budget int) (conversation.Thread, error) {
	if budget <= 0 || len(thread) == 0 {
		return thread, nil
	}

	counts := make([]int, len(thread))
	total := 0
	for i, msg := range thread {
		n, err := c.CountMessage(msg)
		if err != nil {
			return nil, err
		}
		counts[i] = n
		total += n
	}
	if total <= budget {
		return thread, nil
	}

	pinned := 0
	for pinned < len(thread) && isSystem(thread[pinned]) {
		pinned++
	}

	drop := pinned
	for drop < len(thread)-1 && total > budget {
		total -= counts[drop]
		drop++
	}
	for drop < len(thread)-1 && isToolResult(thread[drop]) {
		total -= counts[drop]
		drop++
	}

	trimmed := make(conversation.Thread, 0, pinned+len(thread)-drop)
	trimmed = append(trimmed, thread[:pinned]...)
	trimmed = append(trimmed, thread[drop:]...)
	return trimmed, nil
}

func isSystem(msg *conversation.Message) bool {
	chat, ok := msg.Content.(*conversation.ChatMessageContent)
	return ok && chat.Role == conversation.RoleSystem
}

func isToolResult(msg *conversation.Message) bool {
	_, ok := msg.Content.(*conversation.ToolResultContent)
	return ok
}

func contentText(content conversation.MessageContent) string {
	switch c := content.(type) {
	case *conversation.ChatMessageContent:
		return c.Text
	case *conversation.ToolUseContent:
		return c.ToolID + " " + string(c.Input)
	case *conversation.ToolResultContent:
		return c.Result
	default:
		return content.String()
	}
}

// TextCounter counts raw text, one file or attachment at a time. It rides on
// a tokenizer implementation that ships its vocabularies embedded, so it
// works without network access.
type TextCounter struct {
	encoder *tiktoken.Tiktoken
}

func NewTextCounter(encoding string) (*TextCounter, error) {
	encoder, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load encoding %s", encoding)
	}
	return &TextCounter{encoder: encoder}, nil
}

func (t *TextCounter) Count(text string) int {
	return len(t.encoder.Encode(text, nil, nil))
}
