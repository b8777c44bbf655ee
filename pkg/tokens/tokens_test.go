package tokens

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-go-golems/loom/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterCountsText(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)

	empty, err := c.Count("")
	require.NoError(t, err)
	assert.Equal(t, 0, empty)

	short, err := c.Count("hello world")
	require.NoError(t, err)
	long, err := c.Count(strings.Repeat("hello world ", 50))
	require.NoError(t, err)

	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)
}

func TestNewCounterFallsBackForUnknownModels(t *testing.T) {
	c, err := NewCounter("claude-3-5-sonnet-20241022")
	require.NoError(t, err)

	n, err := c.Count("The quick brown fox")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestNewCounterForEncodingRejectsUnknownNames(t *testing.T) {
	_, err := NewCounterForEncoding("cl100k_base")
	require.NoError(t, err)

	_, err = NewCounterForEncoding("not-an-encoding")
	require.Error(t, err)
}

func TestCountMessageAddsOverhead(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)

	text, err := c.Count("hello there")
	require.NoError(t, err)

	msg := conversation.NewChatMessage(conversation.RoleUser, "hello there")
	withFraming, err := c.CountMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, text+messageOverhead, withFraming)

	total, err := c.CountThread(conversation.Thread{msg, msg})
	require.NoError(t, err)
	assert.Equal(t, 2*withFraming, total)
}

func budgetThread() conversation.Thread {
	return conversation.Thread{
		conversation.NewChatMessage(conversation.RoleSystem, "You are terse."),
		conversation.NewChatMessage(conversation.RoleUser, strings.Repeat("alpha ", 40)),
		conversation.NewChatMessage(conversation.RoleAssistant, strings.Repeat("beta ", 40)),
		conversation.NewChatMessage(conversation.RoleUser, "and now?"),
	}
}

func TestTrimToBudgetKeepsFittingThreads(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)

	thread := budgetThread()
	total, err := c.CountThread(thread)
	require.NoError(t, err)

	trimmed, err := c.TrimToBudget(thread, total)
	require.NoError(t, err)
	assert.Equal(t, thread, trimmed)
}

func TestTrimToBudgetDropsOldestNonSystemFirst(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)

	thread := budgetThread()
	total, err := c.CountThread(thread)
	require.NoError(t, err)
	oldest, err := c.CountMessage(thread[1])
	require.NoError(t, err)

	trimmed, err := c.TrimToBudget(thread, total-oldest)
	require.NoError(t, err)

	require.Len(t, trimmed, 3)
	assert.Same(t, thread[0], trimmed[0])
	assert.Same(t, thread[2], trimmed[1])
	assert.Same(t, thread[3], trimmed[2])
}

func TestTrimToBudgetPinsSystemAndNewest(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)

	thread := budgetThread()
	trimmed, err := c.TrimToBudget(thread, 1)
	require.NoError(t, err)

	require.Len(t, trimmed, 2)
	assert.Same(t, thread[0], trimmed[0])
	assert.Same(t, thread[3], trimmed[1])
}

func TestTrimToBudgetDropsOrphanedToolResults(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)

	thread := conversation.Thread{
		conversation.NewChatMessage(conversation.RoleSystem, "You are terse."),
		conversation.NewToolUseMessage("call-1", "get_weather", json.RawMessage(`{"city":"Berlin"}`)),
		conversation.NewToolResultMessage("call-1", "get_weather", strings.Repeat("sunny ", 30), false),
		conversation.NewChatMessage(conversation.RoleUser, "and tomorrow?"),
	}

	total, err := c.CountThread(thread)
	require.NoError(t, err)
	use, err := c.CountMessage(thread[1])
	require.NoError(t, err)

	// The budget only forces the tool-use out, but the result cannot
	// stand without it.
	trimmed, err := c.TrimToBudget(thread, total-use)
	require.NoError(t, err)

	require.Len(t, trimmed, 2)
	assert.Same(t, thread[0], trimmed[0])
	assert.Same(t, thread[3], trimmed[1])
}

func TestTrimToBudgetZeroDisablesTrimming(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)

	thread := budgetThread()
	trimmed, err := c.TrimToBudget(thread, 0)
	require.NoError(t, err)
	assert.Equal(t, thread, trimmed)
}

func TestTextCounterCountsRawText(t *testing.T) {
	tc, err := NewTextCounter(DefaultTextEncoding)
	require.NoError(t, err)

	assert.Equal(t, 0, tc.Count(""))
	assert.Greater(t, tc.Count("one two three four"), 0)
}

func TestEncodingForModel(t *testing.T) {
	assert.Equal(t, "p50k_base", string(EncodingForModel("text-davinci-003")))
	assert.Equal(t, "r50k_base", string(EncodingForModel("ada")))
	assert.Equal(t, "cl100k_base", string(EncodingForModel("gpt-4")))
	assert.Equal(t, "cl100k_base", string(EncodingForModel("claude-3-opus")))
}
