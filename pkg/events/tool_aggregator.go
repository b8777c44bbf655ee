package events

import "strings"

// ToolEventEntry collapses the tool events of one call ID into a single row.
type ToolEventEntry struct {
	CallID     string
	ToolID     string
	Parameters string
	Called     bool
	Result     string
	IsError    bool
}

// ToolEventAggregator collects tool call and tool result events into compact
// per call entries, in the order the calls first appeared. UI layers render
// the entries as status lines while a request runs.
type ToolEventAggregator struct {
	index   map[string]int
	entries []ToolEventEntry
}

func NewToolEventAggregator() *ToolEventAggregator {
	return &ToolEventAggregator{
		index:   make(map[string]int),
		entries: make([]ToolEventEntry, 0, 4),
	}
}

// Reset clears the aggregator state, typically between requests.
func (a *ToolEventAggregator) Reset() {
	a.index = make(map[string]int)
	a.entries = a.entries[:0]
}

// Entries returns a snapshot of current entries in insertion order.
func (a *ToolEventAggregator) Entries() []ToolEventEntry {
	out := make([]ToolEventEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Handle consumes an event and updates entries when it is tool related.
func (a *ToolEventAggregator) Handle(e Event) {
	switch ev := e.(type) {
	case *EventToolCall:
		if ev.ToolCall.CallID == "" {
			return
		}
		idx := a.ensure(ev.ToolCall.CallID)
		a.entries[idx].Called = true
		a.entries[idx].ToolID = ev.ToolCall.ToolID
		if len(ev.ToolCall.Parameters) > 0 {
			a.entries[idx].Parameters = string(ev.ToolCall.Parameters)
		}
	case *EventToolResult:
		if ev.ToolResult.CallID == "" {
			return
		}
		idx := a.ensure(ev.ToolResult.CallID)
		if ev.ToolResult.ToolID != "" {
			a.entries[idx].ToolID = ev.ToolResult.ToolID
		}
		a.entries[idx].Result = ev.ToolResult.Result
		a.entries[idx].IsError = ev.ToolResult.IsError
	}
}

// Lines returns a compact plain text representation of each entry.
func (a *ToolEventAggregator) Lines() []string {
	lines := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		name := e.ToolID
		if name == "" {
			name = e.CallID
		}
		parts := make([]string, 0, 3)
		if e.Called {
			parts = append(parts, "→ "+name)
		}
		if e.Result != "" {
			marker := "← "
			if e.IsError {
				marker = "✗ "
			}
			parts = append(parts, marker+e.Result)
		}
		if e.Parameters != "" {
			parts = append(parts, e.Parameters)
		}
		lines = append(lines, strings.Join(parts, "  "))
	}
	return lines
}

func (a *ToolEventAggregator) ensure(id string) int {
	if idx, ok := a.index[id]; ok {
		return idx
	}
	idx := len(a.entries)
	a.index[id] = idx
	a.entries = append(a.entries, ToolEventEntry{CallID: id})
	return idx
}
