package policychat

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
)

// TerminalState is the lifecycle state of a Turn.
type TerminalState int

const (
	TurnOpen TerminalState = iota
	TurnComplete
	TurnError
)

func (s TerminalState) String() string {
	switch s {
	case TurnOpen:
		return "open"
	case TurnComplete:
		return "complete"
	case TurnError:
		return "error"
	default:
		return fmt.Sprintf("TerminalState(%d)", int(s))
	}
}

// ToolCall is a lookup the assistant performed during a turn, correlated
// with its output by ID.
type ToolCall struct {
	ID     string
	Name   string
	Input  json.RawMessage
	Output json.RawMessage // nil until a matching tool output arrives
}

// HasOutput reports whether an output was attached to the call.
func (c ToolCall) HasOutput() bool { return c.Output != nil }

// Turn is one assistant response assembled from its chunks.
type Turn struct {
	ChatID    int64 // 0 when the server never identified the chat
	Title     string
	Text      string
	ToolCalls map[string]ToolCall
	CallOrder []string // tool call IDs in first-seen order
	Terminal  TerminalState
	Error     string   // message of the terminal error chunk
	Warnings  []string // recoverable errors reported during the turn
}

// Calls returns the tool calls in first-seen order.
func (t Turn) Calls() []ToolCall {
	calls := make([]ToolCall, 0, len(t.CallOrder))
	for _, id := range t.CallOrder {
		calls = append(calls, t.ToolCalls[id])
	}
	return calls
}

// policyRef matches policy document codes such as RAD-SAF-001.
var policyRef = regexp.MustCompile(`\b[A-Z]{2,}(?:-[A-Z]{2,})*-\d{2,}\b`)

// References returns the distinct policy codes cited in the answer text,
// in order of first appearance.
func (t Turn) References() []string {
	var refs []string
	for _, m := range policyRef.FindAllString(t.Text, -1) {
		if !slices.Contains(refs, m) {
			refs = append(refs, m)
		}
	}
	return refs
}

// ReferenceSpans returns the byte ranges of policy codes in s, as pairs of
// start and end offsets.
func ReferenceSpans(s string) [][]int {
	return policyRef.FindAllStringIndex(s, -1)
}

// clone returns a deep copy so callers cannot mutate assembler state.
func (t Turn) clone() Turn {
	out := t
	out.ToolCalls = maps.Clone(t.ToolCalls)
	if out.ToolCalls == nil {
		out.ToolCalls = map[string]ToolCall{}
	}
	out.CallOrder = slices.Clone(t.CallOrder)
	out.Warnings = slices.Clone(t.Warnings)
	return out
}
