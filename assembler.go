package policychat

import (
	"fmt"
	"strings"
)

// Assembler folds the chunks of one turn into a Turn. It performs no I/O and
// must be fed chunks from a single goroutine, in arrival order.
//
// Out-of-order or dangling chunks never fail the turn: Apply drops them,
// reports them to the violation handler and returns an error wrapping
// ErrProtocolViolation.
type Assembler struct {
	turn        Turn
	text        strings.Builder
	hasInfo     bool
	onViolation func(error)
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithViolationHandler sets a callback invoked for every dropped chunk.
func WithViolationHandler(h func(error)) AssemblerOption {
	return func(a *Assembler) { a.onViolation = h }
}

// NewAssembler creates an Assembler for a new, open turn.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{turn: Turn{ToolCalls: make(map[string]ToolCall)}}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Apply folds c into the turn.
func (a *Assembler) Apply(c Chunk) error {
	if c == nil {
		return a.violation(fmt.Errorf("nil chunk: %w", ErrProtocolViolation))
	}
	if a.turn.Terminal != TurnOpen {
		return a.violation(fmt.Errorf("%s after turn %s: %w", c.Tag(), a.turn.Terminal, ErrProtocolViolation))
	}

	switch v := c.(type) {
	case ChunkChatInfo:
		// Only the first chat_info identifies the turn.
		if a.hasInfo {
			return nil
		}
		a.hasInfo = true
		a.turn.ChatID = v.ChatID
		a.turn.Title = v.Title

	case ChunkTextDelta:
		a.text.WriteString(v.Delta)
		a.turn.Text = a.text.String()

	case ChunkToolCall:
		if _, seen := a.turn.ToolCalls[v.ID]; !seen {
			a.turn.CallOrder = append(a.turn.CallOrder, v.ID)
		}
		a.turn.ToolCalls[v.ID] = ToolCall{ID: v.ID, Name: v.Name, Input: v.Input}

	case ChunkToolOutput:
		call, ok := a.turn.ToolCalls[v.ToolCallID]
		if !ok {
			return a.violation(fmt.Errorf("tool output for unknown call %q: %w", v.ToolCallID, ErrProtocolViolation))
		}
		call.Output = v.Output
		if call.Output == nil {
			call.Output = []byte("null")
		}
		a.turn.ToolCalls[v.ToolCallID] = call

	case ChunkStatus:
		if !v.Complete() {
			return nil
		}
		if !a.hasInfo && v.ChatID != 0 {
			a.turn.ChatID = v.ChatID
		}
		a.turn.Terminal = TurnComplete

	case ChunkError:
		if v.Recoverable {
			a.turn.Warnings = append(a.turn.Warnings, v.Message)
			return nil
		}
		a.turn.Terminal = TurnError
		a.turn.Error = v.Message

	default:
		return a.violation(fmt.Errorf("unknown chunk type %T: %w", c, ErrProtocolViolation))
	}
	return nil
}

// Turn returns a snapshot of the assembled turn.
func (a *Assembler) Turn() Turn {
	return a.turn.clone()
}

// Done reports whether the turn has reached a terminal state.
func (a *Assembler) Done() bool {
	return a.turn.Terminal != TurnOpen
}

func (a *Assembler) violation(err error) error {
	if a.onViolation != nil {
		a.onViolation(err)
	}
	return err
}

// Assemble folds a complete chunk sequence into a Turn, ignoring violations.
func Assemble(chunks []Chunk) Turn {
	a := NewAssembler()
	for _, c := range chunks {
		_ = a.Apply(c)
	}
	return a.Turn()
}
