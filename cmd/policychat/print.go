package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/policychat"
	"github.com/fwojciec/policychat/sanitize"
	"go.uber.org/zap"
)

// printTurn streams one turn without the TUI. Answer text goes to stdout as
// it arrives; tool activity, warnings and errors go to stderr.
func printTurn(ctx context.Context, s policychat.Streamer, req policychat.ChatRequest, stdout, stderr io.Writer, logger *zap.Logger) (policychat.Turn, error) {
	a := policychat.NewAssembler(policychat.WithViolationHandler(func(err error) {
		logger.Warn("dropped chunk", zap.Error(err))
	}))
	var last string
	err := policychat.StreamChatResponse(ctx, s, req, func(c policychat.Chunk) {
		if err := a.Apply(c); err != nil {
			return
		}
		switch v := c.(type) {
		case policychat.ChunkTextDelta:
			text := sanitize.Text(v.Delta)
			fmt.Fprint(stdout, text)
			if text != "" {
				last = text
			}
		case policychat.ChunkToolCall:
			fmt.Fprintf(stderr, "→ %s\n", sanitize.Line(v.Name))
		case policychat.ChunkToolOutput:
			call := a.Turn().ToolCalls[v.ToolCallID]
			fmt.Fprintf(stderr, "← %s (%d bytes)\n", sanitize.Line(call.Name), len(call.Output))
		case policychat.ChunkError:
			prefix := "error"
			if v.Recoverable {
				prefix = "warning"
			}
			fmt.Fprintf(stderr, "%s: %s\n", prefix, sanitize.Line(v.Message))
		}
	})
	if last != "" && !strings.HasSuffix(last, "\n") {
		fmt.Fprintln(stdout)
	}
	if err != nil {
		return policychat.Turn{}, err
	}
	turn := a.Turn()
	if refs := turn.References(); len(refs) > 0 {
		fmt.Fprintf(stderr, "sources: %s\n", strings.Join(refs, ", "))
	}
	return turn, nil
}

// exitCode maps the outcome of a printed turn to a process exit status.
func exitCode(turn policychat.Turn, expired bool) int {
	switch {
	case expired:
		return 2
	case turn.Terminal == policychat.TurnError:
		return 1
	default:
		return 0
	}
}
