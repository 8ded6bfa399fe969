// Package bubbletea provides a Bubble Tea TUI for chatting with the policy
// assistant.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/policychat"
)

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. The context is used for graceful shutdown: when cancelled, the
// program quits. Each value received on expired is delivered to the model as
// a SessionExpiredMsg; expired may be nil.
func Run(ctx context.Context, m Model, expired <-chan struct{}) (Model, error) {
	p := tea.NewProgram(m, tea.WithAltScreen())
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				p.Quit()
				return
			case <-expired:
				p.Send(SessionExpiredMsg{})
			}
		}
	}()
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		m = fm
	}
	return m, err
}

// ChunkMsg wraps a stream chunk for delivery to the Bubble Tea model.
type ChunkMsg struct {
	Chunk policychat.Chunk
}

// TurnDoneMsg signals that the stream for the current turn has ended.
type TurnDoneMsg struct {
	Err error
}

// SessionExpiredMsg signals that the backend rejected the credential. The
// model stops accepting input.
type SessionExpiredMsg struct{}
