package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/policychat/sanitize"
)

var _ Block = (*ErrorBlock)(nil)

// ErrorBlock renders an error chunk. Recoverable errors (a single event the
// client could not process) render as a dim warning; the answer continues
// below them.
type ErrorBlock struct {
	message     string
	recoverable bool
	styles      Styles
}

// NewErrorBlock creates an ErrorBlock.
func NewErrorBlock(message string, recoverable bool, styles Styles) *ErrorBlock {
	return &ErrorBlock{message: sanitize.Text(message), recoverable: recoverable, styles: styles}
}

// Recoverable reports whether the block shows a non-terminal warning.
func (b *ErrorBlock) Recoverable() bool { return b.recoverable }

func (b *ErrorBlock) Update(msg tea.Msg) (Block, tea.Cmd) {
	return b, nil
}

func (b *ErrorBlock) View(width int) string {
	content := b.styles.Error.Render("✗ " + b.message)
	if b.recoverable {
		content = b.styles.Warning.Render("! " + b.message)
	}
	return lipgloss.NewStyle().Width(width).Render(content)
}
