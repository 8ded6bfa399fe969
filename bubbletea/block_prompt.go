package bubbletea

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/policychat/sanitize"
)

var _ Block = (*PromptBlock)(nil)

// PromptBlock shows a question the user asked, under a "You" label with the
// time it was sent.
type PromptBlock struct {
	text   string
	at     time.Time
	styles Styles
}

// NewPromptBlock creates a PromptBlock. A zero time omits the timestamp.
func NewPromptBlock(text string, at time.Time, styles Styles) *PromptBlock {
	return &PromptBlock{text: sanitize.Text(text), at: at, styles: styles}
}

func (b *PromptBlock) Update(msg tea.Msg) (Block, tea.Cmd) {
	return b, nil
}

func (b *PromptBlock) View(width int) string {
	label := b.styles.UserMsg.Render("You")
	if !b.at.IsZero() {
		label += b.styles.Muted.Render(" · " + b.at.Format("15:04"))
	}
	body := lipgloss.NewStyle().Width(max(width, 1)).Render(b.text)
	return label + "\n" + body
}
