package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ Block = (*SourcesBlock)(nil)

// SourcesBlock lists the policy documents an answer cited.
type SourcesBlock struct {
	refs   []string
	styles Styles
}

// NewSourcesBlock creates a SourcesBlock.
func NewSourcesBlock(refs []string, styles Styles) *SourcesBlock {
	return &SourcesBlock{refs: refs, styles: styles}
}

func (b *SourcesBlock) Update(msg tea.Msg) (Block, tea.Cmd) {
	return b, nil
}

func (b *SourcesBlock) View(width int) string {
	content := b.styles.Muted.Render("Sources: ") + b.styles.Accent.Render(strings.Join(b.refs, ", "))
	return lipgloss.NewStyle().Width(width).Render(content)
}
