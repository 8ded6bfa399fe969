package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Block is one element of the rendered conversation. View takes the width
// so the root model owns layout.
type Block interface {
	Update(tea.Msg) (Block, tea.Cmd)
	View(width int) string
}

// Collapsible is a Block whose details can be hidden. Only collapsible
// blocks take keyboard focus.
type Collapsible interface {
	Block
	Collapsed() bool
}

// ToggleMsg flips the collapsed state of the focused block.
type ToggleMsg struct{}

// renderBlocks joins block views with a blank line between them.
func renderBlocks(blocks []Block, width int) string {
	views := make([]string, 0, len(blocks))
	for _, b := range blocks {
		views = append(views, b.View(width))
	}
	return strings.Join(views, "\n\n")
}
