package bubbletea

// RenderContent exports renderContent for testing.
func RenderContent(m Model) string {
	return m.renderContent()
}

// BlockFocus returns the index of the focused tool call block.
func BlockFocus(m Model) int {
	return m.blockFocus
}

// Blocks returns the rendered conversation blocks.
func Blocks(m Model) []Block {
	return m.blocks
}
