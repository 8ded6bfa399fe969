// Package goldmark renders assistant answers, written in markdown, to
// ANSI-styled terminal output using goldmark for parsing and lipgloss for
// styling. Policy codes cited in the text (e.g. RAD-SAF-001) are highlighted.
package goldmark

import "github.com/fwojciec/policychat"

const defaultWidth = 80

// Render parses markdown source and returns ANSI-styled terminal output.
// Paragraphs, quotes and list items are word-wrapped to width. Code blocks
// are rendered without reflow.
func Render(source string, width int, theme policychat.Theme) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	return newRenderer(theme, width).render([]byte(source))
}
