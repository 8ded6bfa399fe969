// Package sanitize makes server-supplied text safe to print in a terminal.
//
// Answer text, chat titles, error messages and tool outputs all come from the
// backend and may carry escape sequences that would move the cursor, retitle
// the terminal or corrupt the TUI layout.
package sanitize

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Text strips ANSI escape codes and control characters. Tabs and newlines
// are kept; CRLF and lone CR become LF.
func Text(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\r':
			b.WriteByte('\n')
		case r == '\t' || r == '\n':
			b.WriteRune(r)
		case r <= 0x1F || r == 0x7F:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Line sanitizes s and folds it onto one line, collapsing runs of
// whitespace. Used for titles, tool names and status lines.
func Line(s string) string {
	return strings.Join(strings.Fields(Text(s)), " ")
}
