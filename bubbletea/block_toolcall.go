package bubbletea

import (
	"bytes"
	"encoding/json"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/policychat"
	"github.com/fwojciec/policychat/sanitize"
	"github.com/mattn/go-runewidth"
)

var _ Collapsible = (*ToolCallBlock)(nil)

const (
	maxPreviewWidth = 60
	maxOutputLines  = 20
	maxOutputBytes  = 8 << 10
)

// ToolCallBlock renders a policy lookup together with its output once the
// output arrives. It starts collapsed, showing the tool name and a one-line
// preview of the output.
type ToolCallBlock struct {
	call      policychat.ToolCall
	collapsed bool
	styles    Styles
}

// NewToolCallBlock creates a collapsed ToolCallBlock.
func NewToolCallBlock(call policychat.ToolCall, styles Styles) *ToolCallBlock {
	return &ToolCallBlock{call: call, collapsed: true, styles: styles}
}

// ID returns the tool call ID used to correlate the output.
func (b *ToolCallBlock) ID() string { return b.call.ID }

// Collapsed reports whether the block hides its input and output.
func (b *ToolCallBlock) Collapsed() bool { return b.collapsed }

// SetOutput attaches the tool output.
func (b *ToolCallBlock) SetOutput(output json.RawMessage) {
	b.call.Output = output
}

func (b *ToolCallBlock) Update(msg tea.Msg) (Block, tea.Cmd) {
	if _, ok := msg.(ToggleMsg); ok {
		b.collapsed = !b.collapsed
	}
	return b, nil
}

func (b *ToolCallBlock) View(width int) string {
	indicator := "▶"
	if !b.collapsed {
		indicator = "▼"
	}
	header := b.styles.ToolCall.Render(indicator + " " + sanitize.Line(b.call.Name))
	if !b.call.HasOutput() {
		header += " " + b.styles.Muted.Render("…")
	} else if b.collapsed {
		if preview := b.preview(); preview != "" {
			header += " " + b.styles.Muted.Render(preview)
		}
	}

	lines := []string{header}
	if !b.collapsed {
		if in := formatJSON(b.call.Input); in != "" {
			lines = append(lines, b.styles.Muted.Render("input: ")+sanitize.Line(in))
		}
		if b.call.HasOutput() {
			out := sanitize.Head(sanitize.Text(formatJSON(b.call.Output)), maxOutputLines, maxOutputBytes)
			lines = append(lines, out.Content)
			if out.Truncated {
				lines = append(lines, b.styles.Muted.Render("[output truncated]"))
			}
		}
	}
	boxWidth := width - b.styles.ToolBox.GetHorizontalFrameSize()
	if boxWidth < 1 {
		boxWidth = 1
	}
	return b.styles.ToolBox.Width(boxWidth).Render(strings.Join(lines, "\n"))
}

func (b *ToolCallBlock) preview() string {
	s := sanitize.Line(formatJSON(b.call.Output))
	return runewidth.Truncate(s, maxPreviewWidth, "…")
}

// formatJSON unwraps JSON strings and indents objects for display. Invalid
// JSON is returned verbatim.
func formatJSON(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
