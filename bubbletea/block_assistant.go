package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/policychat"
	"github.com/fwojciec/policychat/goldmark"
	"github.com/fwojciec/policychat/sanitize"
)

var _ Block = (*AnswerBlock)(nil)

// AnswerBlock renders the assistant's streamed answer as markdown.
//
// Text up to the last paragraph break outside a code fence is stable: it is
// rendered once per width and cached. Only the open paragraph is rendered
// again on each delta.
type AnswerBlock struct {
	raw    strings.Builder
	theme  policychat.Theme
	styles Styles

	stable  string
	byWidth map[int]string
}

// NewAnswerBlock creates an empty AnswerBlock.
func NewAnswerBlock(theme policychat.Theme, styles Styles) *AnswerBlock {
	return &AnswerBlock{
		theme:   theme,
		styles:  styles,
		byWidth: make(map[int]string),
	}
}

// Append adds a text delta. Terminal control sequences are stripped.
func (b *AnswerBlock) Append(delta string) {
	b.raw.WriteString(sanitize.Text(delta))
	b.advance()
}

// Text returns the accumulated answer text.
func (b *AnswerBlock) Text() string {
	return b.raw.String()
}

func (b *AnswerBlock) Update(msg tea.Msg) (Block, tea.Cmd) {
	return b, nil
}

func (b *AnswerBlock) View(width int) string {
	head := b.renderStable(width)
	tail := strings.TrimPrefix(b.raw.String(), b.stable)
	tail = strings.TrimPrefix(tail, "\n\n")
	if openFence(tail) {
		tail += "\n```"
	}
	if strings.TrimSpace(tail) == "" {
		return head
	}
	rendered := goldmark.Render(tail, width, b.theme)
	if strings.TrimSpace(rendered) == "" {
		return head
	}
	if head == "" {
		return rendered
	}
	return strings.TrimRight(head, "\n") + "\n\n" + strings.TrimLeft(rendered, "\n")
}

// advance moves the stable prefix to the last paragraph break that is not
// inside a code fence.
func (b *AnswerBlock) advance() {
	raw := b.raw.String()
	end := len(raw)
	for {
		idx := strings.LastIndex(raw[:end], "\n\n")
		if idx <= 0 {
			return
		}
		prefix := raw[:idx]
		if !openFence(prefix) {
			if prefix != b.stable {
				b.stable = prefix
				clear(b.byWidth)
			}
			return
		}
		end = idx
	}
}

func (b *AnswerBlock) renderStable(width int) string {
	if width <= 0 || b.stable == "" {
		return ""
	}
	if out, ok := b.byWidth[width]; ok {
		return out
	}
	out := goldmark.Render(b.stable, width, b.theme)
	b.byWidth[width] = out
	return out
}

// openFence reports whether s has an odd number of ``` markers. Inline code
// spans containing triple backticks are miscounted.
func openFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
