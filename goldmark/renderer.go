package goldmark

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/policychat"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type styles struct {
	bold      lipgloss.Style
	italic    lipgloss.Style
	heading   lipgloss.Style
	muted     lipgloss.Style
	underline lipgloss.Style
	ref       lipgloss.Style
}

type renderer struct {
	styles
	width  int
	source []byte
}

func newRenderer(theme policychat.Theme, width int) *renderer {
	return &renderer{
		width: width,
		styles: styles{
			bold:      lipgloss.NewStyle().Bold(true),
			italic:    lipgloss.NewStyle().Italic(true),
			heading:   lipgloss.NewStyle().Foreground(ansiColor(theme.Accent)).Bold(true),
			muted:     lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true),
			underline: lipgloss.NewStyle().Underline(true),
			ref:       lipgloss.NewStyle().Foreground(ansiColor(theme.PolicyRef)).Bold(true),
		},
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

func (r *renderer) render(source []byte) string {
	r.source = source
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var out bytes.Buffer
	r.blocks(doc, r.width, &out)
	return strings.TrimRight(out.String(), "\n")
}

// blocks renders the block children of node, separated by blank lines.
func (r *renderer) blocks(node ast.Node, width int, out *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.block(c, width, out)
		if c.NextSibling() != nil && separated(c) {
			out.WriteByte('\n')
		}
	}
}

// separated reports whether a blank line follows n. Raw HTML keeps its own
// line structure.
func separated(n ast.Node) bool {
	_, html := n.(*ast.HTMLBlock)
	return !html
}

func (r *renderer) block(node ast.Node, width int, out *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		r.wrap(r.inlines(n), width, out)

	case *ast.Heading:
		r.wrap(r.heading.Render(r.inlines(n)), width, out)

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(r.source)); lang != "" {
			out.WriteString(r.muted.Render(lang) + "\n")
		}
		r.code(n.Lines(), out)

	case *ast.CodeBlock:
		r.code(n.Lines(), out)

	case *ast.Blockquote:
		// Quoted policy excerpts: render the body narrower behind a gutter.
		var inner bytes.Buffer
		r.blocks(n, max(width-2, 10), &inner)
		gutter := r.muted.Render("┃") + " "
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			out.WriteString(gutter + line + "\n")
		}

	case *ast.List:
		r.list(n, width, out, 0)

	case *ast.ThematicBreak:
		out.WriteString(r.muted.Render(strings.Repeat("─", min(width, 40))) + "\n")

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			out.Write(seg.Value(r.source))
		}

	default:
		r.blocks(node, width, out)
	}
}

func (r *renderer) wrap(s string, width int, out *bytes.Buffer) {
	out.WriteString(lipgloss.NewStyle().Width(width).Render(s))
	out.WriteByte('\n')
}

func (r *renderer) code(lines *text.Segments, out *bytes.Buffer) {
	gutter := r.muted.Render("│") + " "
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out.WriteString(gutter + strings.TrimRight(string(seg.Value(r.source)), "\n") + "\n")
	}
}

func (r *renderer) list(node *ast.List, width int, out *bytes.Buffer, depth int) {
	n := node.Start
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "• "
		if node.IsOrdered() {
			marker = fmt.Sprintf("%d. ", n)
			n++
		}
		indent := strings.Repeat("  ", depth)

		var content strings.Builder
		flush := func() {
			if content.Len() == 0 {
				return
			}
			r.item(out, indent+marker, content.String(), width)
			content.Reset()
			// Only the first line of an item carries the marker.
			marker = strings.Repeat(" ", len([]rune(marker)))
		}
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				content.WriteString(r.inlines(in))
			case *ast.List:
				flush()
				r.list(in, width, out, depth+1)
			default:
				var b bytes.Buffer
				r.block(ic, width, &b)
				content.WriteString(b.String())
			}
		}
		flush()
	}
}

// item writes a list item with continuation lines aligned under its text.
func (r *renderer) item(out *bytes.Buffer, prefix, content string, width int) {
	pad := len([]rune(prefix))
	wrapped := lipgloss.NewStyle().Width(max(width-pad, 10)).Render(content)
	for i, line := range strings.Split(wrapped, "\n") {
		if i == 0 {
			out.WriteString(prefix + line + "\n")
			continue
		}
		out.WriteString(strings.Repeat(" ", pad) + line + "\n")
	}
}

// inlines collects the styled inline content of node.
func (r *renderer) inlines(node ast.Node) string {
	var b strings.Builder
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(c, &b)
	}
	return b.String()
}

func (r *renderer) inline(node ast.Node, b *strings.Builder) {
	switch n := node.(type) {
	case *ast.Text:
		b.WriteString(r.highlight(string(n.Segment.Value(r.source))))
		switch {
		case n.HardLineBreak():
			b.WriteByte('\n')
		case n.SoftLineBreak():
			b.WriteByte(' ')
		}

	case *ast.String:
		b.WriteString(r.highlight(string(n.Value)))

	case *ast.Emphasis:
		// Goldmark nests ***x*** as two Emphasis nodes, so level is 1 or 2.
		if n.Level == 1 {
			b.WriteString(r.italic.Render(r.inlines(n)))
		} else {
			b.WriteString(r.bold.Render(r.inlines(n)))
		}

	case *ast.CodeSpan:
		b.WriteString(r.bold.Render(r.inlines(n)))

	case *ast.Link:
		b.WriteString(r.underline.Render(r.inlines(n)))
		b.WriteString(" " + r.muted.Render("("+string(n.Destination)+")"))

	case *ast.AutoLink:
		b.WriteString(r.underline.Render(string(n.URL(r.source))))

	case *ast.Image:
		b.WriteString(r.underline.Render(r.inlines(n)))
		b.WriteString(" " + r.muted.Render("("+string(n.Destination)+")"))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(r.source))
		}

	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			r.inline(c, b)
		}
	}
}

// highlight styles the policy codes in s.
func (r *renderer) highlight(s string) string {
	spans := policychat.ReferenceSpans(s)
	if spans == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(s[last:sp[0]])
		b.WriteString(r.ref.Render(s[sp[0]:sp[1]]))
		last = sp[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
