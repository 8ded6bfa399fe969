package sanitize

import (
	"strings"
	"unicode/utf8"
)

// Result describes the outcome of head truncation.
type Result struct {
	Content     string
	Truncated   bool
	TruncatedBy string // "lines" or "bytes"
	TotalLines  int
	OutputLines int
}

// Head keeps the first maxLines lines or maxBytes bytes of s, whichever
// limit is hit first. Only complete lines are kept, except when the first
// line alone exceeds maxBytes; then it is cut at a rune boundary.
func Head(s string, maxLines, maxBytes int) Result {
	if s == "" {
		return Result{}
	}
	lines := splitLines(s)
	if len(lines) <= maxLines && len(s) <= maxBytes {
		return Result{Content: s, TotalLines: len(lines), OutputLines: len(lines)}
	}

	var kept []string
	size := 0
	by := "lines"
	for _, line := range lines {
		if len(kept) == maxLines {
			break
		}
		n := len(line)
		if len(kept) > 0 {
			n++ // separator
		}
		if size+n > maxBytes {
			by = "bytes"
			if len(kept) == 0 {
				kept = append(kept, cut(line, maxBytes))
			}
			break
		}
		kept = append(kept, line)
		size += n
	}

	return Result{
		Content:     strings.Join(kept, "\n"),
		Truncated:   true,
		TruncatedBy: by,
		TotalLines:  len(lines),
		OutputLines: len(kept),
	}
}

// cut returns the longest prefix of s that is at most n bytes and does not
// split a rune.
func cut(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// splitLines splits s into lines. A trailing newline does not produce an
// empty final element.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
