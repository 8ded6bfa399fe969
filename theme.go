package policychat

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so the app
// automatically matches any color scheme. A negative index means no color.
type Theme struct {
	UserMsg   int // User prompt accent
	ToolCall  int // Tool call header
	Error     int // Error messages
	Success   int // Completed turn indicators
	Muted     int // Status bar, placeholders
	Accent    int // Headings, chat title
	PolicyRef int // Policy codes cited in answers
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		UserMsg:   4,
		ToolCall:  3,
		Error:     1,
		Success:   2,
		Muted:     8,
		Accent:    5,
		PolicyRef: 6,
	}
}
