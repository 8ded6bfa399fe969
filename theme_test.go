package policychat_test

import (
	"testing"

	"github.com/fwojciec/policychat"
	"github.com/stretchr/testify/assert"
)

func TestDefaultTheme(t *testing.T) {
	t.Parallel()

	theme := policychat.DefaultTheme()
	roles := map[string]int{
		"user":       theme.UserMsg,
		"tool call":  theme.ToolCall,
		"error":      theme.Error,
		"success":    theme.Success,
		"muted":      theme.Muted,
		"accent":     theme.Accent,
		"policy ref": theme.PolicyRef,
	}
	for name, idx := range roles {
		assert.GreaterOrEqual(t, idx, 0, name)
		assert.Less(t, idx, 16, "%s must be a base ANSI color", name)
	}
	assert.Equal(t, 1, theme.Error)
	assert.NotEqual(t, theme.PolicyRef, theme.Accent, "policy codes must stand out from headings")
}
