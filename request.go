package policychat

import (
	"fmt"
	"strings"
)

// ChatRequest is one user message sent to the assistant.
type ChatRequest struct {
	UserID  int64
	Message string
	ChatID  *int64 // nil starts a new conversation
}

// Validate checks the constraints that must hold before a connection is
// attempted.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("message must not be empty: %w", ErrValidation)
	}
	if r.ChatID != nil && *r.ChatID <= 0 {
		return fmt.Errorf("chat_id must be positive, got %d: %w", *r.ChatID, ErrValidation)
	}
	return nil
}
