package policychat

import "time"

// Exchange is one user prompt and the assistant turn that answered it.
type Exchange struct {
	Prompt    string
	Turn      Turn
	Timestamp time.Time
}

// Transcript is a locally persisted record of a conversation.
type Transcript struct {
	ID        string
	ChatID    int64 // 0 until the server assigns one
	Title     string
	Exchanges []Exchange
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Record appends an exchange and adopts the chat identity the server
// assigned, if the transcript has none yet.
func (t *Transcript) Record(prompt string, turn Turn, at time.Time) {
	t.Exchanges = append(t.Exchanges, Exchange{Prompt: prompt, Turn: turn, Timestamp: at})
	if t.ChatID == 0 && turn.ChatID != 0 {
		t.ChatID = turn.ChatID
	}
	if t.Title == "" && turn.Title != "" {
		t.Title = turn.Title
	}
	t.UpdatedAt = at
}

// ChatIDPtr returns the chat to continue, or nil for a new conversation.
func (t Transcript) ChatIDPtr() *int64 {
	if t.ChatID == 0 {
		return nil
	}
	id := t.ChatID
	return &id
}
