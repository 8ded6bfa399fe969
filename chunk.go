package policychat

import "encoding/json"

// ChunkTag is the wire discriminator of a Chunk.
type ChunkTag string

const (
	TagChatInfo   ChunkTag = "chat_info"
	TagTextDelta  ChunkTag = "text_delta"
	TagToolCall   ChunkTag = "tool_call"
	TagToolOutput ChunkTag = "tool_output"
	TagStatus     ChunkTag = "status"
	TagError      ChunkTag = "error"
)

// StatusComplete is the status value that authoritatively ends a turn.
const StatusComplete = "complete"

// Chunk is a sealed interface representing one typed event of an assistant
// turn. Transport failures never surface as Go errors from a Stream; they are
// reported as ChunkError values so the caller sees exactly one terminal chunk.
// The unexported marker method prevents external implementations.
type Chunk interface {
	Tag() ChunkTag
	chunk()
}

// ChunkChatInfo identifies (or creates) the conversation a turn belongs to.
type ChunkChatInfo struct {
	ChatID int64
	Title  string
}

func (ChunkChatInfo) chunk() {}

// Tag returns TagChatInfo.
func (ChunkChatInfo) Tag() ChunkTag { return TagChatInfo }

// ChunkTextDelta is an incremental fragment of the answer text.
type ChunkTextDelta struct {
	Delta string
}

func (ChunkTextDelta) chunk() {}

// Tag returns TagTextDelta.
func (ChunkTextDelta) Tag() ChunkTag { return TagTextDelta }

// ChunkToolCall announces an assistant-initiated lookup.
type ChunkToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (ChunkToolCall) chunk() {}

// Tag returns TagToolCall.
func (ChunkToolCall) Tag() ChunkTag { return TagToolCall }

// ChunkToolOutput carries the result of a previously announced tool call.
type ChunkToolOutput struct {
	ToolCallID string
	Output     json.RawMessage
}

func (ChunkToolOutput) chunk() {}

// Tag returns TagToolOutput.
func (ChunkToolOutput) Tag() ChunkTag { return TagToolOutput }

// ChunkStatus reports turn status. Only StatusComplete is terminal.
type ChunkStatus struct {
	Status string
	ChatID int64
}

func (ChunkStatus) chunk() {}

// Tag returns TagStatus.
func (ChunkStatus) Tag() ChunkTag { return TagStatus }

// Complete reports whether the chunk is the authoritative end-of-turn marker.
func (c ChunkStatus) Complete() bool { return c.Status == StatusComplete }

// ChunkError is a user-facing failure description.
//
// Recoverable is set only on errors the client synthesizes for a single
// undecodable event; such chunks do not end the turn. Errors received from
// the server or synthesized for connection failures are always terminal.
type ChunkError struct {
	Message     string
	Recoverable bool
}

func (ChunkError) chunk() {}

// Tag returns TagError.
func (ChunkError) Tag() ChunkTag { return TagError }

// IsTerminal reports whether c ends a turn.
func IsTerminal(c Chunk) bool {
	switch v := c.(type) {
	case ChunkStatus:
		return v.Complete()
	case ChunkError:
		return !v.Recoverable
	default:
		return false
	}
}

// Interface compliance checks.
var (
	_ Chunk = ChunkChatInfo{}
	_ Chunk = ChunkTextDelta{}
	_ Chunk = ChunkToolCall{}
	_ Chunk = ChunkToolOutput{}
	_ Chunk = ChunkStatus{}
	_ Chunk = ChunkError{}
)
