// Package sse implements [policychat.Streamer] over a server-sent events
// connection to the policy assistant backend.
//
// Every failure a turn can meet (validation, missing credential, HTTP error
// status, transport error, malformed event) is reported in-band as a
// [policychat.ChunkError], so a consumer handles exactly one terminal chunk
// per turn and never a Go error from the stream itself.
package sse

const (
	defaultStreamPath = "/api/chat/stream"
	defaultUserAgent  = "policychat"

	// maxEventSize bounds a single SSE line. Tool outputs carrying policy
	// excerpts can be large.
	maxEventSize = 1 << 20

	// maxErrorBody bounds how much of a non-2xx body is read for a detail.
	maxErrorBody = 64 << 10
)

// User-facing messages for synthesized error chunks.
const (
	msgEmptyMessage    = "Message must not be empty."
	msgInvalidChatID   = "Chat ID must be a positive number."
	msgNotLoggedIn     = "You must be logged in to chat."
	msgSessionExpired  = "Your session has expired. Please log in again."
	msgConnectionError = "Connection error"
	msgDecodeFailure   = "Failed to process a response event."
	msgTooManyFailures = "Too many malformed response events."
)
