package policychat

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrProtocol indicates a wire payload could not be decoded into a Chunk.
	ErrProtocol = errors.New("protocol error")

	// ErrProtocolViolation indicates a well-formed chunk arrived out of order,
	// e.g. a tool output without a matching call or a chunk after the
	// terminal signal. The chunk is dropped; the turn continues.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrTurnInFlight indicates a stream is already open for the same chat.
	ErrTurnInFlight = errors.New("turn already in flight for chat")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrUnauthenticated indicates no usable credential is available.
	ErrUnauthenticated = errors.New("unauthenticated")
)
