package policychat

import (
	"context"
	"fmt"
	"io"
)

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Connection not yet established.
	StreamStateStreaming                    // Receiving chunks.
	StreamStateComplete                     // Turn ended with status complete (real or synthesized).
	StreamStateError                        // Turn ended with a terminal error chunk.
	StreamStateAborted                      // Cancelled by the caller before a terminal chunk.
)

func (s StreamState) String() string {
	switch s {
	case StreamStateNew:
		return "new"
	case StreamStateStreaming:
		return "streaming"
	case StreamStateComplete:
		return "complete"
	case StreamStateError:
		return "error"
	case StreamStateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// Stream uses a pull-based iterator pattern over the chunks of one turn.
// Cancellation flows through the context passed to Streamer.Stream().
//
// Next() returns chunks in wire order. Unless the caller aborts, the last
// chunk is exactly one terminal chunk (see IsTerminal) and every later call
// returns io.EOF. Failures are never returned as Go errors; they arrive as
// ChunkError values. Behavior on abort:
//   - Context cancelled: Next() returns io.EOF, State() is StreamStateAborted.
//   - Close() before a terminal chunk: State() is StreamStateAborted and
//     Next() returns ErrStreamClosed.
//
// Close() releases the connection and is idempotent.
type Stream interface {
	Next() (Chunk, error)
	State() StreamState
	Close() error
}

// Streamer opens one stream per chat turn.
//
// The error return is reserved for caller-programming errors such as
// ErrTurnInFlight; all protocol, authentication and transport failures are
// delivered through the returned Stream.
type Streamer interface {
	Stream(ctx context.Context, req ChatRequest) (Stream, error)
}

// StreamChatResponse opens a stream and invokes onChunk for every chunk in
// arrival order. It returns once the turn reaches a terminal state; onChunk
// is never called after it returns.
func StreamChatResponse(ctx context.Context, s Streamer, req ChatRequest, onChunk func(Chunk)) error {
	if onChunk == nil {
		return fmt.Errorf("nil chunk handler: %w", ErrValidation)
	}
	stream, err := s.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		c, err := stream.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		onChunk(c)
	}
}
