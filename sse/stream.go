package sse

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/fwojciec/policychat"
	pcjson "github.com/fwojciec/policychat/json"
	"go.uber.org/zap"
)

// stream implements [policychat.Stream] by reading SSE events from an HTTP
// response body. All reads happen on the caller's goroutine inside Next.
type stream struct {
	parent  context.Context // caller context; cancellation means abort
	cancel  context.CancelFunc
	release func()
	logger  *zap.Logger

	body    io.ReadCloser
	scanner *bufio.Scanner

	// pending is a terminal chunk decided before any event was read, e.g. a
	// rejected request. It is delivered by the first Next.
	pending policychat.Chunk

	decodeLimit int
	failures    int   // consecutive undecodable events
	chatID      int64 // from chat_info, echoed on a synthesized completion

	mu     sync.Mutex
	state  policychat.StreamState
	closed bool
	once   sync.Once
}

// Interface compliance check.
var _ policychat.Stream = (*stream)(nil)

// failedStream returns a stream whose only chunk is a terminal error. No
// connection is attempted.
func failedStream(logger *zap.Logger, msg string) *stream {
	s := &stream{parent: context.Background(), logger: logger}
	s.fail(msg)
	return s
}

func (s *stream) open(body io.ReadCloser) {
	s.body = body
	s.scanner = bufio.NewScanner(body)
	s.scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	s.logger.Debug("stream open")
}

// fail queues msg as the terminal error chunk and releases the connection.
func (s *stream) fail(msg string) {
	s.pending = policychat.ChunkError{Message: msg}
	s.shutdown()
}

// abort ends the stream without a terminal chunk.
func (s *stream) abort() {
	s.setState(policychat.StreamStateAborted)
	s.shutdown()
}

// finish records a terminal state and releases the connection.
func (s *stream) finish(state policychat.StreamState) {
	s.setState(state)
	s.shutdown()
}

// shutdown cancels the request, closes the body and frees the chat slot.
// Safe to call more than once.
func (s *stream) shutdown() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.body != nil {
			s.body.Close()
		}
		if s.release != nil {
			s.release()
		}
		s.logger.Debug("stream closed", zap.Stringer("state", s.State()))
	})
}

func (s *stream) setState(state policychat.StreamState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Close wins over anything a concurrent Next decides.
	if s.closed {
		return
	}
	s.state = state
}

// Next returns the next chunk. The final chunk is always exactly one
// terminal chunk (real or synthesized); later calls return io.EOF.
func (s *stream) Next() (policychat.Chunk, error) {
	s.mu.Lock()
	state, closed := s.state, s.closed
	s.mu.Unlock()

	switch {
	case closed:
		return nil, policychat.ErrStreamClosed
	case state == policychat.StreamStateComplete,
		state == policychat.StreamStateError,
		state == policychat.StreamStateAborted:
		return nil, io.EOF
	}

	if s.pending != nil {
		c := s.pending
		s.pending = nil
		s.finish(policychat.StreamStateError)
		return c, nil
	}

	for {
		if s.parent.Err() != nil {
			s.logger.Debug("stream aborted", zap.Error(s.parent.Err()))
			s.abort()
			return nil, io.EOF
		}

		data, err := s.readEvent()
		if err != nil {
			return s.readFailed(err)
		}
		s.setState(policychat.StreamStateStreaming)

		c, err := pcjson.DecodeChunk([]byte(data))
		if err != nil {
			return s.decodeFailed(err), nil
		}
		if c == nil {
			continue // heartbeat
		}
		s.failures = 0

		switch v := c.(type) {
		case policychat.ChunkChatInfo:
			if s.chatID == 0 {
				s.chatID = v.ChatID
			}
		case policychat.ChunkStatus:
			if v.Complete() {
				s.finish(policychat.StreamStateComplete)
			}
		case policychat.ChunkError:
			s.logger.Warn("server reported error", zap.String("message", v.Message))
			s.finish(policychat.StreamStateError)
		}
		return c, nil
	}
}

// readFailed maps a read error to the end of the turn.
func (s *stream) readFailed(err error) (policychat.Chunk, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	switch {
	case closed:
		return nil, policychat.ErrStreamClosed
	case s.parent.Err() != nil:
		s.logger.Debug("stream aborted", zap.Error(s.parent.Err()))
		s.abort()
		return nil, io.EOF
	case err == io.EOF:
		// The peer closed without a terminal chunk; the turn is complete.
		s.logger.Debug("stream closed by peer")
		s.finish(policychat.StreamStateComplete)
		return policychat.ChunkStatus{Status: policychat.StatusComplete, ChatID: s.chatID}, nil
	default:
		s.logger.Error("stream read failed", zap.Error(err))
		s.finish(policychat.StreamStateError)
		return policychat.ChunkError{Message: connectionMessage(err)}, nil
	}
}

// decodeFailed reports an undecodable event. The turn continues unless the
// consecutive failure limit is reached.
func (s *stream) decodeFailed(err error) policychat.Chunk {
	s.failures++
	s.logger.Warn("failed to decode stream event", zap.Error(err), zap.Int("consecutive", s.failures))
	if s.decodeLimit > 0 && s.failures >= s.decodeLimit {
		s.finish(policychat.StreamStateError)
		return policychat.ChunkError{Message: msgTooManyFailures}
	}
	return policychat.ChunkError{Message: msgDecodeFailure, Recoverable: true}
}

// readEvent reads lines until a complete SSE event is assembled and returns
// its data payload. Multiple data lines are joined with newlines.
func (s *stream) readEvent() (string, error) {
	var data strings.Builder
	var hasData bool

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			// Empty line signals end of event.
			if hasData {
				return data.String(), nil
			}
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "":
			// Comment line; servers use these as keep-alives.
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		}
		// event, id and retry carry nothing the chunk envelope lacks.
	}

	if err := s.scanner.Err(); err != nil {
		return "", err
	}

	// Scanner exhausted without error = EOF.
	if hasData {
		return data.String(), nil
	}
	return "", io.EOF
}

// State returns the current stream state.
func (s *stream) State() policychat.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close releases the connection. Closing before a terminal chunk aborts the
// turn. Close is idempotent.
func (s *stream) Close() error {
	s.mu.Lock()
	switch s.state {
	case policychat.StreamStateComplete, policychat.StreamStateError, policychat.StreamStateAborted:
	default:
		s.state = policychat.StreamStateAborted
		s.closed = true
	}
	s.mu.Unlock()
	s.shutdown()
	return nil
}
