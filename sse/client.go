package sse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/fwojciec/policychat"
	pcjson "github.com/fwojciec/policychat/json"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Interface compliance check.
var _ policychat.Streamer = (*Client)(nil)

// Client implements [policychat.Streamer] for the chat stream endpoint.
type Client struct {
	baseURL        string
	streamPath     string
	guard          policychat.SessionGuard
	httpClient     *http.Client
	rest           *resty.Client
	logger         *zap.Logger
	onExpired      func()
	allowAnonymous bool
	decodeLimit    int
	limiter        *rate.Limiter
	userAgent      string

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for stream connections.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithStreamPath overrides the endpoint path appended to the base URL.
func WithStreamPath(path string) Option {
	return func(c *Client) { c.streamPath = path }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSessionExpiredHandler sets a callback invoked once per stream rejected
// with 401, after the session guard has been cleared. The TUI uses it to send
// the user back to the login surface.
func WithSessionExpiredHandler(fn func()) Option {
	return func(c *Client) { c.onExpired = fn }
}

// WithAllowAnonymous permits opening streams without a credential.
func WithAllowAnonymous(allow bool) Option {
	return func(c *Client) { c.allowAnonymous = allow }
}

// WithDecodeFailureLimit makes the n-th consecutive undecodable event end the
// turn with a terminal error. n <= 0 means malformed events never end a turn.
func WithDecodeFailureLimit(n int) Option {
	return func(c *Client) { c.decodeLimit = n }
}

// WithRateLimiter throttles how often streams are opened.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a [Client] for the backend at baseURL. guard may be nil only
// when anonymous access is allowed.
func New(baseURL string, guard policychat.SessionGuard, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		streamPath: defaultStreamPath,
		guard:      guard,
		logger:     zap.NewNop(),
		userAgent:  defaultUserAgent,
		inFlight:   make(map[int64]struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.httpClient != nil {
		c.rest = resty.NewWithClient(c.httpClient)
	} else {
		c.rest = resty.New()
	}
	c.rest.
		SetBaseURL(c.baseURL).
		SetLogger(c.logger.Sugar()).
		SetHeader("User-Agent", c.userAgent)
	return c
}

// Stream opens a stream for one chat turn.
//
// The error return is reserved for misuse: a second concurrent stream for the
// same chat (policychat.ErrTurnInFlight) or a missing session guard. Every
// other failure is delivered as the stream's single terminal error chunk.
func (c *Client) Stream(ctx context.Context, req policychat.ChatRequest) (policychat.Stream, error) {
	if c.guard == nil && !c.allowAnonymous {
		return nil, fmt.Errorf("sse: nil session guard: %w", policychat.ErrUnauthenticated)
	}

	requestID := uuid.NewString()
	logger := c.logger.With(zap.String("request_id", requestID))
	if req.ChatID != nil {
		logger = logger.With(zap.Int64("chat_id", *req.ChatID))
	}

	// Input errors are resolved before any connection is attempted.
	if err := req.Validate(); err != nil {
		logger.Debug("rejecting request", zap.Error(err))
		if strings.TrimSpace(req.Message) == "" {
			return failedStream(logger, msgEmptyMessage), nil
		}
		return failedStream(logger, msgInvalidChatID), nil
	}
	var token string
	if c.guard != nil && c.guard.Authenticated() {
		token = c.guard.Token()
	}
	if token == "" && !c.allowAnonymous {
		logger.Debug("rejecting request without credential")
		return failedStream(logger, msgNotLoggedIn), nil
	}

	release, err := c.acquire(req.ChatID)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &stream{
		parent:      ctx,
		cancel:      cancel,
		release:     release,
		logger:      logger,
		decodeLimit: c.decodeLimit,
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(streamCtx); err != nil {
			return c.connectFailed(s, err), nil
		}
	}

	body, err := pcjson.EncodeRequest(req)
	if err != nil {
		return c.connectFailed(s, err), nil
	}

	r := c.rest.R().
		SetContext(streamCtx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		SetHeader("X-Request-Id", requestID).
		SetBody(body).
		SetDoNotParseResponse(true)
	if token != "" {
		r.SetAuthToken(token)
	}

	logger.Debug("opening stream")
	resp, err := r.Post(c.streamPath)
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			resp.RawBody().Close()
		}
		return c.connectFailed(s, err), nil
	}

	code := resp.StatusCode()
	if code < 200 || code > 299 {
		return c.rejected(s, code, resp.RawBody()), nil
	}

	s.open(resp.RawBody())
	return s, nil
}

// StreamChatResponse opens a stream and delivers every chunk to onChunk in
// arrival order, returning once the turn has ended.
func (c *Client) StreamChatResponse(ctx context.Context, req policychat.ChatRequest, onChunk func(policychat.Chunk)) error {
	return policychat.StreamChatResponse(ctx, c, req, onChunk)
}

// connectFailed finishes s for an error raised before a response arrived.
// A cancelled parent context is an abort, not a failure.
func (c *Client) connectFailed(s *stream, err error) *stream {
	if s.parent.Err() != nil {
		s.logger.Debug("stream aborted before connect", zap.Error(err))
		s.abort()
		return s
	}
	s.logger.Error("stream connection failed", zap.Error(err))
	s.fail(connectionMessage(err))
	return s
}

// rejected finishes s for a non-2xx response.
func (c *Client) rejected(s *stream, code int, body io.ReadCloser) *stream {
	var detail string
	if body != nil {
		data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		body.Close()
		detail = pcjson.DecodeErrorDetail(data)
	}
	logger := s.logger.With(zap.Int("status", code))

	switch {
	case code == http.StatusUnauthorized:
		logger.Info("session expired")
		if c.guard != nil {
			c.guard.Clear()
		}
		s.fail(msgSessionExpired)
		if c.onExpired != nil {
			c.onExpired()
		}
	case code >= 400 && code < 500 && code != http.StatusTooManyRequests && detail != "":
		logger.Warn("stream request rejected", zap.String("detail", detail))
		s.fail(detail)
	default:
		logger.Warn("stream request failed", zap.String("detail", detail))
		s.fail(statusMessage(code))
	}
	return s
}

// acquire reserves the per-chat stream slot. Requests without a chat id
// start a new conversation and never conflict.
func (c *Client) acquire(chatID *int64) (func(), error) {
	if chatID == nil {
		return func() {}, nil
	}
	id := *chatID

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[id]; busy {
		return nil, fmt.Errorf("sse: chat %d: %w", id, policychat.ErrTurnInFlight)
	}
	c.inFlight[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.inFlight, id)
			c.mu.Unlock()
		})
	}, nil
}

func statusMessage(code int) string {
	return fmt.Sprintf("%d: %s", code, http.StatusText(code))
}

func connectionMessage(err error) string {
	if err == nil || err.Error() == "" {
		return msgConnectionError
	}
	return err.Error()
}
