// Command policychat is a terminal client for the policy assistant.
//
// Usage:
//
//	POLICYCHAT_TOKEN=eyJ... policychat [flags]
//
// Flags:
//
//	-base-url string     Backend base URL (default: $POLICYCHAT_BASE_URL or http://localhost:8000)
//	-token string        Bearer token (default: $POLICYCHAT_TOKEN)
//	-user-id int         User ID sent with each message (default: from token claims)
//	-chat-id int         Continue an existing chat
//	-p string            Print mode: answer one prompt on stdout and exit
//	-transcript string   Path to a transcript file to resume and save
//
// In print mode the exit status is 1 when the turn ends with an error and 2
// when the session has expired.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/fwojciec/policychat"
	bt "github.com/fwojciec/policychat/bubbletea"
	pcjson "github.com/fwojciec/policychat/json"
	"github.com/fwojciec/policychat/jwt"
	"github.com/fwojciec/policychat/sse"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// exitError carries a process exit status out of run.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	// Env is read here only and passed down as values.
	cfg, err := loadConfig()
	if err == nil {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err = run(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr)
		stop()
	}
	var ee *exitError
	switch {
	case errors.As(err, &ee):
		os.Exit(ee.code)
	case err != nil:
		fmt.Fprintf(os.Stderr, "policychat: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		// The flag set has already printed the problem and usage.
		if errors.Is(err, flag.ErrHelp) {
			return &exitError{code: 0}
		}
		return &exitError{code: 2}
	}
	cfg = merge(cfg, opts)
	printMode := opts.prompt != ""

	logger := zap.NewNop()
	if printMode || cfg.LogFile != "" {
		logger, err = newLogger(cfg.LogLevel, cfg.LogDev, cfg.LogFile)
		if err != nil {
			return err
		}
	}
	defer func() { _ = logger.Sync() }()

	var guardOpts []jwt.Option
	if cfg.JWTSecret != "" {
		guardOpts = append(guardOpts, jwt.WithSecret([]byte(cfg.JWTSecret)))
	}
	guard := jwt.New(guardOpts...)
	if cfg.Token != "" {
		if err := guard.Set(cfg.Token); err != nil {
			return fmt.Errorf("token: %w", err)
		}
	}
	userID := cfg.UserID
	if id, ok := guard.Identity(); ok && userID == 0 {
		userID = id.UserID
	}

	transcript, err := loadOrCreateTranscript(opts.transcript, time.Now())
	if err != nil {
		return err
	}
	if opts.chatID != 0 {
		transcript.ChatID = opts.chatID
	}

	var expired atomic.Bool
	expiredCh := make(chan struct{}, 1)
	clientOpts := []sse.Option{
		sse.WithLogger(logger),
		sse.WithAllowAnonymous(cfg.AllowAnonymous),
		sse.WithDecodeFailureLimit(cfg.DecodeFailureLimit),
		sse.WithSessionExpiredHandler(func() {
			expired.Store(true)
			select {
			case expiredCh <- struct{}{}:
			default:
			}
		}),
	}
	if cfg.StreamPath != "" {
		clientOpts = append(clientOpts, sse.WithStreamPath(cfg.StreamPath))
	}
	if cfg.RateLimit > 0 {
		clientOpts = append(clientOpts, sse.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)))
	}
	client := sse.New(cfg.BaseURL, guard, clientOpts...)

	save := func(t policychat.Transcript) error {
		if opts.transcript == "" {
			return nil
		}
		return pcjson.SaveTranscript(opts.transcript, t)
	}

	if printMode {
		req := policychat.ChatRequest{UserID: userID, Message: opts.prompt, ChatID: transcript.ChatIDPtr()}
		turn, err := printTurn(ctx, client, req, stdout, stderr, logger)
		if err != nil {
			return err
		}
		transcript.Record(opts.prompt, turn, time.Now())
		if err := save(transcript); err != nil {
			return fmt.Errorf("save transcript: %w", err)
		}
		if code := exitCode(turn, expired.Load()); code != 0 {
			return &exitError{code: code}
		}
		return nil
	}

	m := bt.New(client, &transcript,
		bt.WithUserID(userID),
		bt.WithLogger(logger),
		bt.WithTurnHandler(save),
	)
	if _, err := bt.Run(ctx, m, expiredCh); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}

	if opts.transcript == "" && len(transcript.Exchanges) > 0 {
		path := defaultTranscriptPath(transcript.ID)
		if err := pcjson.SaveTranscript(path, transcript); err != nil {
			return fmt.Errorf("auto-save transcript: %w", err)
		}
		fmt.Fprintf(stderr, "Transcript saved to %s\n", path)
	}
	return nil
}
