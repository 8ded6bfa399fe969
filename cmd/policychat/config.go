package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces the environment variables read by loadConfig.
const envPrefix = "POLICYCHAT"

// config holds settings read from the environment.
type config struct {
	BaseURL            string  `envconfig:"BASE_URL" default:"http://localhost:8000"`
	StreamPath         string  `envconfig:"STREAM_PATH"`
	Token              string  `envconfig:"TOKEN"`
	JWTSecret          string  `envconfig:"JWT_SECRET"`
	UserID             int64   `envconfig:"USER_ID"`
	AllowAnonymous     bool    `envconfig:"ALLOW_ANONYMOUS" default:"false"`
	LogLevel           string  `envconfig:"LOG_LEVEL" default:"info"`
	LogDev             bool    `envconfig:"LOG_DEV" default:"false"`
	LogFile            string  `envconfig:"LOG_FILE"`
	DecodeFailureLimit int     `envconfig:"DECODE_FAILURE_LIMIT" default:"0"`
	RateLimit          float64 `envconfig:"RATE_LIMIT" default:"0"`
}

// loadConfig reads the POLICYCHAT_* environment variables.
func loadConfig() (config, error) {
	var cfg config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// options are the command-line flags.
type options struct {
	baseURL    string
	token      string
	userID     int64
	chatID     int64
	prompt     string
	transcript string
}

// parseFlags parses args (without the program name). Problems are reported
// on stderr together with the usage text.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("policychat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.baseURL, "base-url", "", "Backend base URL (overrides POLICYCHAT_BASE_URL)")
	fs.StringVar(&o.token, "token", "", "Bearer token (overrides POLICYCHAT_TOKEN)")
	fs.Int64Var(&o.userID, "user-id", 0, "User ID sent with each message (default: from token claims)")
	fs.Int64Var(&o.chatID, "chat-id", 0, "Continue an existing chat")
	fs.StringVar(&o.prompt, "p", "", "Print mode: send one prompt, stream the answer to stdout and exit")
	fs.StringVar(&o.transcript, "transcript", "", "Path to a transcript file to resume and save")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	var err error
	switch {
	case fs.NArg() > 0:
		err = fmt.Errorf("unexpected arguments: %v", fs.Args())
	case o.chatID < 0:
		err = errors.New("-chat-id must be positive")
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return options{}, err
	}
	return o, nil
}

// merge applies flag overrides on top of the environment config.
func merge(cfg config, o options) config {
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.token != "" {
		cfg.Token = o.token
	}
	if o.userID != 0 {
		cfg.UserID = o.userID
	}
	return cfg
}
