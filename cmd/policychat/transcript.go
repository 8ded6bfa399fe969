package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/policychat"
	pcjson "github.com/fwojciec/policychat/json"
	"github.com/google/uuid"
)

// loadOrCreateTranscript resumes the transcript at path, or starts a new one
// when path is empty or does not exist yet.
func loadOrCreateTranscript(path string, now time.Time) (policychat.Transcript, error) {
	if path != "" {
		t, err := pcjson.LoadTranscript(path)
		switch {
		case err == nil:
			return t, nil
		case !errors.Is(err, os.ErrNotExist):
			return policychat.Transcript{}, fmt.Errorf("load transcript: %w", err)
		}
	}
	return policychat.Transcript{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func defaultTranscriptPath(id string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".policychat", "transcripts", id+".json")
}
