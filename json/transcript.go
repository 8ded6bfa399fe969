package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/policychat"
)

// transcriptEnvelope is the v1 wire format for a persisted transcript.
type transcriptEnvelope struct {
	Version   int           `json:"version"`
	ID        string        `json:"id"`
	ChatID    int64         `json:"chat_id,omitempty"`
	Title     string        `json:"title,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Exchanges []exchangeDTO `json:"exchanges"`
}

type exchangeDTO struct {
	Prompt    string    `json:"prompt"`
	Turn      turnDTO   `json:"turn"`
	Timestamp time.Time `json:"timestamp"`
}

type turnDTO struct {
	ChatID    int64         `json:"chat_id,omitempty"`
	Title     string        `json:"title,omitempty"`
	Text      string        `json:"text"`
	ToolCalls []toolCallRec `json:"tool_calls,omitempty"`
	Terminal  string        `json:"terminal"`
	Error     string        `json:"error,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
}

type toolCallRec struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
}

// MarshalTranscript serializes a Transcript to JSON in v1 envelope format.
func MarshalTranscript(t policychat.Transcript) ([]byte, error) {
	env := transcriptEnvelope{
		Version:   1,
		ID:        t.ID,
		ChatID:    t.ChatID,
		Title:     t.Title,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		Exchanges: make([]exchangeDTO, len(t.Exchanges)),
	}
	for i, ex := range t.Exchanges {
		env.Exchanges[i] = exchangeDTO{
			Prompt:    ex.Prompt,
			Turn:      marshalTurn(ex.Turn),
			Timestamp: ex.Timestamp,
		}
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalTranscript deserializes a Transcript from JSON in v1 envelope format.
func UnmarshalTranscript(data []byte) (policychat.Transcript, error) {
	var env transcriptEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return policychat.Transcript{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return policychat.Transcript{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	exchanges := make([]policychat.Exchange, len(env.Exchanges))
	for i, dto := range env.Exchanges {
		turn, err := unmarshalTurn(dto.Turn)
		if err != nil {
			return policychat.Transcript{}, fmt.Errorf("exchange %d: %w", i, err)
		}
		exchanges[i] = policychat.Exchange{Prompt: dto.Prompt, Turn: turn, Timestamp: dto.Timestamp}
	}
	return policychat.Transcript{
		ID:        env.ID,
		ChatID:    env.ChatID,
		Title:     env.Title,
		Exchanges: exchanges,
		CreatedAt: env.CreatedAt,
		UpdatedAt: env.UpdatedAt,
	}, nil
}

func marshalTurn(t policychat.Turn) turnDTO {
	dto := turnDTO{
		ChatID:   t.ChatID,
		Title:    t.Title,
		Text:     t.Text,
		Terminal: t.Terminal.String(),
		Error:    t.Error,
		Warnings: t.Warnings,
	}
	for _, c := range t.Calls() {
		dto.ToolCalls = append(dto.ToolCalls, toolCallRec{ID: c.ID, Name: c.Name, Input: c.Input, Output: c.Output})
	}
	return dto
}

func unmarshalTurn(dto turnDTO) (policychat.Turn, error) {
	t := policychat.Turn{
		ChatID:    dto.ChatID,
		Title:     dto.Title,
		Text:      dto.Text,
		ToolCalls: make(map[string]policychat.ToolCall, len(dto.ToolCalls)),
		Error:     dto.Error,
		Warnings:  dto.Warnings,
	}
	switch dto.Terminal {
	case "open":
		t.Terminal = policychat.TurnOpen
	case "complete":
		t.Terminal = policychat.TurnComplete
	case "error":
		t.Terminal = policychat.TurnError
	default:
		return policychat.Turn{}, fmt.Errorf("unknown terminal state %q", dto.Terminal)
	}
	for _, c := range dto.ToolCalls {
		if _, seen := t.ToolCalls[c.ID]; !seen {
			t.CallOrder = append(t.CallOrder, c.ID)
		}
		t.ToolCalls[c.ID] = policychat.ToolCall{ID: c.ID, Name: c.Name, Input: c.Input, Output: c.Output}
	}
	return t, nil
}

// SaveTranscript writes a Transcript to a JSON file, creating parent
// directories as needed. The file is replaced atomically.
func SaveTranscript(path string, t policychat.Transcript) error {
	data, err := MarshalTranscript(t)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// LoadTranscript reads a Transcript from a JSON file.
func LoadTranscript(path string) (policychat.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return policychat.Transcript{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalTranscript(data)
}
