// Package json implements the policychat wire formats: the chunk envelope
// carried by each stream event, the chat request body, and the local
// transcript file.
package json

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fwojciec/policychat"
)

// envelope is the wire format of one stream event payload.
// chat_id may also appear at the top level on status chunks.
type envelope struct {
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
	ChatID *int64          `json:"chat_id,omitempty"`
}

// Per-tag payloads. Pointer fields distinguish absent from zero values so
// required fields can be enforced. camelCase aliases are accepted on decode.
type chatInfoDTO struct {
	ChatID      *int64  `json:"chat_id,omitempty"`
	ChatIDCamel *int64  `json:"chatId,omitempty"`
	Title       *string `json:"title,omitempty"`
}

type textDeltaDTO struct {
	Delta *string `json:"delta"`
}

type toolCallDTO struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

type toolOutputDTO struct {
	ToolCallID      string          `json:"tool_call_id,omitempty"`
	ToolCallIDCamel string          `json:"toolCallId,omitempty"`
	Output          json.RawMessage `json:"output,omitempty"`
}

type statusDTO struct {
	Status      *string `json:"status"`
	ChatID      *int64  `json:"chat_id,omitempty"`
	ChatIDCamel *int64  `json:"chatId,omitempty"`
}

type errorDTO struct {
	Message *string `json:"message"`
}

// heartbeat reports whether payload is a keep-alive with no chunk in it.
func heartbeat(payload []byte) bool {
	switch strings.TrimSpace(string(payload)) {
	case "", ":", "{}", "ping":
		return true
	}
	return false
}

// DecodeChunk decodes one event payload. It returns (nil, nil) for
// heartbeats and an error wrapping policychat.ErrProtocol when the payload is
// not valid JSON, carries an unknown tag, or does not match its tag's schema.
func DecodeChunk(payload []byte) (policychat.Chunk, error) {
	if heartbeat(payload) {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("json: decode envelope: %v: %w", err, policychat.ErrProtocol)
	}

	switch policychat.ChunkTag(env.Type) {
	case "ping", "heartbeat":
		return nil, nil
	case policychat.TagChatInfo:
		return decodeChatInfo(env)
	case policychat.TagTextDelta:
		return decodeTextDelta(env)
	case policychat.TagToolCall:
		return decodeToolCall(env)
	case policychat.TagToolOutput:
		return decodeToolOutput(env)
	case policychat.TagStatus:
		return decodeStatus(env)
	case policychat.TagError:
		return decodeError(env)
	case "":
		return nil, fmt.Errorf("json: missing chunk type: %w", policychat.ErrProtocol)
	default:
		return nil, fmt.Errorf("json: unknown chunk type %q: %w", env.Type, policychat.ErrProtocol)
	}
}

func decodeData(env envelope, dst any) error {
	if len(env.Data) == 0 || bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return fmt.Errorf("json: %s: missing data: %w", env.Type, policychat.ErrProtocol)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("json: %s: %v: %w", env.Type, err, policychat.ErrProtocol)
	}
	return nil
}

func missing(tag, field string) error {
	return fmt.Errorf("json: %s: missing %s: %w", tag, field, policychat.ErrProtocol)
}

func firstID(ids ...*int64) *int64 {
	for _, id := range ids {
		if id != nil {
			return id
		}
	}
	return nil
}

func decodeChatInfo(env envelope) (policychat.Chunk, error) {
	var dto chatInfoDTO
	if err := decodeData(env, &dto); err != nil {
		return nil, err
	}
	id := firstID(dto.ChatID, dto.ChatIDCamel)
	if id == nil {
		return nil, missing(env.Type, "chat_id")
	}
	c := policychat.ChunkChatInfo{ChatID: *id}
	if dto.Title != nil {
		c.Title = *dto.Title
	}
	return c, nil
}

func decodeTextDelta(env envelope) (policychat.Chunk, error) {
	var dto textDeltaDTO
	if err := decodeData(env, &dto); err != nil {
		return nil, err
	}
	if dto.Delta == nil {
		return nil, missing(env.Type, "delta")
	}
	return policychat.ChunkTextDelta{Delta: *dto.Delta}, nil
}

func decodeToolCall(env envelope) (policychat.Chunk, error) {
	var dto toolCallDTO
	if err := decodeData(env, &dto); err != nil {
		return nil, err
	}
	if dto.ID == "" {
		return nil, missing(env.Type, "id")
	}
	if dto.Name == "" {
		return nil, missing(env.Type, "name")
	}
	return policychat.ChunkToolCall{ID: dto.ID, Name: dto.Name, Input: dto.Input}, nil
}

func decodeToolOutput(env envelope) (policychat.Chunk, error) {
	var dto toolOutputDTO
	if err := decodeData(env, &dto); err != nil {
		return nil, err
	}
	id := dto.ToolCallID
	if id == "" {
		id = dto.ToolCallIDCamel
	}
	if id == "" {
		return nil, missing(env.Type, "tool_call_id")
	}
	return policychat.ChunkToolOutput{ToolCallID: id, Output: dto.Output}, nil
}

func decodeStatus(env envelope) (policychat.Chunk, error) {
	var dto statusDTO
	if err := decodeData(env, &dto); err != nil {
		return nil, err
	}
	if dto.Status == nil {
		return nil, missing(env.Type, "status")
	}
	c := policychat.ChunkStatus{Status: *dto.Status}
	if id := firstID(dto.ChatID, dto.ChatIDCamel, env.ChatID); id != nil {
		c.ChatID = *id
	}
	return c, nil
}

func decodeError(env envelope) (policychat.Chunk, error) {
	var dto errorDTO
	if err := decodeData(env, &dto); err != nil {
		return nil, err
	}
	if dto.Message == nil {
		return nil, missing(env.Type, "message")
	}
	return policychat.ChunkError{Message: *dto.Message}, nil
}

// EncodeChunk encodes c in the envelope format DecodeChunk accepts.
// Recoverable errors are client-side only and encode like any error chunk.
func EncodeChunk(c policychat.Chunk) ([]byte, error) {
	var data any
	switch v := c.(type) {
	case policychat.ChunkChatInfo:
		data = struct {
			ChatID int64  `json:"chat_id"`
			Title  string `json:"title,omitempty"`
		}{v.ChatID, v.Title}
	case policychat.ChunkTextDelta:
		data = struct {
			Delta string `json:"delta"`
		}{v.Delta}
	case policychat.ChunkToolCall:
		data = toolCallDTO{ID: v.ID, Name: v.Name, Input: v.Input}
	case policychat.ChunkToolOutput:
		data = toolOutputDTO{ToolCallID: v.ToolCallID, Output: v.Output}
	case policychat.ChunkStatus:
		data = struct {
			Status string `json:"status"`
			ChatID int64  `json:"chat_id,omitempty"`
		}{v.Status, v.ChatID}
	case policychat.ChunkError:
		data = struct {
			Message string `json:"message"`
		}{v.Message}
	default:
		return nil, fmt.Errorf("json: unknown chunk type %T", c)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("json: encode %s: %w", c.Tag(), err)
	}
	return json.Marshal(envelope{Type: string(c.Tag()), Data: raw})
}
