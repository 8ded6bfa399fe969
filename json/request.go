package json

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fwojciec/policychat"
)

type requestDTO struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
	ChatID  *int64 `json:"chat_id"`
}

// EncodeRequest serializes a ChatRequest as the stream request body.
// chat_id is always present and null for a new conversation.
func EncodeRequest(req policychat.ChatRequest) ([]byte, error) {
	data, err := json.Marshal(requestDTO{UserID: req.UserID, Message: req.Message, ChatID: req.ChatID})
	if err != nil {
		return nil, fmt.Errorf("json: encode request: %w", err)
	}
	return data, nil
}

// DecodeRequest parses a stream request body.
func DecodeRequest(data []byte) (policychat.ChatRequest, error) {
	var dto requestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return policychat.ChatRequest{}, fmt.Errorf("json: decode request: %w", err)
	}
	return policychat.ChatRequest{UserID: dto.UserID, Message: dto.Message, ChatID: dto.ChatID}, nil
}

// DecodeErrorDetail extracts a human-readable message from an error response
// body. It understands {"detail": "..."}, {"detail": [{"msg": "..."}]} and
// {"message": "..."}, and returns "" when none of them is present.
func DecodeErrorDetail(body []byte) string {
	var dto struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &dto); err != nil {
		return ""
	}

	var s string
	if err := json.Unmarshal(dto.Detail, &s); err == nil && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(dto.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if m := strings.TrimSpace(it.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	return strings.TrimSpace(dto.Message)
}
