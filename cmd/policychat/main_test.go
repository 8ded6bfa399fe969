package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/policychat"
	pcjson "github.com/fwojciec/policychat/json"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func signToken(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":     "nurse@example.com",
		"user_id": userID,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

// recorded holds the last request a chatServer received.
type recorded struct {
	mu     sync.Mutex
	header http.Header
	body   []byte
}

func (r *recorded) request(t *testing.T) (http.Header, map[string]any) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var req map[string]any
	require.NoError(t, json.Unmarshal(r.body, &req))
	return r.header, req
}

// chatServer replays chunks as SSE events and records the last request.
func chatServer(t *testing.T, status int, chunks ...policychat.Chunk) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.header = r.Header.Clone()
		rec.body = body
		rec.mu.Unlock()
		if status != http.StatusOK {
			http.Error(w, `{"detail":"nope"}`, status)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, c := range chunks {
			data, err := pcjson.EncodeChunk(c)
			if !assert.NoError(t, err) {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestRun_PrintMode(t *testing.T) {
	t.Parallel()

	t.Run("streams answer and saves transcript", func(t *testing.T) {
		t.Parallel()
		srv, rec := chatServer(t, http.StatusOK,
			policychat.ChunkChatInfo{ChatID: 12, Title: "Dosimeters"},
			policychat.ChunkTextDelta{Delta: "Always wear it."},
			policychat.ChunkStatus{Status: policychat.StatusComplete, ChatID: 12},
		)
		path := filepath.Join(t.TempDir(), "chat.json")
		token := signToken(t, 55)
		cfg := config{BaseURL: srv.URL, JWTSecret: testSecret, LogLevel: "error"}

		var stdout, stderr bytes.Buffer
		err := run(context.Background(), cfg, []string{"-token", token, "-p", "Do I need a dosimeter?", "-transcript", path}, &stdout, &stderr)
		require.NoError(t, err)

		assert.Equal(t, "Always wear it.\n", stdout.String())
		header, req := rec.request(t)
		assert.Equal(t, "Bearer "+token, header.Get("Authorization"))
		assert.EqualValues(t, 55, req["user_id"])
		assert.Nil(t, req["chat_id"])

		tr, err := pcjson.LoadTranscript(path)
		require.NoError(t, err)
		assert.Equal(t, int64(12), tr.ChatID)
		require.Len(t, tr.Exchanges, 1)
		assert.Equal(t, "Do I need a dosimeter?", tr.Exchanges[0].Prompt)
	})

	t.Run("resumed transcript continues its chat", func(t *testing.T) {
		t.Parallel()
		srv, rec := chatServer(t, http.StatusOK,
			policychat.ChunkStatus{Status: policychat.StatusComplete},
		)
		path := filepath.Join(t.TempDir(), "chat.json")
		require.NoError(t, pcjson.SaveTranscript(path, policychat.Transcript{ID: "x", ChatID: 77}))
		cfg := config{BaseURL: srv.URL, AllowAnonymous: true, LogLevel: "error"}

		err := run(context.Background(), cfg, []string{"-user-id", "3", "-p", "again", "-transcript", path}, io.Discard, io.Discard)
		require.NoError(t, err)

		_, req := rec.request(t)
		assert.EqualValues(t, 77, req["chat_id"])
		assert.EqualValues(t, 3, req["user_id"])
	})

	t.Run("error chunk exits 1", func(t *testing.T) {
		t.Parallel()
		srv, _ := chatServer(t, http.StatusOK, policychat.ChunkError{Message: "Backend unavailable"})
		cfg := config{BaseURL: srv.URL, AllowAnonymous: true, LogLevel: "error"}

		var stderr bytes.Buffer
		err := run(context.Background(), cfg, []string{"-p", "q"}, io.Discard, &stderr)
		var ee *exitError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, 1, ee.code)
		assert.Contains(t, stderr.String(), "Backend unavailable")
	})

	t.Run("missing credential exits 1 without connecting", func(t *testing.T) {
		t.Parallel()
		cfg := config{BaseURL: "http://127.0.0.1:0", LogLevel: "error"}

		var stderr bytes.Buffer
		err := run(context.Background(), cfg, []string{"-p", "q"}, io.Discard, &stderr)
		var ee *exitError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, 1, ee.code)
		assert.Contains(t, stderr.String(), "You must be logged in to chat.")
	})

	t.Run("rejected session exits 2", func(t *testing.T) {
		t.Parallel()
		srv, _ := chatServer(t, http.StatusUnauthorized)
		cfg := config{BaseURL: srv.URL, LogLevel: "error"}

		var stderr bytes.Buffer
		err := run(context.Background(), cfg, []string{"-token", signToken(t, 1), "-p", "q"}, io.Discard, &stderr)
		var ee *exitError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, 2, ee.code)
		assert.Contains(t, stderr.String(), "Your session has expired.")
	})

	t.Run("bad token is reported", func(t *testing.T) {
		t.Parallel()
		cfg := config{BaseURL: "http://127.0.0.1:0", LogLevel: "error"}
		err := run(context.Background(), cfg, []string{"-token", "garbage", "-p", "q"}, io.Discard, io.Discard)
		require.Error(t, err)
		assert.ErrorIs(t, err, policychat.ErrUnauthenticated)
	})

	t.Run("bad flag exits 2", func(t *testing.T) {
		t.Parallel()
		err := run(context.Background(), config{}, []string{"-nope"}, io.Discard, io.Discard)
		var ee *exitError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, 2, ee.code)
	})
}

func TestLoadOrCreateTranscript(t *testing.T) {
	t.Parallel()

	t.Run("missing file starts a new transcript", func(t *testing.T) {
		t.Parallel()
		tr, err := loadOrCreateTranscript(filepath.Join(t.TempDir(), "new.json"), testNow)
		require.NoError(t, err)
		assert.NotEmpty(t, tr.ID)
		assert.Equal(t, testNow, tr.CreatedAt)
		assert.Zero(t, tr.ChatID)
	})

	t.Run("empty path starts a new transcript", func(t *testing.T) {
		t.Parallel()
		a, err := loadOrCreateTranscript("", testNow)
		require.NoError(t, err)
		b, err := loadOrCreateTranscript("", testNow)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("corrupt file is an error", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
		_, err := loadOrCreateTranscript(path, testNow)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load transcript")
	})
}
