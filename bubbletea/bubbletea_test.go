package bubbletea_test

import (
	"context"
	"io"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/policychat"
	bt "github.com/fwojciec/policychat/bubbletea"
	"github.com/fwojciec/policychat/mock"
	"github.com/stretchr/testify/require"
)

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, s policychat.Streamer, tr *policychat.Transcript, opts ...bt.Option) bt.Model {
	t.Helper()
	return initModelWithSize(t, s, tr, 80, 24, opts...)
}

// initModelWithSize creates a model with a custom terminal size.
func initModelWithSize(t *testing.T, s policychat.Streamer, tr *policychat.Transcript, width, height int, opts ...bt.Option) bt.Model {
	t.Helper()
	m := bt.New(s, tr, opts...)
	return updateModel(t, m, tea.WindowSizeMsg{Width: width, Height: height})
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// typeString types s into the input one rune at a time.
func typeString(t *testing.T, m bt.Model, s string) bt.Model {
	t.Helper()
	for _, r := range s {
		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

// applyChunks feeds chunks to the model as if they arrived from a stream.
func applyChunks(t *testing.T, m bt.Model, chunks ...policychat.Chunk) bt.Model {
	t.Helper()
	for _, c := range chunks {
		m = updateModel(t, m, bt.ChunkMsg{Chunk: c})
	}
	return m
}

// replayStreamer returns a streamer that replays chunks and records the
// requests it receives.
type replayStreamer struct {
	mu     sync.Mutex
	reqs   []policychat.ChatRequest
	chunks []policychat.Chunk
}

func (r *replayStreamer) streamer() *mock.Streamer {
	return &mock.Streamer{
		StreamFn: func(_ context.Context, req policychat.ChatRequest) (policychat.Stream, error) {
			r.mu.Lock()
			r.reqs = append(r.reqs, req)
			r.mu.Unlock()
			i := 0
			return &mock.Stream{
				NextFn: func() (policychat.Chunk, error) {
					if i >= len(r.chunks) {
						return nil, io.EOF
					}
					c := r.chunks[i]
					i++
					return c, nil
				},
			}, nil
		},
	}
}

func (r *replayStreamer) requests() []policychat.ChatRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]policychat.ChatRequest(nil), r.reqs...)
}

// nopStreamer ends every turn immediately.
func nopStreamer() *mock.Streamer {
	return (&replayStreamer{}).streamer()
}
