package policychat_test

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/fwojciec/policychat"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembler_Apply(t *testing.T) {
	t.Parallel()

	t.Run("policy answer scenario", func(t *testing.T) {
		t.Parallel()
		output := json.RawMessage(`[{"policy":"RAD-SAF-001","score":0.91}]`)
		chunks := []policychat.Chunk{
			policychat.ChunkChatInfo{ChatID: 1, Title: "Radiation Safety..."},
			policychat.ChunkToolCall{ID: "t1", Name: "find_similar_chunks", Input: json.RawMessage(`{"query":"radiation safety for pregnant staff"}`)},
			policychat.ChunkToolOutput{ToolCallID: "t1", Output: output},
			policychat.ChunkTextDelta{Delta: "Policy "},
			policychat.ChunkTextDelta{Delta: "RAD-SAF-001 "},
			policychat.ChunkTextDelta{Delta: "states"},
			policychat.ChunkTextDelta{Delta: "..."},
			policychat.ChunkStatus{Status: policychat.StatusComplete, ChatID: 1},
		}

		a := policychat.NewAssembler()
		for _, c := range chunks {
			require.NoError(t, a.Apply(c))
		}

		turn := a.Turn()
		assert.True(t, a.Done())
		assert.Equal(t, int64(1), turn.ChatID)
		assert.Equal(t, "Radiation Safety...", turn.Title)
		assert.Equal(t, "Policy RAD-SAF-001 states...", turn.Text)
		assert.Equal(t, policychat.TurnComplete, turn.Terminal)
		require.Contains(t, turn.ToolCalls, "t1")
		assert.Equal(t, "find_similar_chunks", turn.ToolCalls["t1"].Name)
		assert.JSONEq(t, string(output), string(turn.ToolCalls["t1"].Output))
		assert.Equal(t, []string{"RAD-SAF-001"}, turn.References())
	})

	t.Run("second chat_info is ignored", func(t *testing.T) {
		t.Parallel()
		a := policychat.NewAssembler()
		require.NoError(t, a.Apply(policychat.ChunkChatInfo{ChatID: 1, Title: "first"}))
		require.NoError(t, a.Apply(policychat.ChunkChatInfo{ChatID: 2, Title: "second"}))

		turn := a.Turn()
		assert.Equal(t, int64(1), turn.ChatID)
		assert.Equal(t, "first", turn.Title)
	})

	t.Run("text deltas are appended verbatim", func(t *testing.T) {
		t.Parallel()
		a := policychat.NewAssembler()
		for _, d := range []string{"a", " ", "", "b\n", "  c"} {
			require.NoError(t, a.Apply(policychat.ChunkTextDelta{Delta: d}))
		}
		assert.Equal(t, "a b\n  c", a.Turn().Text)
	})

	t.Run("duplicate tool call id overwrites", func(t *testing.T) {
		t.Parallel()
		a := policychat.NewAssembler()
		require.NoError(t, a.Apply(policychat.ChunkToolCall{ID: "t1", Name: "old", Input: json.RawMessage(`{"q":1}`)}))
		require.NoError(t, a.Apply(policychat.ChunkToolCall{ID: "t2", Name: "other"}))
		require.NoError(t, a.Apply(policychat.ChunkToolCall{ID: "t1", Name: "new", Input: json.RawMessage(`{"q":2}`)}))

		turn := a.Turn()
		require.Len(t, turn.ToolCalls, 2)
		assert.Equal(t, "new", turn.ToolCalls["t1"].Name)
		assert.JSONEq(t, `{"q":2}`, string(turn.ToolCalls["t1"].Input))
		assert.Equal(t, []string{"t1", "t2"}, turn.CallOrder)
	})

	t.Run("tool output without call is dropped and reported", func(t *testing.T) {
		t.Parallel()
		var reported []error
		a := policychat.NewAssembler(policychat.WithViolationHandler(func(err error) {
			reported = append(reported, err)
		}))
		require.NoError(t, a.Apply(policychat.ChunkToolCall{ID: "t1", Name: "find_similar_chunks"}))

		err := a.Apply(policychat.ChunkToolOutput{ToolCallID: "missing", Output: json.RawMessage(`"x"`)})
		assert.ErrorIs(t, err, policychat.ErrProtocolViolation)
		require.Len(t, reported, 1)
		assert.Contains(t, reported[0].Error(), "missing")

		turn := a.Turn()
		assert.False(t, turn.ToolCalls["t1"].HasOutput())
		assert.NotContains(t, turn.ToolCalls, "missing")
		assert.Equal(t, policychat.TurnOpen, turn.Terminal)
	})

	t.Run("tool output with null payload still counts as attached", func(t *testing.T) {
		t.Parallel()
		a := policychat.NewAssembler()
		require.NoError(t, a.Apply(policychat.ChunkToolCall{ID: "t1", Name: "lookup"}))
		require.NoError(t, a.Apply(policychat.ChunkToolOutput{ToolCallID: "t1"}))
		assert.True(t, a.Turn().ToolCalls["t1"].HasOutput())
	})

	t.Run("error chunk ends the turn", func(t *testing.T) {
		t.Parallel()
		a := policychat.NewAssembler()
		require.NoError(t, a.Apply(policychat.ChunkTextDelta{Delta: "partial"}))
		require.NoError(t, a.Apply(policychat.ChunkError{Message: "500: Internal Server Error"}))

		turn := a.Turn()
		assert.True(t, a.Done())
		assert.Equal(t, policychat.TurnError, turn.Terminal)
		assert.Equal(t, "500: Internal Server Error", turn.Error)
		assert.Equal(t, "partial", turn.Text)
	})

	t.Run("recoverable error is recorded as warning", func(t *testing.T) {
		t.Parallel()
		a := policychat.NewAssembler()
		require.NoError(t, a.Apply(policychat.ChunkError{Message: "could not process event", Recoverable: true}))
		require.NoError(t, a.Apply(policychat.ChunkTextDelta{Delta: "ok"}))

		turn := a.Turn()
		assert.False(t, a.Done())
		assert.Equal(t, []string{"could not process event"}, turn.Warnings)
		assert.Equal(t, "ok", turn.Text)
	})

	t.Run("non-complete status keeps turn open", func(t *testing.T) {
		t.Parallel()
		a := policychat.NewAssembler()
		require.NoError(t, a.Apply(policychat.ChunkStatus{Status: "searching"}))
		assert.False(t, a.Done())
	})

	t.Run("status supplies chat id when chat_info is absent", func(t *testing.T) {
		t.Parallel()
		a := policychat.NewAssembler()
		require.NoError(t, a.Apply(policychat.ChunkTextDelta{Delta: "hi"}))
		require.NoError(t, a.Apply(policychat.ChunkStatus{Status: policychat.StatusComplete, ChatID: 9}))
		assert.Equal(t, int64(9), a.Turn().ChatID)
	})

	t.Run("chunks after terminal are dropped", func(t *testing.T) {
		t.Parallel()
		var reported int
		a := policychat.NewAssembler(policychat.WithViolationHandler(func(error) { reported++ }))
		require.NoError(t, a.Apply(policychat.ChunkTextDelta{Delta: "done"}))
		require.NoError(t, a.Apply(policychat.ChunkStatus{Status: policychat.StatusComplete}))

		assert.ErrorIs(t, a.Apply(policychat.ChunkTextDelta{Delta: " more"}), policychat.ErrProtocolViolation)
		assert.ErrorIs(t, a.Apply(policychat.ChunkError{Message: "late"}), policychat.ErrProtocolViolation)

		turn := a.Turn()
		assert.Equal(t, "done", turn.Text)
		assert.Equal(t, policychat.TurnComplete, turn.Terminal)
		assert.Empty(t, turn.Error)
		assert.Equal(t, 2, reported)
	})

	t.Run("nil chunk is a violation", func(t *testing.T) {
		t.Parallel()
		a := policychat.NewAssembler()
		assert.ErrorIs(t, a.Apply(nil), policychat.ErrProtocolViolation)
	})
}

func TestAssembler_TurnIsSnapshot(t *testing.T) {
	t.Parallel()
	a := policychat.NewAssembler()
	require.NoError(t, a.Apply(policychat.ChunkToolCall{ID: "t1", Name: "lookup"}))

	snap := a.Turn()
	snap.ToolCalls["t1"] = policychat.ToolCall{Name: "mutated"}
	snap.CallOrder[0] = "mutated"

	turn := a.Turn()
	assert.Equal(t, "lookup", turn.ToolCalls["t1"].Name)
	assert.Equal(t, []string{"t1"}, turn.CallOrder)
}

func TestAssemble(t *testing.T) {
	t.Parallel()
	turn := policychat.Assemble([]policychat.Chunk{
		policychat.ChunkToolOutput{ToolCallID: "ghost"},
		policychat.ChunkTextDelta{Delta: "x"},
		policychat.ChunkStatus{Status: policychat.StatusComplete},
		policychat.ChunkTextDelta{Delta: "y"},
	})
	assert.Equal(t, "x", turn.Text)
	assert.Equal(t, policychat.TurnComplete, turn.Terminal)
}

func TestAssembler_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("concatenated deltas reproduce the answer", prop.ForAll(
		func(deltas []string) bool {
			a := policychat.NewAssembler()
			for _, d := range deltas {
				if err := a.Apply(policychat.ChunkTextDelta{Delta: d}); err != nil {
					return false
				}
			}
			return a.Turn().Text == strings.Join(deltas, "")
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.Property("outputs attach only to announced calls", prop.ForAll(
		func(called, answered []string) bool {
			a := policychat.NewAssembler()
			for _, id := range called {
				_ = a.Apply(policychat.ChunkToolCall{ID: id, Name: "find_similar_chunks"})
			}
			for _, id := range answered {
				_ = a.Apply(policychat.ChunkToolOutput{ToolCallID: id, Output: json.RawMessage(`1`)})
			}
			turn := a.Turn()
			for id, call := range turn.ToolCalls {
				if call.HasOutput() != slices.Contains(answered, id) {
					return false
				}
			}
			return len(turn.ToolCalls) == len(turn.CallOrder)
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("nothing changes after the terminal chunk", prop.ForAll(
		func(before, after []string) bool {
			a := policychat.NewAssembler()
			for _, d := range before {
				_ = a.Apply(policychat.ChunkTextDelta{Delta: d})
			}
			_ = a.Apply(policychat.ChunkStatus{Status: policychat.StatusComplete})
			want := a.Turn().Text
			for _, d := range after {
				_ = a.Apply(policychat.ChunkTextDelta{Delta: d})
			}
			return a.Turn().Text == want && a.Turn().Terminal == policychat.TurnComplete
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
