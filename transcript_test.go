package policychat_test

import (
	"testing"
	"time"

	"github.com/fwojciec/policychat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_Record(t *testing.T) {
	t.Parallel()

	t.Run("adopts chat identity from first identified turn", func(t *testing.T) {
		t.Parallel()
		now := time.Now()
		var tr policychat.Transcript
		assert.Nil(t, tr.ChatIDPtr())

		tr.Record("hello", policychat.Turn{Text: "hi", Terminal: policychat.TurnError}, now)
		assert.Nil(t, tr.ChatIDPtr())

		tr.Record("radiation", policychat.Turn{ChatID: 4, Title: "Radiation Safety"}, now)
		tr.Record("more", policychat.Turn{ChatID: 5, Title: "Other"}, now)

		require.NotNil(t, tr.ChatIDPtr())
		assert.Equal(t, int64(4), *tr.ChatIDPtr())
		assert.Equal(t, "Radiation Safety", tr.Title)
		assert.Len(t, tr.Exchanges, 3)
		assert.Equal(t, now, tr.UpdatedAt)
	})

	t.Run("chat id pointer is a copy", func(t *testing.T) {
		t.Parallel()
		tr := policychat.Transcript{ChatID: 3}
		p := tr.ChatIDPtr()
		*p = 99
		assert.Equal(t, int64(3), tr.ChatID)
	})
}
