package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendOptimisticAllowsOnePending(t *testing.T) {
	tl := NewTimeline()
	_, err := tl.AppendOptimistic(RoleUser, "hi", nil)
	require.NoError(t, err)
	pid, err := tl.AppendOptimistic(RoleAssistant, "", nil)
	require.NoError(t, err)

	_, err = tl.AppendOptimistic(RoleAssistant, "", nil)
	require.ErrorIs(t, err, ErrPendingExists)
	require.Equal(t, 2, tl.Len())

	p, ok := tl.Pending()
	require.True(t, ok)
	require.Equal(t, pid, p.ID)
}

func TestFinalizeOnlyTouchesPending(t *testing.T) {
	tl := NewTimeline()
	uid, _ := tl.AppendOptimistic(RoleUser, "q", nil)
	pid, _ := tl.AppendOptimistic(RoleAssistant, "", nil)

	_, ok := tl.Finalize("msg_missing", "x", nil)
	require.False(t, ok)
	_, ok = tl.Finalize(uid, "x", nil)
	require.False(t, ok)

	m, ok := tl.Finalize(pid, "answer", []ContextItem{{Source: "a.pdf", Content: "c"}})
	require.True(t, ok)
	require.Equal(t, StatusComplete, m.Status)
	require.Len(t, m.Context, 1)

	_, ok = tl.Finalize(pid, "again", nil)
	require.False(t, ok)
	got, _ := tl.Get(pid)
	require.Equal(t, "answer", got.Text)
}

func TestDiscardMissingIsNoop(t *testing.T) {
	tl := NewTimeline()
	tl.AppendOptimistic(RoleUser, "q", nil)
	require.False(t, tl.Discard("msg_missing"))
	require.Equal(t, 1, tl.Len())
}

func TestTruncateAfterReleasesOnce(t *testing.T) {
	tl := NewTimeline()
	keep := NewFileRef("keep.pdf", "application/pdf", []byte("k"))
	drop := NewFileRef("drop.pdf", "application/pdf", []byte("d"))

	first, _ := tl.AppendOptimistic(RoleUser, "A", []FileRef{keep})
	tl.AppendOptimistic(RoleAssistant, "", nil)
	second, _ := tl.AppendOptimistic(RoleUser, "C", []FileRef{drop})

	removed, ok := tl.TruncateAfter(first)
	require.True(t, ok)
	require.Len(t, removed, 2)
	require.Equal(t, second, removed[1])
	require.Equal(t, 1, tl.Len())

	require.False(t, keep.Content.Released())
	require.True(t, drop.Content.Released())
	require.False(t, drop.Content.Release())

	_, err := drop.Content.Bytes()
	require.ErrorIs(t, err, ErrReleased)

	_, ok = tl.TruncateAfter("msg_missing")
	require.False(t, ok)
}

func TestResetBumpsGeneration(t *testing.T) {
	tl := NewTimeline()
	f := NewFileRef("a.png", "image/png", []byte("p"))
	tl.AppendOptimistic(RoleUser, "x", []FileRef{f})
	gen := tl.Generation()

	tl.Reset("t2")
	require.Equal(t, gen+1, tl.Generation())
	require.Equal(t, "t2", tl.ThreadID())
	require.True(t, tl.Empty())
	require.True(t, f.Content.Released())

	tl.Adopt("t3")
	require.Equal(t, gen+1, tl.Generation())
	require.Equal(t, "t3", tl.ThreadID())
}

func TestLoadMarksEverythingComplete(t *testing.T) {
	tl := NewTimeline()
	tl.Load([]Message{
		{Role: RoleUser, Text: "a", Status: StatusPending},
		{Role: RoleAssistant, Text: "b"},
	})
	for _, m := range tl.Messages() {
		require.Equal(t, StatusComplete, m.Status)
		require.NotEmpty(t, m.ID)
	}
	_, ok := tl.Pending()
	require.False(t, ok)

	tl.Load(nil)
	require.True(t, tl.Empty())
}

func TestMessagesReturnsCopies(t *testing.T) {
	tl := NewTimeline()
	id, _ := tl.AppendOptimistic(RoleUser, "orig", nil)
	msgs := tl.Messages()
	msgs[0].Text = "changed"
	got, _ := tl.Get(id)
	require.Equal(t, "orig", got.Text)
}
