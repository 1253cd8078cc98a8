package chat

import (
	"context"
	"errors"
	"testing"

	"ragchat/internal/transport"

	"github.com/stretchr/testify/require"
)

func TestSubmitInNewChatAdoptsReturnedThread(t *testing.T) {
	fb := &fakeBackend{
		replies: []askReply{{resp: transport.AskResponse{Answer: "Hi there", ThreadID: "t1"}}},
		threads: []transport.Thread{{ID: "t1", Title: "Hello"}},
	}
	c, rec := newTestController(t, fb)

	res, err := c.Submit(context.Background(), Input{Text: "  Hello "})
	require.NoError(t, err)
	require.Equal(t, ResultCompleted, res.Status)
	require.Equal(t, "t1", res.ThreadID)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, RoleUser, msgs[0].Role)
	require.Equal(t, "Hello", msgs[0].Text)
	require.Equal(t, StatusComplete, msgs[1].Status)
	require.Equal(t, "Hi there", msgs[1].Text)
	require.Equal(t, res.MessageID, msgs[1].ID)

	require.Equal(t, "t1", c.ActiveThread())
	require.Equal(t, []string{"t1"}, rec.active)
	require.Len(t, c.Threads(), 1)
	require.False(t, c.Busy())
	require.Equal(t, []bool{true, false}, rec.busy)

	req := fb.lastAsk()
	require.Equal(t, "Hello", req.Question)
	require.Equal(t, "", req.ThreadID)
	require.Equal(t, "sess_test", req.SessionID)
	require.Equal(t, "u1", req.UserID)
	require.True(t, req.UseRAG)
}

func TestSubmitKeepsSelectedThread(t *testing.T) {
	fb := &fakeBackend{
		threads: []transport.Thread{{ID: "t1"}, {ID: "t2"}},
		replies: []askReply{{resp: transport.AskResponse{Answer: "a", ThreadID: "t9"}}},
	}
	c, _ := newTestController(t, fb)
	require.NoError(t, c.Start(context.Background(), "t2"))
	require.Equal(t, "t2", c.ActiveThread())

	_, err := c.Submit(context.Background(), Input{Text: "q"})
	require.NoError(t, err)
	require.Equal(t, "t2", fb.lastAsk().ThreadID)
	require.Equal(t, "t2", c.ActiveThread())
}

func TestEmptySubmissionIsRejectedWithoutMutation(t *testing.T) {
	fb := &fakeBackend{}
	c, rec := newTestController(t, fb)

	_, err := c.Submit(context.Background(), Input{Text: "   "})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.ErrorIs(t, err, ErrEmptySubmission)
	require.Empty(t, c.Messages())
	require.Zero(t, fb.askCount())
	require.Empty(t, rec.appended)
}

func TestRejectedAttachmentLeavesTimelineUntouched(t *testing.T) {
	fb := &fakeBackend{}
	c, _ := newTestController(t, fb)

	big := FileRef{Name: "big.pdf", Size: MaxFileSize + 1, MIMEType: "application/pdf", Content: NewBlob(nil)}
	_, err := c.Submit(context.Background(), Input{Text: "see file", Files: []FileRef{big}})
	require.ErrorIs(t, err, ErrFileTooLarge)

	exe := NewFileRef("tool.exe", "application/x-msdownload", []byte("MZ"))
	_, err = c.Submit(context.Background(), Input{Files: []FileRef{exe}})
	require.ErrorIs(t, err, ErrUnsupportedType)

	require.Empty(t, c.Messages())
	require.Zero(t, fb.askCount())
}

func TestSubmitWithFilesOnly(t *testing.T) {
	fb := &fakeBackend{}
	c, _ := newTestController(t, fb)

	a := NewFileRef("a.pdf", "application/pdf", []byte("%PDF-1"))
	b := NewFileRef("b.png", "image/png", []byte("png"))
	_, err := c.Submit(context.Background(), Input{Files: []FileRef{a, b}})
	require.NoError(t, err)

	msgs := c.Messages()
	require.Equal(t, "📎 a.pdf, 📎 b.png", msgs[0].Text)
	require.Len(t, msgs[0].Attachments, 2)

	req := fb.lastAsk()
	require.Equal(t, "", req.Question)
	require.Len(t, req.Files, 2)
	require.Equal(t, []byte("%PDF-1"), req.Files[0].Data)
	require.Equal(t, "image/png", req.Files[1].MIMEType)

	c.NewThread()
	require.True(t, a.Content.Released())
	require.True(t, b.Content.Released())
}

func TestServerErrorThenRetrySucceeds(t *testing.T) {
	fb := &fakeBackend{
		replies: []askReply{
			{resp: transport.AskResponse{Error: "rate limited"}},
			{resp: transport.AskResponse{Answer: "done"}},
		},
	}
	c, rec := newTestController(t, fb)

	res, err := c.Submit(context.Background(), Input{Text: "Hello"})
	var serr *ServerReportedError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, "rate limited", serr.Message)
	require.Equal(t, ResultServerError, res.Status)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "Error: rate limited", msgs[1].Text)
	require.True(t, msgs[1].Error)
	require.Equal(t, StatusComplete, msgs[1].Status)
	_, pending := c.timeline.Pending()
	require.False(t, pending)

	action, ok := c.PendingAction()
	require.True(t, ok)
	require.Equal(t, ActionSend, action.Kind)
	require.Equal(t, "Hello", action.Text)

	n := rec.lastNotice()
	require.Equal(t, LevelError, n.Level)
	require.True(t, n.Retryable)

	res, err = c.RetryLast(context.Background())
	require.NoError(t, err)
	require.Equal(t, ResultCompleted, res.Status)

	msgs = c.Messages()
	require.Len(t, msgs, 4)
	require.Equal(t, "Hello", msgs[2].Text)
	require.Equal(t, "done", msgs[3].Text)
	_, ok = c.PendingAction()
	require.False(t, ok)
	require.Equal(t, 2, fb.askCount())
}

func TestTransportFailureRecordsRetry(t *testing.T) {
	fb := &fakeBackend{replies: []askReply{{err: errOffline}}}
	c, _ := newTestController(t, fb)

	data := []byte("%PDF-1.7")
	f := NewFileRef("doc.pdf", "application/pdf", data)
	res, err := c.Submit(context.Background(), Input{Text: "read this", Files: []FileRef{f}})
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	require.ErrorIs(t, err, errOffline)
	require.Equal(t, ResultTransportError, res.Status)

	msgs := c.Messages()
	require.Equal(t, connectionErrorText, msgs[len(msgs)-1].Text)

	// The snapshot survives the release of the original handle.
	f.Release()
	action, ok := c.PendingAction()
	require.True(t, ok)
	require.Len(t, action.Files, 1)
	require.Equal(t, data, action.Files[0].Data)

	_, err = c.RetryLast(context.Background())
	require.NoError(t, err)
	require.Equal(t, data, fb.lastAsk().Files[0].Data)
}

func TestRetryFailureOverwritesSlot(t *testing.T) {
	fb := &fakeBackend{replies: []askReply{
		{err: errOffline},
		{resp: transport.AskResponse{Error: "again"}},
	}}
	c, _ := newTestController(t, fb)

	_, err := c.Submit(context.Background(), Input{Text: "x"})
	require.Error(t, err)
	_, err = c.RetryLast(context.Background())
	require.Error(t, err)

	_, ok := c.PendingAction()
	require.True(t, ok)
}

func TestRetryWithEmptySlot(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{})
	_, err := c.RetryLast(context.Background())
	require.ErrorIs(t, err, ErrNothingToRetry)
}

func TestBeginWhileBusy(t *testing.T) {
	fb := &fakeBackend{}
	c, _ := newTestController(t, fb)

	ex, err := c.Begin(Input{Text: "first"})
	require.NoError(t, err)
	require.True(t, c.Busy())

	_, err = c.Begin(Input{Text: "second"})
	require.ErrorIs(t, err, ErrBusy)
	require.Len(t, c.Messages(), 2)

	res := c.Reconcile(ex.Run(context.Background()))
	require.Equal(t, ResultCompleted, res.Status)
	require.False(t, c.Busy())
}

func TestStaleOutcomeIsDropped(t *testing.T) {
	fb := &fakeBackend{
		threads: []transport.Thread{{ID: "t1"}, {ID: "t2"}},
		history: map[string][]transport.HistoryEntry{
			"t2": {{Role: "user", Message: "old"}, {Role: "assistant", Message: "reply"}},
		},
		replies: []askReply{{resp: transport.AskResponse{Error: "late failure"}}},
	}
	c, rec := newTestController(t, fb)
	require.NoError(t, c.Start(context.Background(), "t1"))

	ex, err := c.Begin(Input{Text: "question"})
	require.NoError(t, err)
	require.NoError(t, c.SelectThread(context.Background(), "t2"))

	res := c.Reconcile(ex.Run(context.Background()))
	require.Equal(t, ResultStale, res.Status)
	require.ErrorIs(t, res.Err, ErrStaleResponse)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "old", msgs[0].Text)
	require.False(t, c.Busy())
	_, ok := c.PendingAction()
	require.False(t, ok)
	for _, n := range rec.notices {
		require.NotEqual(t, LevelError, n.Level)
	}
}

func TestFinishReturnsNilErrorForStaleResult(t *testing.T) {
	fb := &fakeBackend{}
	c, _ := newTestController(t, fb)

	ex, err := c.Begin(Input{Text: "q"})
	require.NoError(t, err)
	c.NewThread()
	res, err := c.finish(context.Background(), ex)
	require.NoError(t, err)
	require.Equal(t, ResultStale, res.Status)
	require.Empty(t, c.Messages())
}

func TestEditTruncatesAndResendsOnSameThread(t *testing.T) {
	fb := &fakeBackend{
		threads: []transport.Thread{{ID: "t1"}},
		history: map[string][]transport.HistoryEntry{
			"t1": {
				{Role: "user", Message: "A"},
				{Role: "assistant", Message: "answer to A"},
				{Role: "user", Message: "C"},
				{Role: "assistant", Message: "answer to C"},
			},
		},
		replies: []askReply{{resp: transport.AskResponse{Answer: "answer to B"}}},
	}
	c, rec := newTestController(t, fb)
	require.NoError(t, c.Start(context.Background(), ""))

	first := c.Messages()[0]
	res, err := c.EditMessage(context.Background(), first.ID, "B")
	require.NoError(t, err)
	require.Equal(t, ResultCompleted, res.Status)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, first.ID, msgs[0].ID)
	require.Equal(t, "B", msgs[0].Text)
	require.Equal(t, "answer to B", msgs[1].Text)
	require.Len(t, rec.removed, 3)

	req := fb.lastAsk()
	require.Equal(t, "B", req.Question)
	require.Equal(t, "t1", req.ThreadID)
	require.Empty(t, req.Files)
	require.Equal(t, LevelSuccess, rec.lastNotice().Level)
}

func TestEditRejections(t *testing.T) {
	fb := &fakeBackend{
		threads: []transport.Thread{{ID: "t1"}},
		history: map[string][]transport.HistoryEntry{
			"t1": {{Role: "user", Message: "A"}, {Role: "assistant", Message: "a"}},
		},
	}
	c, _ := newTestController(t, fb)
	require.NoError(t, c.Start(context.Background(), ""))
	msgs := c.Messages()

	_, err := c.EditMessage(context.Background(), msgs[0].ID, " A ")
	require.ErrorIs(t, err, ErrUnchanged)
	_, err = c.EditMessage(context.Background(), msgs[0].ID, "  ")
	require.ErrorIs(t, err, ErrEmptySubmission)
	_, err = c.EditMessage(context.Background(), msgs[1].ID, "new")
	require.ErrorIs(t, err, ErrNotEditable)
	_, err = c.EditMessage(context.Background(), "msg_missing", "new")
	require.ErrorIs(t, err, ErrNotFound)

	require.Len(t, c.Messages(), 2)
	require.Zero(t, fb.askCount())
}

func TestEditFailureRetriesAsPlaceholderOnly(t *testing.T) {
	fb := &fakeBackend{
		threads: []transport.Thread{{ID: "t1"}},
		history: map[string][]transport.HistoryEntry{
			"t1": {{Role: "user", Message: "A"}, {Role: "assistant", Message: "a"}},
		},
		replies: []askReply{{err: errOffline}, {resp: transport.AskResponse{Answer: "b"}}},
	}
	c, _ := newTestController(t, fb)
	require.NoError(t, c.Start(context.Background(), ""))

	_, err := c.EditMessage(context.Background(), c.Messages()[0].ID, "B")
	require.Error(t, err)
	action, ok := c.PendingAction()
	require.True(t, ok)
	require.Equal(t, ActionEditResend, action.Kind)

	_, err = c.RetryLast(context.Background())
	require.NoError(t, err)
	msgs := c.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, RoleUser, msgs[0].Role)
	require.Equal(t, connectionErrorText, msgs[1].Text)
	require.Equal(t, "b", msgs[2].Text)
}

func TestSendAudio(t *testing.T) {
	fb := &fakeBackend{}
	c, _ := newTestController(t, fb)

	_, err := c.SendAudio(context.Background(), AudioClip{Data: []byte("ogg"), MIMEType: "audio/webm"})
	require.NoError(t, err)

	msgs := c.Messages()
	require.Equal(t, audioDisplayText, msgs[0].Text)
	req := fb.lastAsk()
	require.Equal(t, "", req.Question)
	require.Equal(t, "audio_message.webm", req.Files[0].Name)

	_, err = c.SendAudio(context.Background(), AudioClip{})
	require.ErrorIs(t, err, ErrEmptySubmission)
}

func TestThreadListRefreshFailureIsWarning(t *testing.T) {
	fb := &fakeBackend{
		replies: []askReply{{resp: transport.AskResponse{Answer: "hi", ThreadID: "t1"}}},
		listErr: errOffline,
	}
	c, rec := newTestController(t, fb)

	res, err := c.Submit(context.Background(), Input{Text: "Hello"})
	require.NoError(t, err)
	require.Equal(t, ResultCompleted, res.Status)
	require.Equal(t, "t1", c.ActiveThread())
	require.Equal(t, LevelWarning, rec.lastNotice().Level)
}

func TestAbortClearsPendingAndOffersRetry(t *testing.T) {
	fb := &fakeBackend{}
	c, rec := newTestController(t, fb)

	ex, err := c.Begin(Input{Text: "never sent"})
	require.NoError(t, err)
	require.True(t, c.Busy())

	res := c.Abort(ex, errors.New("event manager closed"))
	require.Equal(t, ResultTransportError, res.Status)
	var terr *TransportError
	require.ErrorAs(t, res.Err, &terr)
	require.False(t, c.Busy())
	require.Zero(t, fb.askCount())

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "never sent", msgs[0].Text)
	require.True(t, msgs[1].Error)
	for _, m := range msgs {
		require.NotEqual(t, StatusPending, m.Status)
	}
	require.True(t, rec.lastNotice().Retryable)

	_, ok := c.PendingAction()
	require.True(t, ok)
	_, err = c.RetryLast(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, fb.askCount())
}

func TestStaleOutcomeStillRefreshesThreadList(t *testing.T) {
	fb := &fakeBackend{
		threads: []transport.Thread{{ID: "t9", Title: "Created by the server"}},
		replies: []askReply{{resp: transport.AskResponse{Answer: "hi", ThreadID: "t9"}}},
	}
	c, _ := newTestController(t, fb)

	ex, err := c.Begin(Input{Text: "start something"})
	require.NoError(t, err)
	c.NewThread()

	res := c.Reconcile(ex.Run(context.Background()))
	require.Equal(t, ResultStale, res.Status)
	require.Empty(t, c.Messages())
	require.Empty(t, c.ActiveThread())

	threads := c.Threads()
	require.Len(t, threads, 1)
	require.Equal(t, "t9", threads[0].ID)
}
