package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ragchat/internal/transport"

	"github.com/stretchr/testify/require"
)

type askReply struct {
	resp transport.AskResponse
	err  error
}

type fakeBackend struct {
	mu         sync.Mutex
	threads    []transport.Thread
	listErr    error
	history    map[string][]transport.HistoryEntry
	historyErr error
	onHistory  func(threadID string)
	replies    []askReply
	asks       []transport.AskRequest
	renameErr  error
	deleteErr  error
	renamed    map[string]string
	deleted    []string
}

func (f *fakeBackend) ListThreads(ctx context.Context, userID string) ([]transport.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]transport.Thread(nil), f.threads...), nil
}

func (f *fakeBackend) History(ctx context.Context, sessionID, userID, threadID string) ([]transport.HistoryEntry, error) {
	f.mu.Lock()
	hook := f.onHistory
	entries, err := f.history[threadID], f.historyErr
	f.mu.Unlock()
	if hook != nil {
		hook(threadID)
	}
	return entries, err
}

func (f *fakeBackend) Ask(ctx context.Context, req transport.AskRequest) (transport.AskResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asks = append(f.asks, req)
	if len(f.replies) == 0 {
		return transport.AskResponse{Answer: "ok"}, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.resp, r.err
}

func (f *fakeBackend) RenameThread(ctx context.Context, threadID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return f.renameErr
	}
	if f.renamed == nil {
		f.renamed = map[string]string{}
	}
	f.renamed[threadID] = title
	return nil
}

func (f *fakeBackend) DeleteThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, threadID)
	kept := f.threads[:0]
	for _, t := range f.threads {
		if t.ID != threadID {
			kept = append(kept, t)
		}
	}
	f.threads = kept
	return nil
}

func (f *fakeBackend) askCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.asks)
}

func (f *fakeBackend) lastAsk() transport.AskRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.asks[len(f.asks)-1]
}

type recorder struct {
	NopListener
	mu        sync.Mutex
	notices   []Notice
	active    []string
	busy      []bool
	removed   []string
	appended  []Message
	finalized []Message
	resets    int
	threads   int
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *recorder) ActiveThreadChanged(id string) {
	r.mu.Lock()
	r.active = append(r.active, id)
	r.mu.Unlock()
}

func (r *recorder) BusyChanged(b bool) {
	r.mu.Lock()
	r.busy = append(r.busy, b)
	r.mu.Unlock()
}

func (r *recorder) MessageRemoved(id string) {
	r.mu.Lock()
	r.removed = append(r.removed, id)
	r.mu.Unlock()
}

func (r *recorder) MessageAppended(m Message) {
	r.mu.Lock()
	r.appended = append(r.appended, m)
	r.mu.Unlock()
}

func (r *recorder) MessageFinalized(m Message) {
	r.mu.Lock()
	r.finalized = append(r.finalized, m)
	r.mu.Unlock()
}

func (r *recorder) TimelineReset(string) {
	r.mu.Lock()
	r.resets++
	r.mu.Unlock()
}

func (r *recorder) ThreadListChanged([]ThreadSummary) {
	r.mu.Lock()
	r.threads++
	r.mu.Unlock()
}

func (r *recorder) lastNotice() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}

func newTestController(t *testing.T, fb *fakeBackend) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	c, err := New(Options{
		Backend:  fb,
		Session:  ClientSession{SessionID: "sess_test", UserID: "u1", UseRAG: true},
		Listener: rec,
	})
	require.NoError(t, err)
	return c, rec
}

var errOffline = errors.New("dial tcp: connection refused")
