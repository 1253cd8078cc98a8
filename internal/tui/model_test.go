package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"ragchat/internal/chat"
	"ragchat/internal/events"
	"ragchat/internal/history"
	"ragchat/internal/transport"
	"ragchat/internal/tui/slash"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	mu      sync.Mutex
	threads []transport.Thread
	answer  transport.AskResponse
	askErr  error
	asks    []transport.AskRequest
	renamed map[string]string
}

func (s *stubBackend) ListThreads(ctx context.Context, userID string) ([]transport.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.Thread(nil), s.threads...), nil
}

func (s *stubBackend) History(ctx context.Context, sessionID, userID, threadID string) ([]transport.HistoryEntry, error) {
	return []transport.HistoryEntry{
		{Role: "user", Message: "earlier question"},
		{Role: "assistant", Message: "earlier answer"},
	}, nil
}

func (s *stubBackend) Ask(ctx context.Context, req transport.AskRequest) (transport.AskResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asks = append(s.asks, req)
	return s.answer, s.askErr
}

func (s *stubBackend) RenameThread(ctx context.Context, threadID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renamed == nil {
		s.renamed = map[string]string{}
	}
	s.renamed[threadID] = title
	return nil
}

func (s *stubBackend) DeleteThread(ctx context.Context, threadID string) error {
	return nil
}

func newTestModel(t *testing.T, backend *stubBackend, opts Options) *Model {
	t.Helper()
	ctrl, err := chat.New(chat.Options{
		Backend: backend,
		Session: chat.ClientSession{SessionID: "sess_test", UserID: "u1", UseRAG: true},
	})
	require.NoError(t, err)
	opts.Controller = ctrl
	m := New(opts)
	m.resize(100, 40)
	return m
}

// run 同步执行命令并把结果交回 Update，模拟 Bubble Tea 的事件循环。
func run(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			run(m, c)
		}
		return
	}
	if msg == nil {
		return
	}
	_, next := m.Update(msg)
	run(m, next)
}

func TestStartSelectsFirstThread(t *testing.T) {
	backend := &stubBackend{threads: []transport.Thread{{ID: "t1", Title: "First"}, {ID: "t2", Title: "Second"}}}
	m := newTestModel(t, backend, Options{})

	run(m, m.start())

	require.True(t, m.started)
	require.Equal(t, "t1", m.snapshot.ActiveThread)
	require.Len(t, m.snapshot.Messages, 2)
	require.Equal(t, "earlier answer", m.snapshot.Messages[1].Text)
	require.Contains(t, m.View(), "First")
}

func TestPromptsArePersisted(t *testing.T) {
	store := history.New(t.TempDir())
	require.NoError(t, store.Append("", "from last time"))
	backend := &stubBackend{answer: transport.AskResponse{Answer: "ok", ThreadID: "t3"}}
	m := newTestModel(t, backend, Options{Prompts: store})

	text, ok := m.history.Prev("")
	require.True(t, ok)
	require.Equal(t, "from last time", text)
	m.history.ResetBrowsing()

	run(m, m.submit("fresh prompt"))

	got, err := store.Recent(0)
	require.NoError(t, err)
	require.Equal(t, []string{"from last time", "fresh prompt"}, got)
}

func TestEnterSubmitsAndFinalizesInline(t *testing.T) {
	backend := &stubBackend{answer: transport.AskResponse{Answer: "hi there", ThreadID: "t9"}}
	m := newTestModel(t, backend, Options{})

	m.textarea.SetValue("hello")
	cmd, handled := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, handled)
	require.Equal(t, "", m.textarea.Value())
	require.True(t, m.snapshot.Busy)

	run(m, cmd)

	require.False(t, m.snapshot.Busy)
	require.Equal(t, "t9", m.snapshot.ActiveThread)
	require.Len(t, m.snapshot.Messages, 2)
	require.Equal(t, chat.StatusComplete, m.snapshot.Messages[1].Status)
	require.Equal(t, "hi there", m.snapshot.Messages[1].Text)
	require.Len(t, backend.asks, 1)
	require.Equal(t, "hello", backend.asks[0].Question)
}

func TestEnterOnEmptyInputDoesNothing(t *testing.T) {
	m := newTestModel(t, &stubBackend{}, Options{})

	cmd, handled := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, handled)
	require.Nil(t, cmd)
	require.Empty(t, m.snapshot.Messages)
}

func TestFailedSendOffersRetry(t *testing.T) {
	backend := &stubBackend{askErr: errors.New("connection refused")}
	m := newTestModel(t, backend, Options{})

	run(m, m.submit("hello"))

	require.True(t, m.snapshot.CanRetry)
	last := m.snapshot.Messages[len(m.snapshot.Messages)-1]
	require.True(t, last.Error)
	require.Equal(t, chat.LevelError, m.notice.Level)
	require.True(t, m.notice.Retryable)

	backend.mu.Lock()
	backend.askErr = nil
	backend.answer = transport.AskResponse{Answer: "recovered", ThreadID: "t1"}
	backend.mu.Unlock()

	run(m, m.runCommand(slash.CommandRetry, ""))

	require.False(t, m.snapshot.CanRetry)
	last = m.snapshot.Messages[len(m.snapshot.Messages)-1]
	require.Equal(t, "recovered", last.Text)
	require.Len(t, backend.asks, 2)
}

func TestUnknownSlashCommandWarns(t *testing.T) {
	m := newTestModel(t, &stubBackend{}, Options{})

	m.textarea.SetValue("/bogus")
	cmd, handled := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, handled)
	require.Nil(t, cmd)
	require.Equal(t, chat.LevelWarning, m.notice.Level)
	require.Contains(t, m.notice.Text, "unknown command")
}

func TestAttachSendsFileWithNextMessage(t *testing.T) {
	backend := &stubBackend{answer: transport.AskResponse{Answer: "read it"}}
	m := newTestModel(t, backend, Options{
		ReadFile: func(path string) ([]byte, error) {
			return []byte("%PDF-1.4 notes"), nil
		},
	})

	run(m, m.runCommand(slash.CommandAttach, "/tmp/notes.pdf"))
	require.Equal(t, 1, m.composer.Len())
	run(m, m.runCommand(slash.CommandAttach, "/tmp/notes.pdf"))
	require.Equal(t, 1, m.composer.Len())
	require.Contains(t, m.notice.Text, "already attached")
	require.Contains(t, m.View(), "notes.pdf")

	run(m, m.submit(""))

	require.Equal(t, 0, m.composer.Len())
	require.Len(t, backend.asks, 1)
	require.Len(t, backend.asks[0].Files, 1)
	require.Equal(t, "notes.pdf", backend.asks[0].Files[0].Name)
	require.Equal(t, []byte("%PDF-1.4 notes"), backend.asks[0].Files[0].Data)
}

func TestAttachRejectsUnsupportedFile(t *testing.T) {
	m := newTestModel(t, &stubBackend{}, Options{
		ReadFile: func(path string) ([]byte, error) {
			return []byte{0x7f, 'E', 'L', 'F', 0, 1, 2}, nil
		},
	})

	run(m, m.runCommand(slash.CommandAttach, "tool.bin"))

	require.Equal(t, 0, m.composer.Len())
	require.Equal(t, chat.LevelWarning, m.notice.Level)
}

func TestRenameAndDetach(t *testing.T) {
	backend := &stubBackend{threads: []transport.Thread{{ID: "t1", Title: "Old"}}}
	m := newTestModel(t, backend, Options{})
	run(m, m.start())

	run(m, m.runCommand(slash.CommandRename, "  Fresh title "))

	require.Equal(t, "Fresh title", backend.renamed["t1"])
	require.Equal(t, "Fresh title", m.snapshot.Threads[0].Title)

	run(m, m.runCommand(slash.CommandDetach, ""))
	require.Contains(t, m.notice.Text, "Removed 0")
}

func TestEditLastPrefillsAndResends(t *testing.T) {
	backend := &stubBackend{answer: transport.AskResponse{Answer: "first", ThreadID: "t1"}}
	m := newTestModel(t, backend, Options{})
	run(m, m.submit("draft question"))

	run(m, m.runCommand(slash.CommandEdit, ""))
	require.Equal(t, "/edit draft question", m.textarea.Value())

	backend.mu.Lock()
	backend.answer = transport.AskResponse{Answer: "second"}
	backend.mu.Unlock()
	run(m, m.runCommand(slash.CommandEdit, "better question"))

	require.Len(t, m.snapshot.Messages, 2)
	require.Equal(t, "better question", m.snapshot.Messages[0].Text)
	require.Equal(t, "second", m.snapshot.Messages[1].Text)
	require.Equal(t, "t1", backend.asks[1].ThreadID)
}

func TestCopyAndExport(t *testing.T) {
	backend := &stubBackend{
		threads: []transport.Thread{{ID: "t1", Title: "Notes"}},
		answer:  transport.AskResponse{Answer: "the answer", ThreadID: "t1"},
	}
	var copied string
	dir := t.TempDir()
	m := newTestModel(t, backend, Options{
		ExportDir: dir,
		CopyText: func(text string) error {
			copied = text
			return nil
		},
	})
	run(m, m.submit("question"))

	run(m, m.runCommand(slash.CommandCopy, ""))
	require.Equal(t, "the answer", copied)
	require.Equal(t, chat.LevelSuccess, m.notice.Level)

	run(m, m.runCommand(slash.CommandExport, "json"))
	require.Equal(t, chat.LevelSuccess, m.notice.Level)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "Notes_"))
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(data), `"the answer"`)
}

func TestRAGToggle(t *testing.T) {
	backend := &stubBackend{}
	m := newTestModel(t, backend, Options{})

	run(m, m.runCommand(slash.CommandRAG, "off"))
	require.False(t, m.snapshot.Session.UseRAG)
	run(m, m.runCommand(slash.CommandRAG, ""))
	require.True(t, m.snapshot.Session.UseRAG)
	run(m, m.runCommand(slash.CommandRAG, "maybe"))
	require.True(t, m.snapshot.Session.UseRAG)
	require.Equal(t, chat.LevelWarning, m.notice.Level)
}

func TestPickerSelectsThread(t *testing.T) {
	backend := &stubBackend{threads: []transport.Thread{{ID: "t1", Title: "Alpha"}, {ID: "t2", Title: "Beta"}}}
	var changed []string
	m := newTestModel(t, backend, Options{OnThreadChanged: func(id string) { changed = append(changed, id) }})
	run(m, m.start())

	run(m, m.runCommand(slash.CommandSearch, "bet"))
	require.True(t, m.picking)
	require.Len(t, m.threads.Items(), 1)

	cmd, _ := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.False(t, m.picking)
	run(m, cmd)
	require.Equal(t, "t2", m.snapshot.ActiveThread)
	require.Equal(t, []string{"t1", "t2"}, changed)
}

func TestPromptHistoryBrowsing(t *testing.T) {
	var h promptHistory
	h.Add("one")
	h.Add("two")
	h.Add("two")

	text, ok := h.Prev("draft")
	require.True(t, ok)
	require.Equal(t, "two", text)
	text, _ = h.Prev(text)
	require.Equal(t, "one", text)
	text, _ = h.Prev(text)
	require.Equal(t, "one", text)

	text, _ = h.Next()
	require.Equal(t, "two", text)
	text, ok = h.Next()
	require.True(t, ok)
	require.Equal(t, "draft", text)
	require.False(t, h.Browsing())
	_, ok = h.Next()
	require.False(t, ok)
}

func TestClosedManagerSettlesSubmission(t *testing.T) {
	backend := &stubBackend{answer: transport.AskResponse{Answer: "unreachable"}}
	mgr := events.NewManager(events.ManagerConfig{}, nil)
	m := newTestModel(t, backend, Options{Manager: mgr})
	mgr.SetReconciler(m.ctrl)
	mgr.Close()

	run(m, m.submit("hello"))

	require.False(t, m.ctrl.Busy())
	require.False(t, m.snapshot.Busy)
	require.Len(t, m.snapshot.Messages, 2)
	require.Equal(t, "hello", m.snapshot.Messages[0].Text)
	require.True(t, m.snapshot.Messages[1].Error)
	require.Equal(t, chat.LevelError, m.notice.Level)
	require.Contains(t, m.notice.Text, events.ErrManagerClosed.Error())
	require.Empty(t, backend.asks)

	_, ok := m.ctrl.PendingAction()
	require.True(t, ok)
}
