package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"ragchat/internal/logger"
	"ragchat/internal/transport"
)

// Backend is the subset of the endpoint client the controller drives.
type Backend interface {
	ListThreads(ctx context.Context, userID string) ([]transport.Thread, error)
	History(ctx context.Context, sessionID, userID, threadID string) ([]transport.HistoryEntry, error)
	Ask(ctx context.Context, req transport.AskRequest) (transport.AskResponse, error)
	RenameThread(ctx context.Context, threadID, title string) error
	DeleteThread(ctx context.Context, threadID string) error
}

type Options struct {
	Backend  Backend
	Session  ClientSession
	Listener Listener
	Logger   *logger.LogEntry
}

// Controller owns the registry, the active timeline and the retry slot. State changes are
// serialized by one mutex; network calls are never made while it is held, and listener
// callbacks run after it is released.
type Controller struct {
	mu       sync.Mutex
	backend  Backend
	session  ClientSession
	registry Registry
	timeline *Timeline
	retry    RetrySlot
	inflight *Exchange
	listener Listener
	log      *logger.LogEntry
}

// Snapshot is a consistent read of everything a presentation layer renders.
type Snapshot struct {
	Session      ClientSession
	Threads      []ThreadSummary
	ActiveThread string
	Messages     []Message
	Busy         bool
	CanRetry     bool
}

func New(opts Options) (*Controller, error) {
	if opts.Backend == nil {
		return nil, errors.New("chat: backend is required")
	}
	l := opts.Listener
	if l == nil {
		l = NopListener{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("chat")
	}
	return &Controller{
		backend:  opts.Backend,
		session:  opts.Session,
		timeline: NewTimeline(),
		listener: l,
		log:      log,
	}, nil
}

// SetListener replaces the callback target. nil installs a NopListener.
func (c *Controller) SetListener(l Listener) {
	if l == nil {
		l = NopListener{}
	}
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

func (c *Controller) emit(out outbox) {
	if len(out) == 0 {
		return
	}
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	for _, fn := range out {
		fn(l)
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, canRetry := c.retry.Peek()
	return Snapshot{
		Session:      c.session,
		Threads:      c.registry.Threads(),
		ActiveThread: c.timeline.ThreadID(),
		Messages:     c.timeline.Messages(),
		Busy:         c.inflight != nil,
		CanRetry:     canRetry,
	}
}

func (c *Controller) Session() ClientSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SetUseRAG toggles retrieval for subsequent submissions.
func (c *Controller) SetUseRAG(on bool) {
	c.mu.Lock()
	c.session.UseRAG = on
	c.mu.Unlock()
}

func (c *Controller) Threads() []ThreadSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Threads()
}

// SearchThreads filters the registry by fuzzy match on title and preview.
func (c *Controller) SearchThreads(query string) []ThreadSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Search(query)
}

func (c *Controller) ActiveThread() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeline.ThreadID()
}

func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeline.Messages()
}

// Busy reports whether an exchange is awaiting the server.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// PendingAction returns the submission RetryLast would replay.
func (c *Controller) PendingAction() (PendingAction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retry.Peek()
}

// Start loads the thread list and selects preferred when listed, otherwise the first
// thread, otherwise the new-chat state.
func (c *Controller) Start(ctx context.Context, preferred string) error {
	if err := c.ListThreads(ctx); err != nil {
		c.NewThread()
		return err
	}
	c.mu.Lock()
	target := c.registry.First()
	if _, ok := c.registry.Find(preferred); ok && preferred != "" {
		target = preferred
	}
	c.mu.Unlock()
	if target == "" {
		c.NewThread()
		return nil
	}
	return c.SelectThread(ctx, target)
}

// ListThreads refreshes the registry from the server.
func (c *Controller) ListThreads(ctx context.Context) error {
	threads, err := c.backend.ListThreads(ctx, c.Session().UserID)
	if err != nil {
		c.log.WithError(err).Warn("list threads failed")
		return &TransportError{Op: "list threads", Err: err}
	}
	var out outbox
	c.mu.Lock()
	c.replaceThreads(threads, &out)
	c.mu.Unlock()
	c.emit(out)
	return nil
}

func (c *Controller) replaceThreads(threads []transport.Thread, out *outbox) {
	list := make([]ThreadSummary, 0, len(threads))
	for _, t := range threads {
		list = append(list, summaryFromThread(t))
	}
	c.registry.Replace(list)
	out.threads(c.registry.Threads())
}

// SelectThread makes id the active thread and loads its history. Selecting the active
// thread again does nothing. A history response that arrives after another reset is
// dropped.
func (c *Controller) SelectThread(ctx context.Context, id string) error {
	var out outbox
	c.mu.Lock()
	if id != "" && id == c.timeline.ThreadID() {
		c.mu.Unlock()
		return nil
	}
	if _, ok := c.registry.Find(id); !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	c.resetTimeline(id, &out)
	gen := c.timeline.Generation()
	sess := c.session
	c.mu.Unlock()
	c.emit(out)
	out = nil

	entries, err := c.backend.History(ctx, sess.SessionID, sess.UserID, id)

	c.mu.Lock()
	if c.timeline.Generation() != gen {
		c.mu.Unlock()
		c.log.WithField("thread_id", id).Debug("stale history ignored")
		return nil
	}
	if err != nil {
		out.notify(Notice{Level: LevelError, Text: "Could not load the conversation."})
		c.mu.Unlock()
		c.emit(out)
		c.log.WithError(err).WithField("thread_id", id).Warn("history load failed")
		return &TransportError{Op: "history", Err: err}
	}
	now := c.timeline.now()
	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, messageFromHistory(e, now))
	}
	c.timeline.Load(msgs)
	out.loaded(id, c.timeline.Messages())
	c.mu.Unlock()
	c.emit(out)
	c.log.WithField("thread_id", id).WithField("messages", len(msgs)).Info("thread loaded")
	return nil
}

// NewThread enters the new-chat state: no active thread and an empty timeline.
func (c *Controller) NewThread() {
	var out outbox
	c.mu.Lock()
	c.resetTimeline("", &out)
	c.mu.Unlock()
	c.emit(out)
}

func (c *Controller) resetTimeline(threadID string, out *outbox) {
	c.timeline.Reset(threadID)
	c.retry.Clear()
	out.reset(threadID)
	out.active(threadID)
}

// RenameThread retitles a thread locally first, then on the server. A server failure is
// reported but the local title is kept.
func (c *Controller) RenameThread(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid(ErrEmptyTitle, "")
	}
	var out outbox
	c.mu.Lock()
	current, ok := c.registry.Find(id)
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	if current.Title == title {
		c.mu.Unlock()
		return nil
	}
	c.registry.Rename(id, title)
	out.threads(c.registry.Threads())
	c.mu.Unlock()
	c.emit(out)

	if err := c.backend.RenameThread(ctx, id, title); err != nil {
		c.log.WithError(err).WithField("thread_id", id).Warn("rename failed")
		c.emit(outbox{func(l Listener) {
			l.Notify(Notice{Level: LevelWarning, Text: "Rename was not saved on the server."})
		}})
		return &TransportError{Op: "rename thread", Err: err}
	}
	c.emit(outbox{func(l Listener) {
		l.Notify(Notice{Level: LevelSuccess, Text: "Conversation renamed."})
	}})
	return nil
}

// DeleteThread removes a thread once the server confirms. Deleting the active thread moves
// to the first remaining thread, or to the new-chat state.
func (c *Controller) DeleteThread(ctx context.Context, id string) error {
	c.mu.Lock()
	_, ok := c.registry.Find(id)
	c.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := c.backend.DeleteThread(ctx, id); err != nil {
		c.log.WithError(err).WithField("thread_id", id).Warn("delete failed")
		c.emit(outbox{func(l Listener) {
			l.Notify(Notice{Level: LevelError, Text: "Could not delete the conversation."})
		}})
		return &TransportError{Op: "delete thread", Err: err}
	}

	var out outbox
	c.mu.Lock()
	c.registry.Remove(id)
	out.threads(c.registry.Threads())
	wasActive := c.timeline.ThreadID() == id
	next := c.registry.First()
	out.notify(Notice{Level: LevelSuccess, Text: "Conversation deleted."})
	c.mu.Unlock()
	c.emit(out)
	c.log.WithField("thread_id", id).Info("thread deleted")

	if !wasActive {
		return nil
	}
	if next == "" {
		c.NewThread()
		return nil
	}
	return c.SelectThread(ctx, next)
}
