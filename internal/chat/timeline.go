package chat

import "time"

// Timeline is the ordered message sequence of the active thread. Every Reset bumps the
// generation; asynchronous completions compare the generation they were issued under.
type Timeline struct {
	threadID   string
	generation uint64
	messages   []*Message
	now        func() time.Time
}

func NewTimeline() *Timeline {
	return &Timeline{now: time.Now}
}

func (t *Timeline) ThreadID() string {
	return t.threadID
}

func (t *Timeline) Generation() uint64 {
	return t.generation
}

// Empty reports the welcome state: nothing to show yet.
func (t *Timeline) Empty() bool {
	return len(t.messages) == 0
}

func (t *Timeline) Len() int {
	return len(t.messages)
}

// Messages returns copies in insertion order.
func (t *Timeline) Messages() []Message {
	out := make([]Message, 0, len(t.messages))
	for _, m := range t.messages {
		out = append(out, m.clone())
	}
	return out
}

func (t *Timeline) Get(id string) (Message, bool) {
	if i := t.index(id); i >= 0 {
		return t.messages[i].clone(), true
	}
	return Message{}, false
}

// Pending returns the in-flight assistant placeholder, if any.
func (t *Timeline) Pending() (Message, bool) {
	for _, m := range t.messages {
		if m.Status == StatusPending {
			return m.clone(), true
		}
	}
	return Message{}, false
}

// Reset discards every message for a switch to threadID, releasing owned content.
func (t *Timeline) Reset(threadID string) {
	for _, m := range t.messages {
		releaseAll(m.Attachments)
	}
	t.messages = nil
	t.threadID = threadID
	t.generation++
}

// Adopt binds the current timeline to a thread the server just created, without
// discarding its messages.
func (t *Timeline) Adopt(threadID string) {
	t.threadID = threadID
}

// Load replaces the whole content with completed history messages.
func (t *Timeline) Load(msgs []Message) {
	for _, m := range t.messages {
		releaseAll(m.Attachments)
	}
	t.messages = make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		m := m.clone()
		m.Status = StatusComplete
		if m.ID == "" {
			m.ID = newMessageID()
		}
		t.messages = append(t.messages, &m)
	}
}

// AppendOptimistic adds a message at the tail: user messages are complete immediately,
// assistant messages are pending placeholders. Only one placeholder may exist.
func (t *Timeline) AppendOptimistic(role Role, text string, attachments []FileRef) (string, error) {
	status := StatusComplete
	if role == RoleAssistant {
		if _, ok := t.Pending(); ok {
			return "", ErrPendingExists
		}
		status = StatusPending
	}
	return t.append(Message{Role: role, Text: text, Attachments: attachments, Status: status}), nil
}

// AppendNotice adds a complete assistant message reporting a failure.
func (t *Timeline) AppendNotice(text string) Message {
	id := t.append(Message{Role: RoleAssistant, Text: text, Status: StatusComplete, Error: true})
	m, _ := t.Get(id)
	return m
}

func (t *Timeline) append(m Message) string {
	m.ID = newMessageID()
	m.CreatedAt = t.now()
	if len(m.Attachments) > 0 {
		m.Attachments = append([]FileRef(nil), m.Attachments...)
	}
	t.messages = append(t.messages, &m)
	return m.ID
}

// Finalize completes a pending message. A missing or non-pending id is a no-op.
func (t *Timeline) Finalize(id, text string, context []ContextItem) (Message, bool) {
	i := t.index(id)
	if i < 0 || t.messages[i].Status != StatusPending {
		return Message{}, false
	}
	m := t.messages[i]
	m.Text = text
	m.Context = append([]ContextItem(nil), context...)
	m.Status = StatusComplete
	return m.clone(), true
}

// Discard removes a message and releases its content. A missing id is a no-op.
func (t *Timeline) Discard(id string) bool {
	i := t.index(id)
	if i < 0 {
		return false
	}
	releaseAll(t.messages[i].Attachments)
	t.messages = append(t.messages[:i], t.messages[i+1:]...)
	return true
}

// TruncateAfter removes every message strictly after id and returns their ids.
func (t *Timeline) TruncateAfter(id string) ([]string, bool) {
	i := t.index(id)
	if i < 0 {
		return nil, false
	}
	tail := t.messages[i+1:]
	removed := make([]string, 0, len(tail))
	for _, m := range tail {
		releaseAll(m.Attachments)
		removed = append(removed, m.ID)
	}
	t.messages = t.messages[:i+1]
	return removed, true
}

// SetText rewrites a message's text in place.
func (t *Timeline) SetText(id, text string) (Message, bool) {
	i := t.index(id)
	if i < 0 {
		return Message{}, false
	}
	t.messages[i].Text = text
	return t.messages[i].clone(), true
}

func (t *Timeline) index(id string) int {
	for i, m := range t.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}
