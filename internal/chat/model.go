// Package chat holds the conversation state and message-lifecycle controller: the thread
// registry, the active timeline, optimistic submissions and the single-slot retry.
package chat

import (
	"time"

	"ragchat/internal/transport"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	// StatusFailed is part of the message model for presentation layers; the controller
	// itself reports failures as complete assistant messages with Error set.
	StatusFailed Status = "failed"
)

// ThreadSummary is one conversation in the registry.
type ThreadSummary struct {
	ID        string
	Title     string
	CreatedAt time.Time
	Preview   string
}

// ContextItem is a retrieved source attached to an assistant answer.
type ContextItem struct {
	Source  string
	Content string
}

// Message is one entry of the timeline.
type Message struct {
	ID          string
	Role        Role
	Text        string
	Attachments []FileRef
	Context     []ContextItem
	Status      Status
	// Error marks an assistant message that reports a failed submission.
	Error     bool
	CreatedAt time.Time
}

func (m Message) clone() Message {
	out := m
	if len(m.Attachments) > 0 {
		out.Attachments = append([]FileRef(nil), m.Attachments...)
	}
	if len(m.Context) > 0 {
		out.Context = append([]ContextItem(nil), m.Context...)
	}
	return out
}

// ActionKind tells RetryLast how to replay a failed submission.
type ActionKind string

const (
	ActionSend       ActionKind = "send"
	ActionEditResend ActionKind = "edit_resend"
)

// PendingAction is the last failed submission, kept with a byte snapshot of its files so a
// replay does not depend on handles that may since have been released.
type PendingAction struct {
	Kind   ActionKind
	Text   string
	Files  []transport.Upload
	UseRAG bool
}

// ClientSession is the per-installation identity plus the user's current preferences.
type ClientSession struct {
	SessionID string
	UserID    string
	UseRAG    bool
}

const defaultContextSource = "Document"

func newMessageID() string {
	return "msg_" + uuid.NewString()
}

func contextFromDocs(docs []transport.ContextDoc) []ContextItem {
	if len(docs) == 0 {
		return nil
	}
	out := make([]ContextItem, 0, len(docs))
	for _, d := range docs {
		src := d.Source()
		if src == "" {
			src = defaultContextSource
		}
		out = append(out, ContextItem{Source: src, Content: d.Text()})
	}
	return out
}

func summaryFromThread(t transport.Thread) ThreadSummary {
	return ThreadSummary{
		ID:        t.ID,
		Title:     t.Title,
		CreatedAt: t.CreatedAt.Time,
		Preview:   t.Summary(),
	}
}

func messageFromHistory(e transport.HistoryEntry, now time.Time) Message {
	role := RoleAssistant
	if e.Role == string(RoleUser) {
		role = RoleUser
	}
	msg := Message{
		ID:        newMessageID(),
		Role:      role,
		Text:      e.Message,
		Context:   contextFromDocs(e.Context),
		Status:    StatusComplete,
		CreatedAt: now,
	}
	for _, f := range e.Files {
		msg.Attachments = append(msg.Attachments, FileRef{Name: f.Name, Size: f.Size, MIMEType: f.Type})
	}
	return msg
}
