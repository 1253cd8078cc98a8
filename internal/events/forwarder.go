package events

import (
	"context"
	"time"

	"ragchat/internal/chat"
)

// Forwarder 把 chat.Listener 回调转成 EQ 事件，供 TUI 等消费者订阅。
type Forwarder struct {
	queue     *EventQueue
	sessionID string
}

var _ chat.Listener = (*Forwarder)(nil)

func NewForwarder(queue *EventQueue, sessionID string) *Forwarder {
	return &Forwarder{queue: queue, sessionID: sessionID}
}

func (f *Forwarder) publish(t EventType, payload any) {
	_ = f.queue.Publish(context.Background(), Event{
		Type:      t,
		SessionID: f.sessionID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func (f *Forwarder) MessageAppended(m chat.Message) {
	f.publish(EventMessageAppended, m)
}

func (f *Forwarder) MessageFinalized(m chat.Message) {
	f.publish(EventMessageFinalized, m)
}

func (f *Forwarder) MessageEdited(m chat.Message) {
	f.publish(EventMessageEdited, m)
}

func (f *Forwarder) MessageRemoved(id string) {
	f.publish(EventMessageRemoved, id)
}

func (f *Forwarder) TimelineReset(threadID string) {
	f.publish(EventTimelineReset, threadID)
}

func (f *Forwarder) HistoryLoaded(threadID string, msgs []chat.Message) {
	f.publish(EventHistoryLoaded, HistoryPayload{ThreadID: threadID, Messages: msgs})
}

func (f *Forwarder) ThreadListChanged(threads []chat.ThreadSummary) {
	f.publish(EventThreadsChanged, threads)
}

func (f *Forwarder) ActiveThreadChanged(threadID string) {
	f.publish(EventActiveThread, threadID)
}

func (f *Forwarder) BusyChanged(busy bool) {
	f.publish(EventBusyChanged, busy)
}

func (f *Forwarder) Notify(n chat.Notice) {
	f.publish(EventNotice, n)
}
