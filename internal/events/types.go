package events

import (
	"time"

	"ragchat/internal/chat"
)

// Submission 代表进入 SQ 的一次会话交换。Exchange 已由 chat.Controller 的 Begin* 创建，
// worker 只负责网络步骤与回填。
type Submission struct {
	ID        string
	Kind      chat.ActionKind
	Exchange  *chat.Exchange
	Timestamp time.Time
	SessionID string
}

// EventType 描述 EQ 中分发的事件类型。
type EventType string

const (
	EventSubmissionAccepted EventType = "submission.accepted"
	EventExchangeStarted    EventType = "exchange.started"
	EventExchangeCompleted  EventType = "exchange.completed"

	EventMessageAppended  EventType = "message.appended"
	EventMessageFinalized EventType = "message.finalized"
	EventMessageEdited    EventType = "message.edited"
	EventMessageRemoved   EventType = "message.removed"
	EventTimelineReset    EventType = "timeline.reset"
	EventHistoryLoaded    EventType = "history.loaded"
	EventThreadsChanged   EventType = "threads.changed"
	EventActiveThread     EventType = "thread.active"
	EventBusyChanged      EventType = "busy.changed"
	EventNotice           EventType = "notice"
)

// HistoryPayload 是 EventHistoryLoaded 的载荷。
type HistoryPayload struct {
	ThreadID string
	Messages []chat.Message
}

// Event 是 EQ 中传递的唯一消息格式。Payload 的具体结构由 Type 决定：
//
//	message.appended / finalized / edited  chat.Message
//	message.removed / timeline.reset / thread.active  string
//	history.loaded  HistoryPayload
//	threads.changed  []chat.ThreadSummary
//	busy.changed  bool
//	notice  chat.Notice
//	exchange.completed  chat.Result
type Event struct {
	Type         EventType
	SubmissionID string
	SessionID    string
	Timestamp    time.Time
	Payload      any
}
