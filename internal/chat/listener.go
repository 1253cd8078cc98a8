package chat

// Level grades a Notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing notification. Retryable marks notices raised together with a
// fresh PendingAction.
type Notice struct {
	Level     Level
	Text      string
	Retryable bool
}

// Listener receives lifecycle callbacks from the controller. Callbacks run after the
// state change is complete and outside the controller lock, so they may read projections
// back from the controller.
type Listener interface {
	MessageAppended(m Message)
	MessageFinalized(m Message)
	MessageEdited(m Message)
	MessageRemoved(id string)
	TimelineReset(threadID string)
	HistoryLoaded(threadID string, msgs []Message)
	ThreadListChanged(threads []ThreadSummary)
	ActiveThreadChanged(threadID string)
	BusyChanged(busy bool)
	Notify(n Notice)
}

// NopListener ignores every callback. Embed it to implement only what you need.
type NopListener struct{}

func (NopListener) MessageAppended(Message) {}
func (NopListener) MessageFinalized(Message) {}
func (NopListener) MessageEdited(Message) {}
func (NopListener) MessageRemoved(string) {}
func (NopListener) TimelineReset(string) {}
func (NopListener) HistoryLoaded(string, []Message) {}
func (NopListener) ThreadListChanged([]ThreadSummary) {}
func (NopListener) ActiveThreadChanged(string) {}
func (NopListener) BusyChanged(bool) {}
func (NopListener) Notify(Notice) {}

// outbox collects callbacks while the controller holds its lock.
type outbox []func(Listener)

func (o *outbox) appended(m Message) {
	*o = append(*o, func(l Listener) { l.MessageAppended(m) })
}

func (o *outbox) finalized(m Message) {
	*o = append(*o, func(l Listener) { l.MessageFinalized(m) })
}

func (o *outbox) edited(m Message) {
	*o = append(*o, func(l Listener) { l.MessageEdited(m) })
}

func (o *outbox) removed(id string) {
	*o = append(*o, func(l Listener) { l.MessageRemoved(id) })
}

func (o *outbox) reset(threadID string) {
	*o = append(*o, func(l Listener) { l.TimelineReset(threadID) })
}

func (o *outbox) loaded(threadID string, msgs []Message) {
	*o = append(*o, func(l Listener) { l.HistoryLoaded(threadID, msgs) })
}

func (o *outbox) threads(list []ThreadSummary) {
	*o = append(*o, func(l Listener) { l.ThreadListChanged(list) })
}

func (o *outbox) active(threadID string) {
	*o = append(*o, func(l Listener) { l.ActiveThreadChanged(threadID) })
}

func (o *outbox) busy(b bool) {
	*o = append(*o, func(l Listener) { l.BusyChanged(b) })
}

func (o *outbox) notify(n Notice) {
	*o = append(*o, func(l Listener) { l.Notify(n) })
}
