package chat

import (
	"context"
	"strings"

	"ragchat/internal/logger"
	"ragchat/internal/transport"
)

const connectionErrorText = "Connection error. Please check your network."

// Input is a composed submission. Files passed to Begin belong to the timeline once Begin
// succeeds; on error the caller keeps them.
type Input struct {
	Text  string
	Files []FileRef
}

// Exchange is one submission awaiting the server. Run performs the network step only and
// may be called from any goroutine; its Outcome goes back through Controller.Reconcile.
type Exchange struct {
	backend     Backend
	generation  uint64
	placeholder string
	hadThread   bool
	req         transport.AskRequest
	action      PendingAction
}

// PlaceholderID is the id of the pending assistant message this exchange will resolve.
func (ex *Exchange) PlaceholderID() string {
	return ex.placeholder
}

func (ex *Exchange) Kind() ActionKind {
	return ex.action.Kind
}

// Outcome is what Run observed on the network.
type Outcome struct {
	ex      *Exchange
	resp    transport.AskResponse
	err     error
	listed  bool
	threads []transport.Thread
	listErr error
}

// Run sends the question and, when the answer names a thread, fetches the refreshed
// thread list.
func (ex *Exchange) Run(ctx context.Context) Outcome {
	out := Outcome{ex: ex}
	out.resp, out.err = ex.backend.Ask(ctx, ex.req)
	if out.err == nil && out.resp.Error == "" && out.resp.ThreadID != "" {
		out.listed = true
		out.threads, out.listErr = ex.backend.ListThreads(ctx, ex.req.UserID)
	}
	return out
}

type ResultStatus string

const (
	ResultCompleted      ResultStatus = "completed"
	ResultServerError    ResultStatus = "server_error"
	ResultTransportError ResultStatus = "transport_error"
	ResultStale          ResultStatus = "stale"
)

// Result describes how an exchange was reconciled. MessageID is the finalized answer or
// the appended error message.
type Result struct {
	Status    ResultStatus
	MessageID string
	ThreadID  string
	Err       error
}

// Begin validates input and, if accepted, appends the user message and a pending
// placeholder. Nothing is mutated when it returns an error.
func (c *Controller) Begin(in Input) (*Exchange, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Files) == 0 {
		return nil, invalid(ErrEmptySubmission, "")
	}
	uploads, err := snapshotFiles(in.Files)
	if err != nil {
		return nil, err
	}
	display := text
	if display == "" {
		display = fileListText(in.Files)
	}

	var out outbox
	c.mu.Lock()
	if c.inflight != nil {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	action := PendingAction{Kind: ActionSend, Text: text, Files: uploads, UseRAG: c.session.UseRAG}
	ex, err := c.start(action, display, in.Files, true, &out)
	c.mu.Unlock()
	c.emit(out)
	return ex, err
}

// BeginAudio submits a recording as an audio_message file with an empty question.
func (c *Controller) BeginAudio(clip AudioClip) (*Exchange, error) {
	if len(clip.Data) == 0 {
		return nil, invalid(ErrEmptySubmission, "empty audio clip")
	}
	f := clip.fileRef()
	uploads, err := snapshotFiles([]FileRef{f})
	if err != nil {
		f.Release()
		return nil, err
	}

	var out outbox
	c.mu.Lock()
	if c.inflight != nil {
		c.mu.Unlock()
		f.Release()
		return nil, ErrBusy
	}
	action := PendingAction{Kind: ActionSend, Files: uploads, UseRAG: c.session.UseRAG}
	ex, err := c.start(action, audioDisplayText, []FileRef{f}, true, &out)
	c.mu.Unlock()
	if err != nil {
		f.Release()
	}
	c.emit(out)
	return ex, err
}

// BeginEdit rewrites a user message, drops everything after it and resends the new text on
// the same thread with only a new placeholder.
func (c *Controller) BeginEdit(id, newText string) (*Exchange, error) {
	text := strings.TrimSpace(newText)
	if text == "" {
		return nil, invalid(ErrEmptySubmission, "")
	}

	var out outbox
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.emit(out)
	}()
	m, ok := c.timeline.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if m.Role != RoleUser {
		return nil, ErrNotEditable
	}
	if m.Text == text {
		return nil, ErrUnchanged
	}
	if c.inflight != nil {
		return nil, ErrBusy
	}
	removed, _ := c.timeline.TruncateAfter(id)
	for _, rid := range removed {
		out.removed(rid)
	}
	edited, _ := c.timeline.SetText(id, text)
	out.edited(edited)
	action := PendingAction{Kind: ActionEditResend, Text: text, UseRAG: c.session.UseRAG}
	return c.start(action, "", nil, false, &out)
}

// BeginRetry takes the recorded PendingAction and replays it.
func (c *Controller) BeginRetry() (*Exchange, error) {
	var out outbox
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.emit(out)
	}()
	if c.inflight != nil {
		return nil, ErrBusy
	}
	action, ok := c.retry.Take()
	if !ok {
		return nil, ErrNothingToRetry
	}
	if action.Kind == ActionEditResend {
		return c.start(action, "", nil, false, &out)
	}
	files := make([]FileRef, 0, len(action.Files))
	for _, u := range action.Files {
		files = append(files, NewFileRef(u.Name, u.MIMEType, u.Data))
	}
	display := action.Text
	if display == "" {
		display = fileListText(files)
	}
	return c.start(action, display, files, true, &out)
}

// start appends the optimistic messages and registers the exchange. Caller holds c.mu and
// has checked that nothing is in flight.
func (c *Controller) start(action PendingAction, display string, files []FileRef, withUser bool, out *outbox) (*Exchange, error) {
	if _, ok := c.timeline.Pending(); ok {
		return nil, ErrPendingExists
	}
	if withUser {
		id, _ := c.timeline.AppendOptimistic(RoleUser, display, files)
		m, _ := c.timeline.Get(id)
		out.appended(m)
	}
	pid, err := c.timeline.AppendOptimistic(RoleAssistant, "", nil)
	if err != nil {
		return nil, err
	}
	placeholder, _ := c.timeline.Get(pid)
	out.appended(placeholder)

	ex := &Exchange{
		backend:     c.backend,
		generation:  c.timeline.Generation(),
		placeholder: pid,
		hadThread:   c.timeline.ThreadID() != "",
		action:      action,
		req: transport.AskRequest{
			Question:  action.Text,
			UseRAG:    action.UseRAG,
			SessionID: c.session.SessionID,
			UserID:    c.session.UserID,
			ThreadID:  c.timeline.ThreadID(),
			Files:     action.Files,
		},
	}
	c.inflight = ex
	out.busy(true)
	c.log.WithFields(logger.Fields{
		"kind":      string(action.Kind),
		"thread_id": ex.req.ThreadID,
		"files":     len(action.Files),
	}).Info("submission sent")
	return ex, nil
}

// Reconcile applies an Outcome. An outcome whose timeline has since been reset is dropped
// without touching the new timeline.
func (c *Controller) Reconcile(o Outcome) Result {
	ex := o.ex
	var out outbox
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.emit(out)
	}()
	if c.inflight == ex {
		c.inflight = nil
		out.busy(false)
	}

	if ex.generation != c.timeline.Generation() {
		c.log.WithField("kind", string(ex.action.Kind)).Debug("stale response ignored")
		// The registry is not per timeline.
		if o.listed && o.listErr == nil {
			c.replaceThreads(o.threads, &out)
		}
		return Result{Status: ResultStale, Err: ErrStaleResponse}
	}

	switch {
	case o.err != nil:
		c.log.WithError(o.err).Warn("ask failed")
		return c.fail(ex, connectionErrorText, &TransportError{Op: "ask", Err: o.err}, ResultTransportError, &out)
	case o.resp.Error != "":
		c.log.WithField("error", o.resp.Error).Warn("server reported error")
		return c.fail(ex, "Error: "+o.resp.Error, &ServerReportedError{Message: o.resp.Error}, ResultServerError, &out)
	}

	if m, ok := c.timeline.Finalize(ex.placeholder, o.resp.Answer, contextFromDocs(o.resp.Context)); ok {
		out.finalized(m)
	}
	if o.resp.ThreadID != "" && !ex.hadThread && c.timeline.ThreadID() == "" {
		c.timeline.Adopt(o.resp.ThreadID)
		out.active(o.resp.ThreadID)
	}
	if o.listed {
		if o.listErr != nil {
			c.log.WithError(o.listErr).Warn("thread list refresh failed")
			out.notify(Notice{Level: LevelWarning, Text: "Could not refresh the conversation list."})
		} else {
			c.replaceThreads(o.threads, &out)
		}
	}
	if ex.action.Kind == ActionEditResend {
		out.notify(Notice{Level: LevelSuccess, Text: "Message edited."})
	}
	c.log.WithField("thread_id", c.timeline.ThreadID()).Info("answer received")
	return Result{Status: ResultCompleted, MessageID: ex.placeholder, ThreadID: c.timeline.ThreadID()}
}

// Abort settles an exchange that never reached the network the same way a failed
// connection would, so the action stays available to RetryLast.
func (c *Controller) Abort(ex *Exchange, err error) Result {
	if ex == nil {
		return Result{}
	}
	return c.Reconcile(Outcome{ex: ex, err: err})
}

func (c *Controller) fail(ex *Exchange, text string, err error, status ResultStatus, out *outbox) Result {
	if c.timeline.Discard(ex.placeholder) {
		out.removed(ex.placeholder)
	}
	notice := c.timeline.AppendNotice(text)
	out.appended(notice)
	c.retry.Record(ex.action)
	out.notify(Notice{Level: LevelError, Text: text, Retryable: true})
	return Result{Status: status, MessageID: notice.ID, ThreadID: c.timeline.ThreadID(), Err: err}
}

// Submit runs Begin, Run and Reconcile in sequence.
func (c *Controller) Submit(ctx context.Context, in Input) (Result, error) {
	ex, err := c.Begin(in)
	if err != nil {
		return Result{}, err
	}
	return c.finish(ctx, ex)
}

func (c *Controller) SendAudio(ctx context.Context, clip AudioClip) (Result, error) {
	ex, err := c.BeginAudio(clip)
	if err != nil {
		return Result{}, err
	}
	return c.finish(ctx, ex)
}

func (c *Controller) EditMessage(ctx context.Context, id, newText string) (Result, error) {
	ex, err := c.BeginEdit(id, newText)
	if err != nil {
		return Result{}, err
	}
	return c.finish(ctx, ex)
}

// RetryLast replays the recorded PendingAction; the slot is empty afterwards unless the
// replay fails again.
func (c *Controller) RetryLast(ctx context.Context) (Result, error) {
	ex, err := c.BeginRetry()
	if err != nil {
		return Result{}, err
	}
	return c.finish(ctx, ex)
}

func (c *Controller) finish(ctx context.Context, ex *Exchange) (Result, error) {
	res := c.Reconcile(ex.Run(ctx))
	if res.Status == ResultStale {
		return res, nil
	}
	return res, res.Err
}

func snapshotFiles(files []FileRef) ([]transport.Upload, error) {
	uploads := make([]transport.Upload, 0, len(files))
	for _, f := range files {
		if err := ValidateFile(f); err != nil {
			return nil, err
		}
		u, err := f.upload()
		if err != nil {
			return nil, invalid(err, f.Name)
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func fileListText(files []FileRef) string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, "📎 "+f.Name)
	}
	return strings.Join(names, ", ")
}
