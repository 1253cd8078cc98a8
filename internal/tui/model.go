package tui

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"ragchat/internal/chat"
	"ragchat/internal/events"
	"ragchat/internal/logger"
	"ragchat/internal/tui/render"
	"ragchat/internal/tui/slash"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type Options struct {
	Controller *chat.Controller
	// Manager 在后台执行网络交换；为 nil 时交换在 tea.Cmd 中直接执行。
	Manager       *events.Manager
	BaseURL       string
	InitialThread string
	ExportDir     string
	// OnThreadChanged 在活动会话变化时回调（用于保存续接提示）。
	OnThreadChanged func(threadID string)
	// Prompts 持久化输入历史；为 nil 时历史只保存在内存中。
	Prompts  PromptStore
	ReadFile func(path string) ([]byte, error)
	CopyText func(text string) error
}

// PromptStore 是输入历史的持久化接口，由 history.Store 实现。
type PromptStore interface {
	Append(threadID, text string) error
	Recent(limit int) ([]string, error)
}

const promptHistoryLimit = 500

type eventMsg struct {
	Event events.Event
}

type startedMsg struct {
	Err error
}

type opDoneMsg struct {
	Op  string
	Err error
}

type Model struct {
	ctrl     *chat.Controller
	mgr      *events.Manager
	eqSub    <-chan events.Event
	inline   *inlineListener
	log      *logger.LogEntry
	textarea textarea.Model
	viewport viewport.Model
	threads  list.Model
	slash    *slash.State
	history  promptHistory
	prompts  PromptStore
	composer chat.Composer
	spin     spinner.Model

	snapshot      chat.Snapshot
	notice        chat.Notice
	picking       bool
	showHelp      bool
	started       bool
	baseURL       string
	initialThread string
	exportDir     string
	onThread      func(string)
	readFile      func(string) ([]byte, error)
	copyText      func(string) error
	width         int
	height        int
	dirty         bool
}

func New(opts Options) *Model {
	ti := textarea.New()
	ti.Placeholder = "Ask anything… (/ for commands)"
	ti.Prompt = "› "
	ti.CharLimit = 0
	ti.SetWidth(90)
	ti.SetHeight(1)
	ti.ShowLineNumbers = false
	ti.Focus()

	vp := viewport.New(90, 12)
	vp.SetContent(render.WelcomeText)

	threads := list.New(nil, list.NewDefaultDelegate(), 50, 14)
	threads.Title = "Conversations"
	threads.SetShowStatusBar(false)
	threads.DisableQuitKeybindings()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	readFile := opts.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	copyText := opts.CopyText
	if copyText == nil {
		copyText = clipboard.WriteAll
	}
	m := &Model{
		ctrl:          opts.Controller,
		mgr:           opts.Manager,
		log:           logger.Named("tui"),
		textarea:      ti,
		viewport:      vp,
		threads:       threads,
		slash:         slash.NewState(slash.Options{}),
		spin:          spin,
		baseURL:       opts.BaseURL,
		initialThread: opts.InitialThread,
		exportDir:     opts.ExportDir,
		onThread:      opts.OnThreadChanged,
		readFile:      readFile,
		copyText:      copyText,
		prompts:       opts.Prompts,
		width:         90,
		height:        24,
		dirty:         true,
	}
	if m.prompts != nil {
		if entries, err := m.prompts.Recent(promptHistoryLimit); err != nil {
			m.log.Warnf("failed to load prompt history: %v", err)
		} else {
			m.history.Load(entries)
		}
	}
	if m.mgr != nil {
		m.eqSub = m.mgr.Subscribe()
	} else if m.ctrl != nil {
		m.inline = &inlineListener{}
		m.ctrl.SetListener(m.inline)
	}
	if m.ctrl != nil {
		m.snapshot = m.ctrl.Snapshot()
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, m.start()}
	if cmd := m.listenEvents(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (m *Model) start() tea.Cmd {
	ctrl, preferred := m.ctrl, m.initialThread
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		return startedMsg{Err: ctrl.Start(context.Background(), preferred)}
	}
}

func (m *Model) listenEvents() tea.Cmd {
	if m.eqSub == nil {
		return nil
	}
	sub := m.eqSub
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return eventMsg{Event: ev}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m.finish(cmds...)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.snapshot.Busy {
			m.dirty = true
		}
		cmds = append(cmds, cmd)
		return m.finish(cmds...)
	case eventMsg:
		m.handleEvent(msg.Event)
		if cmd := m.listenEvents(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m.finish(cmds...)
	case startedMsg:
		m.started = true
		m.refresh()
		if msg.Err != nil {
			m.setNotice(chat.LevelError, "Could not reach "+m.baseURL+": "+msg.Err.Error())
		}
		return m.finish(cmds...)
	case opDoneMsg:
		m.refresh()
		if msg.Err != nil && !alreadyNotified(msg.Err) {
			m.setNotice(chat.LevelError, msg.Op+": "+msg.Err.Error())
		}
		return m.finish(cmds...)
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			cmds = append(cmds, cmd)
			return m.finish(cmds...)
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.afterInput()
	return m.finish(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.Type == tea.KeyEnter && msg.Alt {
		m.textarea.InsertString("\n")
		m.afterInput()
		return nil, true
	}
	if m.picking {
		return m.handlePickerKey(msg), true
	}
	if m.showHelp {
		switch msg.String() {
		case "esc", "q", "?":
			m.showHelp = false
			return nil, true
		}
	}
	if act, handled := m.slash.HandleKey(msg.String()); handled {
		return m.applySlashAction(act), true
	}
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit, true
	case "ctrl+n":
		m.ctrl.NewThread()
		m.refresh()
		return nil, true
	case "ctrl+t":
		m.openPicker(m.ctrl.Threads(), "Conversations")
		return nil, true
	case "pgup":
		m.viewport.HalfViewUp()
		return nil, true
	case "pgdown":
		m.viewport.HalfViewDown()
		return nil, true
	case "up":
		if m.textarea.Line() == 0 {
			if text, ok := m.history.Prev(m.textarea.Value()); ok {
				m.textarea.SetValue(text)
				return nil, true
			}
		}
	case "down":
		if m.history.Browsing() {
			if text, ok := m.history.Next(); ok {
				m.textarea.SetValue(text)
				return nil, true
			}
		}
	case "enter":
		input := strings.TrimSpace(m.textarea.Value())
		if input == "" && m.composer.Len() == 0 {
			return nil, true
		}
		if strings.HasPrefix(input, "/") {
			act := m.slash.ResolveSubmit(input)
			if act.Kind != slash.ActionNone {
				m.textarea.Reset()
				m.afterInput()
				return m.applySlashAction(act), true
			}
		}
		return m.submit(input), true
	}
	return nil, false
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.picking = false
		return nil
	case "enter":
		m.picking = false
		sel, ok := m.threads.SelectedItem().(threadItem)
		if !ok {
			return nil
		}
		return m.selectThread(sel.summary.ID)
	}
	var cmd tea.Cmd
	m.threads, cmd = m.threads.Update(msg)
	return cmd
}

func (m *Model) afterInput() {
	m.setComposerHeight()
	m.slash.SyncInput(slash.Input{
		Value:        m.textarea.Value(),
		CursorLine:   m.textarea.Line(),
		CursorColumn: m.textarea.LineInfo().ColumnOffset,
	})
}

func (m *Model) applySlashAction(act slash.Action) tea.Cmd {
	switch act.Kind {
	case slash.ActionInsert:
		m.textarea.SetValue(act.NewValue)
		m.afterInput()
		return nil
	case slash.ActionSubmitCommand:
		m.textarea.Reset()
		m.afterInput()
		return m.runCommand(act.Command, act.Args)
	case slash.ActionError:
		m.setNotice(chat.LevelWarning, act.Message)
		return nil
	}
	return nil
}

func (m *Model) handleEvent(ev events.Event) {
	switch ev.Type {
	case events.EventNotice:
		if n, ok := ev.Payload.(chat.Notice); ok {
			m.notice = n
		}
	case events.EventActiveThread:
		if id, ok := ev.Payload.(string); ok && m.onThread != nil {
			m.onThread(id)
		}
	case events.EventSubmissionAccepted, events.EventExchangeStarted:
		return
	}
	m.refresh()
}

// refresh 从控制器重新读取快照。
func (m *Model) refresh() {
	if m.ctrl == nil {
		return
	}
	m.snapshot = m.ctrl.Snapshot()
	m.dirty = true
	if m.inline == nil {
		return
	}
	notices, active := m.inline.drain()
	if len(notices) > 0 {
		m.notice = notices[len(notices)-1]
	}
	if m.onThread != nil {
		for _, id := range active {
			m.onThread(id)
		}
	}
}

// inlineListener 在没有事件管理器时缓存控制器回调，由 refresh 在 UI 协程中取出。
type inlineListener struct {
	chat.NopListener
	mu      sync.Mutex
	notices []chat.Notice
	active  []string
}

func (l *inlineListener) Notify(n chat.Notice) {
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

func (l *inlineListener) ActiveThreadChanged(id string) {
	l.mu.Lock()
	l.active = append(l.active, id)
	l.mu.Unlock()
}

func (l *inlineListener) drain() ([]chat.Notice, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	notices, active := l.notices, l.active
	l.notices, l.active = nil, nil
	return notices, active
}

func (m *Model) setNotice(level chat.Level, text string) {
	m.notice = chat.Notice{Level: level, Text: text}
}

func (m *Model) finish(cmds ...tea.Cmd) (tea.Model, tea.Cmd) {
	if m.dirty {
		m.flushTranscript()
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) flushTranscript() {
	atBottom := m.viewport.AtBottom()
	lines := render.Messages(m.snapshot.Messages, render.Options{
		Width:   m.viewport.Width,
		Spinner: m.spin.View(),
	})
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if atBottom || m.snapshot.Busy {
		m.viewport.GotoBottom()
	}
	m.dirty = false
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	composerHeight := m.textarea.Height() + 3
	if m.composer.Len() > 0 {
		composerHeight++
	}
	headerHeight := 3
	statusHeight := 1
	hintsHeight := 1
	viewHeight := height - composerHeight - headerHeight - statusHeight - hintsHeight - 2
	if viewHeight < 3 {
		viewHeight = 3
	}
	m.viewport.Width = maxInt(20, width-4)
	m.viewport.Height = viewHeight
	m.textarea.SetWidth(maxInt(20, width-4))
	m.threads.SetSize(maxInt(30, width-8), maxInt(6, height-8))
	m.dirty = true
}

func (m *Model) setComposerHeight() {
	lines := strings.Count(m.textarea.Value(), "\n") + 1
	if lines > 6 {
		lines = 6
	}
	if m.textarea.Height() != lines {
		m.textarea.SetHeight(lines)
		m.resize(m.width, m.height)
	}
}

// alreadyNotified 报告控制器是否已经为该错误发出过通知。
func alreadyNotified(err error) bool {
	var terr *chat.TransportError
	var serr *chat.ServerReportedError
	return errors.As(err, &terr) || errors.As(err, &serr)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
