package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ragchat/internal/chat"
	"ragchat/internal/export"
	"ragchat/internal/tui/slash"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// threadItem 适配 bubbles/list 的条目接口。
type threadItem struct {
	summary chat.ThreadSummary
	active  bool
}

func (i threadItem) Title() string {
	title := strings.TrimSpace(i.summary.Title)
	if title == "" {
		title = "Untitled"
	}
	if i.active {
		return "▸ " + title
	}
	return title
}

func (i threadItem) Description() string {
	date := ""
	if !i.summary.CreatedAt.IsZero() {
		date = i.summary.CreatedAt.Local().Format("Jan 2 15:04")
	}
	switch {
	case date != "" && i.summary.Preview != "":
		return date + " · " + i.summary.Preview
	case date != "":
		return date
	default:
		return i.summary.Preview
	}
}

func (i threadItem) FilterValue() string {
	return i.summary.Title + " " + i.summary.Preview
}

func (m *Model) openPicker(threads []chat.ThreadSummary, title string) {
	if len(threads) == 0 {
		m.setNotice(chat.LevelInfo, "No conversations found.")
		return
	}
	active := m.snapshot.ActiveThread
	items := make([]list.Item, 0, len(threads))
	selected := 0
	for i, t := range threads {
		if t.ID == active {
			selected = i
		}
		items = append(items, threadItem{summary: t, active: t.ID == active})
	}
	m.threads.Title = title
	m.threads.SetItems(items)
	m.threads.Select(selected)
	m.picking = true
}

func (m *Model) submit(text string) tea.Cmd {
	if m.snapshot.Busy {
		m.setNotice(chat.LevelWarning, "Waiting for the assistant…")
		return nil
	}
	ex, err := m.ctrl.Begin(chat.Input{Text: text, Files: m.composer.Files()})
	if err != nil {
		m.rejected(err)
		return nil
	}
	m.composer.Take()
	m.remember(text)
	m.textarea.Reset()
	m.afterInput()
	m.resize(m.width, m.height)
	m.notice = chat.Notice{}
	return m.dispatch(ex)
}

func (m *Model) remember(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	m.history.Add(text)
	if m.prompts == nil {
		return
	}
	if err := m.prompts.Append(m.snapshot.ActiveThread, text); err != nil {
		m.log.Warnf("failed to save prompt history: %v", err)
	}
}

// dispatch 把交换交给事件管理器；没有管理器时在命令中直接执行。
func (m *Model) dispatch(ex *chat.Exchange) tea.Cmd {
	m.refresh()
	if m.mgr != nil {
		mgr, ctrl, log := m.mgr, m.ctrl, m.log
		return func() tea.Msg {
			if _, err := mgr.Dispatch(context.Background(), ex); err != nil {
				// 管理器已关闭时 EQ 不再投递通知，这里直接报告原始错误。
				log.Warnf("dispatch failed: %v", err)
				ctrl.Abort(ex, err)
				return opDoneMsg{Op: "send", Err: err}
			}
			return nil
		}
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		res := ctrl.Reconcile(ex.Run(context.Background()))
		return opDoneMsg{Op: "send", Err: resultErr(res)}
	}
}

func resultErr(res chat.Result) error {
	if res.Status == chat.ResultStale {
		return nil
	}
	return res.Err
}

func (m *Model) rejected(err error) {
	var verr *chat.ValidationError
	switch {
	case errors.As(err, &verr):
		m.setNotice(chat.LevelWarning, verr.Error())
	case errors.Is(err, chat.ErrBusy):
		m.setNotice(chat.LevelWarning, "Waiting for the assistant…")
	default:
		m.setNotice(chat.LevelError, err.Error())
	}
}

func (m *Model) selectThread(id string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return opDoneMsg{Op: "open conversation", Err: ctrl.SelectThread(context.Background(), id)}
	}
}

func (m *Model) runCommand(cmd slash.Command, args string) tea.Cmd {
	args = strings.TrimSpace(args)
	switch cmd {
	case slash.CommandQuit, slash.CommandExit:
		return tea.Quit
	case slash.CommandHelp:
		m.showHelp = true
	case slash.CommandNew:
		m.ctrl.NewThread()
		m.refresh()
	case slash.CommandThreads:
		m.openPicker(m.ctrl.Threads(), "Conversations")
	case slash.CommandSearch:
		if args == "" {
			m.openPicker(m.ctrl.Threads(), "Conversations")
			return nil
		}
		m.openPicker(m.ctrl.SearchThreads(args), "Search: "+args)
	case slash.CommandRename:
		return m.renameActive(args)
	case slash.CommandDelete:
		id := m.snapshot.ActiveThread
		if id == "" {
			m.setNotice(chat.LevelWarning, "No conversation selected.")
			return nil
		}
		ctrl := m.ctrl
		return func() tea.Msg {
			return opDoneMsg{Op: "delete", Err: ctrl.DeleteThread(context.Background(), id)}
		}
	case slash.CommandAttach:
		m.attach(args)
	case slash.CommandDetach:
		n := m.composer.Len()
		m.composer.Clear()
		m.resize(m.width, m.height)
		m.setNotice(chat.LevelInfo, fmt.Sprintf("Removed %d attachment(s).", n))
	case slash.CommandAudio:
		return m.sendAudio(args)
	case slash.CommandEdit:
		return m.editLast(args)
	case slash.CommandRetry:
		ex, err := m.ctrl.BeginRetry()
		if err != nil {
			if errors.Is(err, chat.ErrNothingToRetry) {
				m.setNotice(chat.LevelInfo, "Nothing to retry.")
				return nil
			}
			m.rejected(err)
			return nil
		}
		return m.dispatch(ex)
	case slash.CommandExport:
		m.exportActive(args)
	case slash.CommandCopy:
		m.copyLastAnswer()
	case slash.CommandRAG:
		m.toggleRAG(args)
	}
	return nil
}

func (m *Model) renameActive(title string) tea.Cmd {
	id := m.snapshot.ActiveThread
	if id == "" {
		m.setNotice(chat.LevelWarning, "No conversation selected.")
		return nil
	}
	if title == "" {
		m.setNotice(chat.LevelWarning, "Usage: /rename <title>")
		return nil
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		return opDoneMsg{Op: "rename", Err: ctrl.RenameThread(context.Background(), id, title)}
	}
}

func (m *Model) attach(path string) {
	if path == "" {
		m.setNotice(chat.LevelWarning, "Usage: /attach <file>")
		return
	}
	data, err := m.readFile(path)
	if err != nil {
		m.setNotice(chat.LevelError, "Could not read "+path+": "+err.Error())
		return
	}
	added, err := m.composer.Add(filepath.Base(path), data)
	if err != nil {
		m.rejected(err)
		return
	}
	if !added {
		m.setNotice(chat.LevelInfo, filepath.Base(path)+" is already attached.")
		return
	}
	m.resize(m.width, m.height)
	m.setNotice(chat.LevelInfo, "Attached "+filepath.Base(path)+".")
}

func (m *Model) sendAudio(path string) tea.Cmd {
	if path == "" {
		m.setNotice(chat.LevelWarning, "Usage: /audio <file>")
		return nil
	}
	data, err := m.readFile(path)
	if err != nil {
		m.setNotice(chat.LevelError, "Could not read "+path+": "+err.Error())
		return nil
	}
	clip := chat.AudioClip{Data: data, MIMEType: chat.DetectType(path, data)}
	ex, err := m.ctrl.BeginAudio(clip)
	if err != nil {
		m.rejected(err)
		return nil
	}
	return m.dispatch(ex)
}

// editLast 编辑最后一条用户消息；无参数时把原文放回输入框。
func (m *Model) editLast(text string) tea.Cmd {
	target, ok := lastMessage(m.snapshot.Messages, chat.RoleUser)
	if !ok {
		m.setNotice(chat.LevelInfo, "No message to edit.")
		return nil
	}
	if text == "" {
		m.textarea.SetValue("/edit " + target.Text)
		m.afterInput()
		return nil
	}
	ex, err := m.ctrl.BeginEdit(target.ID, text)
	if err != nil {
		m.rejected(err)
		return nil
	}
	return m.dispatch(ex)
}

func (m *Model) exportActive(arg string) {
	format, err := export.ParseFormat(arg)
	if err != nil {
		m.setNotice(chat.LevelWarning, err.Error())
		return
	}
	if len(m.snapshot.Messages) == 0 {
		m.setNotice(chat.LevelInfo, "Nothing to export.")
		return
	}
	conv := export.Conversation{ThreadID: m.snapshot.ActiveThread, Messages: m.snapshot.Messages}
	for _, t := range m.snapshot.Threads {
		if t.ID == conv.ThreadID {
			conv.Title = t.Title
		}
	}
	now := time.Now()
	dir := m.exportDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.setNotice(chat.LevelError, "Export failed: "+err.Error())
		return
	}
	path := filepath.Join(dir, export.FileName(conv.Title, format, now))
	f, err := os.Create(path)
	if err != nil {
		m.setNotice(chat.LevelError, "Export failed: "+err.Error())
		return
	}
	defer f.Close()
	if err := export.Write(f, format, conv, now); err != nil {
		m.setNotice(chat.LevelError, "Export failed: "+err.Error())
		return
	}
	m.setNotice(chat.LevelSuccess, "Exported to "+path)
}

func (m *Model) copyLastAnswer() {
	msg, ok := lastMessage(m.snapshot.Messages, chat.RoleAssistant)
	if !ok {
		m.setNotice(chat.LevelInfo, "No answer to copy.")
		return
	}
	if err := m.copyText(msg.Text); err != nil {
		m.setNotice(chat.LevelError, "Copy failed: "+err.Error())
		return
	}
	m.setNotice(chat.LevelSuccess, "Copied to clipboard.")
}

func (m *Model) toggleRAG(arg string) {
	on := !m.snapshot.Session.UseRAG
	switch strings.ToLower(arg) {
	case "on", "true", "1":
		on = true
	case "off", "false", "0":
		on = false
	case "":
	default:
		m.setNotice(chat.LevelWarning, "Usage: /rag [on|off]")
		return
	}
	m.ctrl.SetUseRAG(on)
	m.refresh()
	state := "off"
	if on {
		state = "on"
	}
	m.setNotice(chat.LevelInfo, "Document retrieval "+state+".")
}

// lastMessage 返回指定角色的最后一条已完成消息。
func lastMessage(msgs []chat.Message, role chat.Role) (chat.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role && msgs[i].Status != chat.StatusPending {
			return msgs[i], true
		}
	}
	return chat.Message{}, false
}
