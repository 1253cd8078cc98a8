package tui

import (
	"fmt"
	"strings"

	"ragchat/internal/chat"
	"ragchat/internal/tui/render"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#5F5F87")).Padding(0, 1)
	composerStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#5F5F87")).Padding(0, 1)
	overlayStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7D56F4")).Padding(1, 2)

	noticeStyles = map[chat.Level]lipgloss.Style{
		chat.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A")),
		chat.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAF5F")),
		chat.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("#D7AF00")),
		chat.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
	}
)

func (m *Model) View() string {
	if m.picking {
		return m.pickerView()
	}
	if m.showHelp {
		return m.helpView()
	}
	sections := []string{
		m.headerView(),
		paneStyle.Width(maxInt(20, m.width-2)).Render(m.viewport.View()),
	}
	if popup := m.slash.View(maxInt(20, m.width-4)); popup != "" {
		sections = append(sections, popup)
	}
	sections = append(sections,
		composerStyle.Width(maxInt(20, m.width-2)).Render(m.composerView()),
		m.statusView(),
		subtleStyle.Render(m.hints()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) headerView() string {
	title := "New conversation"
	if id := m.snapshot.ActiveThread; id != "" {
		title = id
		for _, t := range m.snapshot.Threads {
			if t.ID == id && strings.TrimSpace(t.Title) != "" {
				title = t.Title
			}
		}
	}
	rag := "rag off"
	if m.snapshot.Session.UseRAG {
		rag = "rag on"
	}
	meta := fmt.Sprintf("%s · %s · %s", m.snapshot.Session.UserID, rag, m.baseURL)
	head := headerStyle.Render("ragchat") + " " + render.Truncate(title, maxInt(10, m.width/2))
	return head + "\n" + subtleStyle.Render(render.Truncate(meta, maxInt(10, m.width)))
}

func (m *Model) composerView() string {
	view := m.textarea.View()
	if m.composer.Len() == 0 {
		return view
	}
	names := make([]string, 0, m.composer.Len())
	for _, f := range m.composer.Files() {
		names = append(names, fmt.Sprintf("📎 %s (%s)", f.Name, f.HumanSize()))
	}
	return subtleStyle.Render(render.Truncate(strings.Join(names, "  "), maxInt(10, m.width-6))) + "\n" + view
}

func (m *Model) statusView() string {
	if m.snapshot.Busy {
		return m.spin.View() + " Thinking…"
	}
	if !m.started {
		return m.spin.View() + " Connecting…"
	}
	if m.notice.Text == "" {
		return ""
	}
	style, ok := noticeStyles[m.notice.Level]
	if !ok {
		style = noticeStyles[chat.LevelInfo]
	}
	text := m.notice.Text
	if m.notice.Retryable {
		text += " (/retry to resend)"
	}
	return style.Render(render.Truncate(text, maxInt(10, m.width)))
}

func (m *Model) hints() string {
	if m.snapshot.Busy {
		return "pgup/pgdn scroll · ctrl+c quit"
	}
	return "enter send · alt+enter newline · / commands · ctrl+t conversations · ctrl+n new · ctrl+c quit"
}

func (m *Model) pickerView() string {
	return overlayStyle.Render(m.threads.View()) + "\n" + subtleStyle.Render("enter open · / filter · esc close")
}

func (m *Model) helpView() string {
	lines := []string{headerStyle.Render("Commands"), ""}
	for _, item := range m.slash.Items() {
		lines = append(lines, item.Help())
	}
	lines = append(lines, "", subtleStyle.Render("esc close"))
	return overlayStyle.Render(strings.Join(lines, "\n"))
}
