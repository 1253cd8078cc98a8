package render

import (
	"fmt"
	"strings"

	"ragchat/internal/chat"

	"github.com/charmbracelet/lipgloss"
)

var (
	userPrefixStyle      = lipgloss.NewStyle().Faint(true).Bold(true)
	userIndentStyle      = lipgloss.NewStyle().Faint(true)
	assistantPrefixStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	errorStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	attachmentStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D7A85"))
	sourceStyle          = lipgloss.NewStyle().Faint(true)
	pendingStyle         = lipgloss.NewStyle().Faint(true).Italic(true)
)

// WelcomeText 在时间线为空时展示。
const WelcomeText = "Start a new conversation: type a message, or /help for commands."

// Options 控制时间线渲染。
type Options struct {
	Width int
	// Spinner 是 pending 占位消息的动画帧。
	Spinner string
	// Selected 标记 /copy 与 /edit 的目标消息。
	Selected string
}

// Messages 把时间线渲染为终端行。每条消息之间空一行。
func Messages(msgs []chat.Message, opts Options) []string {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	if len(msgs) == 0 {
		return Wrap(WelcomeText, width)
	}
	lines := []string{}
	for i, m := range msgs {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, message(m, width, opts)...)
	}
	return lines
}

func message(m chat.Message, width int, opts Options) []string {
	bodyWidth := maxInt(10, width-2)
	var out []string
	switch {
	case m.Role == chat.RoleUser:
		out = prefixLines(Wrap(m.Text, bodyWidth), userPrefixStyle.Render("› "), userIndentStyle.Render("  "))
		for _, f := range m.Attachments {
			out = append(out, "  "+attachmentStyle.Render(fmt.Sprintf("📎 %s (%s)", f.Name, f.HumanSize())))
		}
	case m.Status == chat.StatusPending:
		out = []string{assistantPrefixStyle.Render("• ") + pendingStyle.Render(strings.TrimSpace(opts.Spinner+" Thinking…"))}
	default:
		text := strings.TrimRight(m.Text, "\n")
		style := lipgloss.NewStyle()
		if m.Error {
			style = errorStyle
		}
		wrapped := Wrap(text, bodyWidth)
		for i := range wrapped {
			wrapped[i] = style.Render(wrapped[i])
		}
		out = prefixLines(wrapped, assistantPrefixStyle.Render("• "), "  ")
		if len(m.Context) > 0 {
			out = append(out, "  "+sourceStyle.Render("Sources:"))
			for _, c := range m.Context {
				out = append(out, "  "+sourceStyle.Render(Truncate(fmt.Sprintf("- %s: %s", c.Source, c.Content), bodyWidth-2)))
			}
		}
	}
	if opts.Selected != "" && opts.Selected == m.ID && len(out) > 0 {
		out[0] = out[0] + attachmentStyle.Render("  ◂")
	}
	return out
}

func prefixLines(lines []string, initial, subsequent string) []string {
	out := make([]string, 0, len(lines))
	for i, l := range lines {
		if i == 0 {
			out = append(out, initial+l)
			continue
		}
		out = append(out, subsequent+l)
	}
	return out
}

// ThreadLine 渲染会话列表中的一行：标题、日期与预览。
func ThreadLine(t chat.ThreadSummary, active bool, width int) string {
	title := t.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}
	marker := "  "
	if active {
		marker = "▸ "
	}
	date := ""
	if !t.CreatedAt.IsZero() {
		date = t.CreatedAt.Local().Format("Jan 2")
	}
	head := marker + title
	if date != "" {
		head += "  " + date
	}
	line := Truncate(head, width)
	if t.Preview != "" && lipgloss.Width(line)+4 < width {
		line += attachmentStyle.Render(" · " + Truncate(t.Preview, width-lipgloss.Width(line)-3))
	}
	return line
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
