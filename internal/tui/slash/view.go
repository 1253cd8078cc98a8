package slash

import (
	"fmt"
	"strings"

	"ragchat/internal/tui/render"

	"github.com/charmbracelet/lipgloss"
)

var (
	nameStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C4A1FF"))
	descStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EBCB8B"))
	selectedStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#2F2A3D"))
)

// View 渲染弹窗内容（不含外围边框）。
func (s *State) View(width int) string {
	if s == nil || !s.open {
		return ""
	}
	contentWidth := width
	if contentWidth <= 20 {
		contentWidth = 20
	}
	if len(s.matches) == 0 {
		return lipgloss.NewStyle().Width(contentWidth).Render("no matches")
	}
	lines := []string{}
	for _, entry := range s.visibleEntries(contentWidth) {
		for _, line := range entry.lines {
			if entry.selected {
				line = selectedStyle.Render(line)
			}
			lines = append(lines, line)
		}
	}
	return lipgloss.NewStyle().Width(contentWidth).Render(strings.Join(lines, "\n"))
}

type renderedEntry struct {
	lines    []string
	selected bool
	height   int
}

func (s *State) visibleEntries(contentWidth int) []renderedEntry {
	nameWidth, descWidth := computeColumnWidths(contentWidth, s.matches)
	entries := make([]renderedEntry, 0, len(s.matches))
	for idx, m := range s.matches {
		name := m.item.DisplayName()
		if m.item.Usage != "" {
			name += " " + m.item.Usage
		}
		// 匹配下标基于不带斜杠的 token。
		nameCell := lipgloss.NewStyle().Width(nameWidth).Render(applyHighlights(name, m.highlights, 1))
		descLines := render.Wrap(m.item.Description, descWidth)
		lines := make([]string, 0, len(descLines))
		for i, raw := range descLines {
			left := nameCell
			if i > 0 {
				left = strings.Repeat(" ", lipgloss.Width(nameCell))
			}
			lines = append(lines, fmt.Sprintf("%s  %s", left, descStyle.Render(raw)))
		}
		entries = append(entries, renderedEntry{lines: lines, height: len(lines), selected: idx == s.selected})
	}
	return clampByHeight(entries, s.maxLines, s.selected)
}

func computeColumnWidths(contentWidth int, matches []match) (int, int) {
	maxName := 10
	for _, m := range matches {
		name := m.item.DisplayName()
		if m.item.Usage != "" {
			name += " " + m.item.Usage
		}
		if w := lipgloss.Width(name); w > maxName {
			maxName = w
		}
	}
	if maxName > contentWidth-12 {
		maxName = contentWidth - 12
	}
	descWidth := contentWidth - maxName - 2
	if descWidth < 8 {
		descWidth = 8
	}
	return maxName, descWidth
}

func clampByHeight(entries []renderedEntry, maxLines int, selected int) []renderedEntry {
	if maxLines <= 0 {
		return entries
	}
	for start := 0; start < len(entries); start++ {
		height := 0
		end := start
		for end < len(entries) && height+entries[end].height <= maxLines {
			height += entries[end].height
			end++
		}
		if selected < end {
			return entries[start:end]
		}
	}
	return []renderedEntry{entries[selected]}
}

func applyHighlights(name string, indexes []int, offset int) string {
	if len(indexes) == 0 {
		return nameStyle.Render(name)
	}
	marked := map[int]bool{}
	for _, idx := range indexes {
		marked[idx+offset] = true
	}
	var b strings.Builder
	for i, r := range []rune(name) {
		if marked[i] {
			b.WriteString(highlightStyle.Render(string(r)))
			continue
		}
		b.WriteString(nameStyle.Render(string(r)))
	}
	return b.String()
}
