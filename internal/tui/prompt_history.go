package tui

import "strings"

// promptHistory 负责输入框历史浏览状态（上下箭头）。
// cursor == len(entries) 表示当前在“最新输入”（非浏览历史）位置。
type promptHistory struct {
	entries []string
	cursor  int
	draft   string
}

// Load 用持久化的历史替换当前条目。
func (h *promptHistory) Load(entries []string) {
	h.entries = append(h.entries[:0], entries...)
	h.ResetBrowsing()
}

func (h *promptHistory) Add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == text {
		h.ResetBrowsing()
		return
	}
	h.entries = append(h.entries, text)
	h.ResetBrowsing()
}

func (h *promptHistory) Browsing() bool {
	return h.cursor < len(h.entries)
}

func (h *promptHistory) ResetBrowsing() {
	h.cursor = len(h.entries)
	h.draft = ""
}

// Prev 回到上一条历史，首次进入时保存当前草稿。
func (h *promptHistory) Prev(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.cursor == len(h.entries) {
		h.draft = current
	}
	if h.cursor > 0 {
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next 前进一条历史，越过末尾时恢复草稿。
func (h *promptHistory) Next() (string, bool) {
	if h.cursor >= len(h.entries) {
		return "", false
	}
	if h.cursor < len(h.entries)-1 {
		h.cursor++
		return h.entries[h.cursor], true
	}
	h.cursor = len(h.entries)
	return h.draft, true
}
