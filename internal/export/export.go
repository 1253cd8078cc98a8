// Package export renders the active conversation as plain text or JSON.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"ragchat/internal/chat"
)

type Format string

const (
	FormatText Format = "txt"
	FormatJSON Format = "json"
)

// ParseFormat accepts "txt"/"text" and "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want txt or json)", s)
	}
}

// Conversation is what gets exported. Pending messages are skipped.
type Conversation struct {
	Title    string
	ThreadID string
	Messages []chat.Message
}

const (
	untitled       = "New conversation"
	contextPreview = 100
)

func (c Conversation) title() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return untitled
}

// Write renders conv in the given format.
func Write(w io.Writer, f Format, conv Conversation, now time.Time) error {
	switch f {
	case FormatText:
		_, err := io.WriteString(w, renderText(conv, now))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(buildDocument(conv, now))
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

func renderText(conv Conversation, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", conv.title())
	fmt.Fprintf(&b, "Exported: %s\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n\n")

	for _, m := range conv.Messages {
		if m.Status == chat.StatusPending {
			continue
		}
		role := "Assistant"
		if m.Role == chat.RoleUser {
			role = "User"
		}
		fmt.Fprintf(&b, "[%s] %s:\n", m.CreatedAt.Format("15:04"), role)
		b.WriteString(m.Text)
		b.WriteString("\n")
		for _, f := range m.Attachments {
			fmt.Fprintf(&b, "  📎 %s (%s)\n", f.Name, f.HumanSize())
		}
		if len(m.Context) > 0 {
			b.WriteString("\nSources:\n")
			for _, c := range m.Context {
				fmt.Fprintf(&b, "  • %s: %s\n", c.Source, preview(c.Content, contextPreview))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

type document struct {
	Title      string    `json:"title"`
	ExportedAt time.Time `json:"exported_at"`
	ThreadID   string    `json:"thread_id,omitempty"`
	Messages   []entry   `json:"messages"`
}

type entry struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Error       bool         `json:"error,omitempty"`
	Attachments []attachment `json:"attachments,omitempty"`
	Context     []source     `json:"context,omitempty"`
}

type attachment struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"type,omitempty"`
}

type source struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

func buildDocument(conv Conversation, now time.Time) document {
	doc := document{
		Title:      conv.title(),
		ExportedAt: now.UTC(),
		ThreadID:   conv.ThreadID,
		Messages:   []entry{},
	}
	for _, m := range conv.Messages {
		if m.Status == chat.StatusPending {
			continue
		}
		e := entry{
			Role:      string(m.Role),
			Content:   m.Text,
			Timestamp: m.CreatedAt.UTC(),
			Error:     m.Error,
		}
		for _, f := range m.Attachments {
			e.Attachments = append(e.Attachments, attachment{Name: f.Name, Size: f.Size, MIMEType: f.MIMEType})
		}
		if m.Role == chat.RoleAssistant {
			for _, c := range m.Context {
				e.Context = append(e.Context, source{Source: c.Source, Content: c.Content})
			}
		}
		doc.Messages = append(doc.Messages, e)
	}
	return doc
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FileName builds "<title>_<YYYY-MM-DD-HH-MM-SS>.<ext>" with every non-alphanumeric
// character of the title replaced by an underscore.
func FileName(title string, f Format, now time.Time) string {
	if strings.TrimSpace(title) == "" {
		title = untitled
	}
	return fmt.Sprintf("%s_%s.%s", unsafeName.ReplaceAllString(title, "_"), now.UTC().Format("2006-01-02-15-04-05"), f)
}
