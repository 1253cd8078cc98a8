package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Thread is one entry of GET /chats.
type Thread struct {
	ID          string    `json:"thread_id"`
	Title       string    `json:"title"`
	CreatedAt   Timestamp `json:"created_at"`
	Preview     string    `json:"preview,omitempty"`
	LastMessage string    `json:"last_message,omitempty"`
}

// Summary returns the preview text, falling back to last_message.
func (t Thread) Summary() string {
	if strings.TrimSpace(t.Preview) != "" {
		return t.Preview
	}
	return t.LastMessage
}

// HistoryEntry is one entry of GET /history.
type HistoryEntry struct {
	Role    string       `json:"role"`
	Message string       `json:"message"`
	Context []ContextDoc `json:"context,omitempty"`
	Files   []FileInfo   `json:"files,omitempty"`
}

// FileInfo describes a file the server remembers for a history entry. The bytes are not
// part of the history payload.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// ContextDoc is a retrieved source document.
type ContextDoc struct {
	PageContent string         `json:"page_content,omitempty"`
	Content     string         `json:"content,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Text returns page_content, falling back to content.
func (d ContextDoc) Text() string {
	if d.PageContent != "" {
		return d.PageContent
	}
	return d.Content
}

// Source returns metadata.source when it is a non-empty string.
func (d ContextDoc) Source() string {
	if d.Metadata == nil {
		return ""
	}
	if s, ok := d.Metadata["source"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// Upload is one file part of POST /ask.
type Upload struct {
	Name     string
	MIMEType string
	Data     []byte
}

// AskRequest is the multipart body of POST /ask.
type AskRequest struct {
	Question  string
	UseRAG    bool
	SessionID string
	UserID    string
	ThreadID  string
	Files     []Upload
}

// AskResponse is the JSON body of POST /ask. Error is set when the server reports a
// failure in-band.
type AskResponse struct {
	Answer    string       `json:"answer"`
	Context   []ContextDoc `json:"context,omitempty"`
	ThreadID  string       `json:"thread_id,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
	Error     string       `json:"error,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

type renameBody struct {
	Title string `json:"title"`
}

// Timestamp accepts RFC3339 as well as the naive ISO form produced by Python's
// datetime.isoformat() (interpreted as UTC). null and "" decode to the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
