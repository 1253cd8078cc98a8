package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"ragchat/internal/chat"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

func sampleConversation() Conversation {
	at := time.Date(2026, 3, 4, 9, 15, 0, 0, time.UTC)
	return Conversation{
		Title:    "Budget: Q3",
		ThreadID: "t1",
		Messages: []chat.Message{
			{Role: chat.RoleUser, Text: "What changed?", Status: chat.StatusComplete, CreatedAt: at,
				Attachments: []chat.FileRef{{Name: "q3.pdf", Size: 2048, MIMEType: "application/pdf"}}},
			{Role: chat.RoleAssistant, Text: "Costs went down.", Status: chat.StatusComplete, CreatedAt: at,
				Context: []chat.ContextItem{{Source: "q3.pdf", Content: strings.Repeat("x", 150)}}},
			{Role: chat.RoleAssistant, Status: chat.StatusPending, CreatedAt: at},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, sampleConversation(), fixedNow))
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "=== Budget: Q3 ===\n"))
	require.Contains(t, out, "[09:15] User:\nWhat changed?\n")
	require.Contains(t, out, "  📎 q3.pdf (2.0 KiB)")
	require.Contains(t, out, "  • q3.pdf: "+strings.Repeat("x", 100)+"...")
	require.Equal(t, 1, strings.Count(out, "Assistant:"))
}

func TestWriteJSONSkipsPending(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleConversation(), fixedNow))

	var doc struct {
		Title    string `json:"title"`
		ThreadID string `json:"thread_id"`
		Messages []struct {
			Role        string `json:"role"`
			Content     string `json:"content"`
			Attachments []struct {
				Name string `json:"name"`
			} `json:"attachments"`
			Context []struct {
				Source string `json:"source"`
			} `json:"context"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "t1", doc.ThreadID)
	require.Len(t, doc.Messages, 2)
	require.Equal(t, "q3.pdf", doc.Messages[0].Attachments[0].Name)
	require.Equal(t, "q3.pdf", doc.Messages[1].Context[0].Source)
}

func TestEmptyConversationJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, Conversation{}, fixedNow))
	require.Contains(t, buf.String(), `"messages": []`)
	require.Contains(t, buf.String(), `"title": "New conversation"`)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatText, f)
	_, err = ParseFormat("pdf")
	require.Error(t, err)
}

func TestFileName(t *testing.T) {
	require.Equal(t, "Budget__Q3_2026-03-04-10-30-00.json", FileName("Budget: Q3", FormatJSON, fixedNow))
	require.Equal(t, "New_conversation_2026-03-04-10-30-00.txt", FileName(" ", FormatText, fixedNow))
}
