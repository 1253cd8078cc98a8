// Package history keeps the prompts typed into the composer, one JSON object per line,
// so that up-arrow recall survives restarts.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const fileName = "prompts.jsonl"

type Entry struct {
	Text     string    `json:"text"`
	ThreadID string    `json:"thread_id,omitempty"`
	TS       time.Time `json:"ts"`
}

type Store struct {
	Path string
}

// New returns a store under dir (usually ~/.ragchat).
func New(dir string) *Store {
	if strings.TrimSpace(dir) == "" {
		return &Store{}
	}
	return &Store{Path: filepath.Join(dir, fileName)}
}

func (s *Store) ensureDir() error {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return errors.New("history store path is empty")
	}
	return os.MkdirAll(filepath.Dir(s.Path), 0o755)
}

// Append records a prompt. Blank prompts are ignored.
func (s *Store) Append(threadID, text string) error {
	if s == nil {
		return errors.New("history store is nil")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := s.ensureDir(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(Entry{Text: text, ThreadID: threadID, TS: time.Now()})
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Recent returns up to limit prompt texts, oldest first, with consecutive repeats
// collapsed. limit <= 0 returns everything. Malformed lines are skipped.
func (s *Store) Recent(limit int) ([]string, error) {
	if s == nil {
		return nil, errors.New("history store is nil")
	}
	if strings.TrimSpace(s.Path) == "" {
		return nil, errors.New("history store path is empty")
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var out []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		text := strings.TrimSpace(e.Text)
		if text == "" || (len(out) > 0 && out[len(out)-1] == text) {
			continue
		}
		out = append(out, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
