package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	fileName = "session.json"
	idPrefix = "sess_"
)

// Record is the persisted client identity. SessionID is generated once per
// installation and never rewritten; LastThreadID is a resume hint.
type Record struct {
	SessionID    string    `json:"session_id"`
	LastThreadID string    `json:"last_thread_id,omitempty"`
	Updated      time.Time `json:"updated"`
}

// Store keeps Record in <Dir>/session.json.
type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path() (string, error) {
	if s == nil || strings.TrimSpace(s.Dir) == "" {
		return "", errors.New("session store dir is empty")
	}
	return filepath.Join(s.Dir, fileName), nil
}

// NewSessionID returns a fresh opaque identifier ("sess_" + 10 hex chars).
func NewSessionID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return idPrefix + raw[:10]
}

// Load reads the record; a missing file yields fs.ErrNotExist.
func (s *Store) Load() (Record, error) {
	var rec Record
	path, err := s.path()
	if err != nil {
		return rec, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// LoadOrCreate returns the persisted record, generating and saving a session id when
// the file is absent or carries an empty id.
func (s *Store) LoadOrCreate() (Record, error) {
	rec, err := s.Load()
	switch {
	case err == nil && strings.TrimSpace(rec.SessionID) != "":
		return rec, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return Record{}, err
	}
	rec.SessionID = NewSessionID()
	if err := s.save(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// SaveLastThread records the thread to reopen on the next start. The session id is
// preserved as loaded from disk.
func (s *Store) SaveLastThread(threadID string) error {
	rec, err := s.LoadOrCreate()
	if err != nil {
		return err
	}
	rec.LastThreadID = threadID
	return s.save(rec)
}

func (s *Store) save(rec Record) error {
	path, err := s.path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	rec.Updated = time.Now()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
