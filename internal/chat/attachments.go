package chat

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
)

// MaxFileSize is the largest attachment accepted.
const MaxFileSize = 10 * 1024 * 1024

var allowedTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"audio/mpeg": true,
	"audio/wav":  true,
	"audio/mp4":  true,
	"audio/webm": true,
}

var typesByExt = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".webm": "audio/webm",
}

// DetectType resolves a MIME type from the file extension, then from the content.
func DetectType(name string, data []byte) string {
	if t, ok := typesByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	if len(data) == 0 {
		return "application/octet-stream"
	}
	t := http.DetectContentType(data)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}

// ValidateFile applies the size limit and the type allow-list (by MIME type or extension).
func ValidateFile(f FileRef) error {
	if f.Size > MaxFileSize {
		return invalid(ErrFileTooLarge, fmt.Sprintf("%q is %s (max 10 MiB)", f.Name, f.HumanSize()))
	}
	if allowedTypes[strings.ToLower(f.MIMEType)] {
		return nil
	}
	if _, ok := typesByExt[strings.ToLower(filepath.Ext(f.Name))]; ok {
		return nil
	}
	return invalid(ErrUnsupportedType, fmt.Sprintf("%q (%s)", f.Name, f.MIMEType))
}

// Composer collects attachments for the next submission. Files handed out by Take belong to
// the caller; files dropped by Clear are released.
type Composer struct {
	mu    sync.Mutex
	files []FileRef
}

// Add validates and appends a file, skipping duplicates (same name and size). It reports
// whether the file was added.
func (c *Composer) Add(name string, data []byte) (bool, error) {
	f := NewFileRef(name, DetectType(name, data), data)
	if err := ValidateFile(f); err != nil {
		f.Release()
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.files {
		if existing.Name == f.Name && existing.Size == f.Size {
			f.Release()
			return false, nil
		}
	}
	c.files = append(c.files, f)
	return true, nil
}

func (c *Composer) Files() []FileRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]FileRef(nil), c.files...)
}

func (c *Composer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}

// Take empties the composer and transfers ownership of its files to the caller.
func (c *Composer) Take() []FileRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.files
	c.files = nil
	return out
}

// Clear drops and releases every selected file.
func (c *Composer) Clear() {
	releaseAll(c.Take())
}

// AudioClip is an opaque recording produced by whatever capture facility the host has.
type AudioClip struct {
	Data     []byte
	MIMEType string
}

const audioDisplayText = "🎤 Audio message"

func (a AudioClip) fileName() string {
	ext := "webm"
	switch strings.ToLower(a.MIMEType) {
	case "audio/mp4":
		ext = "m4a"
	case "audio/mpeg":
		ext = "mp3"
	case "audio/wav":
		ext = "wav"
	}
	return "audio_message." + ext
}

func (a AudioClip) fileRef() FileRef {
	mimeType := a.MIMEType
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return NewFileRef(a.fileName(), mimeType, a.Data)
}
