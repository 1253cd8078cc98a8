package chat

import (
	"errors"
	"sync"

	"ragchat/internal/transport"

	"github.com/dustin/go-humanize"
)

// ErrReleased is returned when reading a blob whose content was already released.
var ErrReleased = errors.New("attachment content released")

// Blob owns the bytes of one attachment until released. Release is idempotent.
type Blob struct {
	mu       sync.Mutex
	data     []byte
	released bool
}

func NewBlob(data []byte) *Blob {
	return &Blob{data: data}
}

// Bytes returns the content, or ErrReleased.
func (b *Blob) Bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, ErrReleased
	}
	return b.data, nil
}

// Release drops the content. It reports whether this call performed the release.
func (b *Blob) Release() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return false
	}
	b.released = true
	b.data = nil
	return true
}

func (b *Blob) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// FileRef describes an attachment. Content is nil for files known only by metadata
// (history entries).
type FileRef struct {
	Name     string
	Size     int64
	MIMEType string
	Content  *Blob
}

// NewFileRef wraps data in a fresh Blob.
func NewFileRef(name, mimeType string, data []byte) FileRef {
	return FileRef{Name: name, Size: int64(len(data)), MIMEType: mimeType, Content: NewBlob(data)}
}

// Release frees the owned content; safe to call any number of times.
func (f FileRef) Release() {
	if f.Content != nil {
		f.Content.Release()
	}
}

// HumanSize renders Size in binary units ("1.5 MiB").
func (f FileRef) HumanSize() string {
	if f.Size < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(f.Size))
}

func (f FileRef) upload() (transport.Upload, error) {
	if f.Content == nil {
		return transport.Upload{}, ErrReleased
	}
	data, err := f.Content.Bytes()
	if err != nil {
		return transport.Upload{}, err
	}
	return transport.Upload{Name: f.Name, MIMEType: f.MIMEType, Data: data}, nil
}

func releaseAll(files []FileRef) {
	for _, f := range files {
		f.Release()
	}
}
