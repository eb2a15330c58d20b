package capture

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/google/uuid"
)

// Blob is a finished in-memory recording.
// It is singly owned - whoever holds it must call Release exactly when done,
// and Release is safe to call more than once.
type Blob struct {
	mu        sync.Mutex
	id        string
	data      []byte
	mime      string
	createdAt time.Time
	preview   string
	released  bool
}

// NewBlob wraps finished media bytes
func NewBlob(data []byte, mime string) *Blob {
	return &Blob{id: uuid.NewString(), data: data, mime: mime, createdAt: time.Now()}
}

// ID returns the unique recording identifier
func (b *Blob) ID() string {
	return b.id
}

// Bytes returns the media content, nil after release
func (b *Blob) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// Reader returns a fresh reader over the content
func (b *Blob) Reader() io.Reader {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.NewReader(b.data)
}

// MimeType returns the declared media type
func (b *Blob) MimeType() string {
	return b.mime
}

// Size returns content length in bytes
func (b *Blob) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// CreatedAt returns blob creation time
func (b *Blob) CreatedAt() time.Time {
	return b.createdAt
}

// Preview materializes the content as a temp file for external players.
// At most one preview file exists per blob, it is removed on Release.
func (b *Blob) Preview() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return "", os.ErrClosed
	}
	if b.preview != "" {
		return b.preview, nil
	}
	f, err := os.CreateTemp("", "respondr-preview-*"+extForMime(b.mime))
	if err != nil {
		return "", err
	}
	if _, err := f.Write(b.data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	b.preview = f.Name()
	return b.preview, nil
}

// Release drops the content and removes any preview file. Idempotent.
func (b *Blob) Release() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	b.data = nil
	if b.preview != "" {
		if err := os.Remove(b.preview); err != nil && !os.IsNotExist(err) {
			goapp.Log.Warn().Err(err).Msg("can't remove preview")
		}
		b.preview = ""
	}
}

// Released reports if the blob content was dropped
func (b *Blob) Released() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

func extForMime(mime string) string {
	switch mime {
	case "video/mp4":
		return ".mp4"
	case "video/webm", "audio/webm":
		return ".webm"
	case "audio/wav":
		return ".wav"
	}
	return ".bin"
}
