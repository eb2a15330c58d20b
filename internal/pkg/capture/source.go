package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/respondr/respondr/internal/pkg/utils"
)

// Kind selects which devices a stream combines
type Kind int

const (
	// KindVideo - camera plus microphone
	KindVideo Kind = iota + 1
	// KindAudio - microphone only
	KindAudio
)

// Track is one live device feed inside a stream.
// Only the stream owner may stop it. Stop is idempotent.
type Track interface {
	Kind() string
	Stop()
}

// Stream is an acquired set of device tracks producing encoded chunks.
// The chunk channel closes after every track is stopped.
type Stream interface {
	Tracks() []Track
	Chunks() <-chan []byte
	MimeType() string
}

// Source acquires device streams. It may block on a permission grant,
// so Open takes a context.
type Source interface {
	Open(ctx context.Context, kind Kind) (Stream, error)
}

// DeviceSource reads encoded media from device nodes or capture pipes
type DeviceSource struct {
	VideoPath string
	AudioPath string
	VideoMime string
	AudioMime string
	ChunkSize int
}

// NewDeviceSource creates a source over configured device paths
func NewDeviceSource(videoPath, audioPath string) (*DeviceSource, error) {
	if videoPath == "" {
		return nil, fmt.Errorf("no videoPath")
	}
	if audioPath == "" {
		return nil, fmt.Errorf("no audioPath")
	}
	return &DeviceSource{VideoPath: videoPath, AudioPath: audioPath,
		VideoMime: "video/mp4", AudioMime: "audio/webm", ChunkSize: 64 * 1024}, nil
}

// Open acquires the devices for the requested kind
func (ds *DeviceSource) Open(ctx context.Context, kind Kind) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDeviceUnavailable, err)
	}
	path, mime := ds.VideoPath, ds.VideoMime
	trackKinds := []string{"video", "audio"}
	if kind == KindAudio {
		path, mime = ds.AudioPath, ds.AudioMime
		trackKinds = []string{"audio"}
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %v", utils.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrDeviceUnavailable, err)
	}
	goapp.Log.Info().Str("path", path).Msg("device open")
	return newDeviceStream(f, mime, trackKinds, ds.chunkSize()), nil
}

func (ds *DeviceSource) chunkSize() int {
	if ds.ChunkSize > 0 {
		return ds.ChunkSize
	}
	return 64 * 1024
}

type deviceStream struct {
	mime   string
	tracks []Track
	chunks chan []byte
	stop   sync.Once
	f      *os.File
}

func newDeviceStream(f *os.File, mime string, trackKinds []string, chunkSize int) *deviceStream {
	res := &deviceStream{mime: mime, chunks: make(chan []byte, 16), f: f}
	live := len(trackKinds)
	var mu sync.Mutex
	for _, tk := range trackKinds {
		res.tracks = append(res.tracks, &deviceTrack{kind: tk, stopF: func() {
			mu.Lock()
			live--
			last := live == 0
			mu.Unlock()
			if last {
				res.stop.Do(func() { _ = res.f.Close() })
			}
		}})
	}
	go res.read(chunkSize)
	return res
}

func (s *deviceStream) read(chunkSize int) {
	defer close(s.chunks)
	for {
		buf := make([]byte, chunkSize)
		n, err := s.f.Read(buf)
		if n > 0 {
			s.chunks <- buf[:n]
		}
		if err != nil {
			if err != io.EOF && !isClosed(err) {
				goapp.Log.Warn().Err(err).Msg("device read error")
			}
			return
		}
	}
}

func isClosed(err error) bool {
	return errors.Is(err, os.ErrClosed)
}

func (s *deviceStream) Tracks() []Track {
	return s.tracks
}

func (s *deviceStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *deviceStream) MimeType() string {
	return s.mime
}

type deviceTrack struct {
	kind  string
	once  sync.Once
	stopF func()
}

func (t *deviceTrack) Kind() string {
	return t.kind
}

func (t *deviceTrack) Stop() {
	t.once.Do(t.stopF)
}
