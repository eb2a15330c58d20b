package capture

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// recorder buffers one live stream and owns its tracks.
// The duration cap is enforced at capture time with a hard timer,
// so a forgotten recording can't grow without bound.
type recorder struct {
	stream Stream

	mu  sync.Mutex
	buf bytes.Buffer

	timer *time.Timer
	done  chan struct{}
}

func startRecorder(ctx context.Context, src Source, kind Kind, maxDur time.Duration) (*recorder, error) {
	stream, err := src.Open(ctx, kind)
	if err != nil {
		return nil, err
	}
	r := &recorder{stream: stream, done: make(chan struct{})}
	go r.collect()
	if maxDur > 0 {
		r.timer = time.AfterFunc(maxDur, func() {
			goapp.Log.Info().Dur("cap", maxDur).Msg("auto stop")
			r.stopTracks()
		})
	}
	return r, nil
}

func (r *recorder) collect() {
	defer close(r.done)
	for ch := range r.stream.Chunks() {
		r.mu.Lock()
		_, _ = r.buf.Write(ch)
		r.mu.Unlock()
	}
}

// stopTracks releases the hardware without finalizing - used by the cap timer
func (r *recorder) stopTracks() {
	for _, t := range r.stream.Tracks() {
		t.Stop()
	}
}

// stop finalizes the recording: stops every track, cancels the cap timer,
// waits for buffered chunks and returns the encoded media. Idempotent -
// every caller gets the same content.
func (r *recorder) stop() ([]byte, string) {
	r.stopTracks()
	if r.timer != nil {
		r.timer.Stop()
	}
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Bytes(), r.stream.MimeType()
}
