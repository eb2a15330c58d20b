package capture

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/respondr/respondr/internal/pkg/utils"
)

// MaxVideoDuration is the hard recording cap enforced at capture time
const MaxVideoDuration = 20 * time.Second

// maxAudioDuration bounds dictation capture the same way
const maxAudioDuration = time.Minute

// defaultProbeTimeout bounds the metadata probe of uploaded files
const defaultProbeTimeout = 3 * time.Second

// Mode represents capture state
type Mode int

const (
	// Idle - nothing captured yet
	Idle Mode = iota + 1
	// LiveRecording - camera+microphone capture in progress
	LiveRecording
	// LiveAudioRecording - dictation capture in progress
	LiveAudioRecording
	// Ready - a finished media blob is held
	Ready
	// Errored - last capture action failed
	Errored
)

var modeName = map[Mode]string{Idle: "IDLE", LiveRecording: "LIVE_RECORDING",
	LiveAudioRecording: "LIVE_AUDIO_RECORDING", Ready: "READY", Errored: "ERROR"}

func (m Mode) String() string {
	return modeName[m]
}

// Target names an independent dictation slot
type Target int

const (
	// TargetNote - dictation into the pre-analysis note
	TargetNote Target = iota + 1
	// TargetChat - dictation into the chat input
	TargetChat
)

var targetName = map[Target]string{TargetNote: "note", TargetChat: "chat"}

func (t Target) String() string {
	return targetName[t]
}

// Controller owns device streams and the current media blob.
// Every acquired stream and blob is released exactly once no matter
// how the capture flow ends.
type Controller struct {
	source       Source
	prober       Prober
	probeTimeout time.Duration
	videoCap     time.Duration

	mu      sync.Mutex
	video   *recorder
	audio   map[Target]*recorder
	blob    *Blob
	lastErr error
}

// NewController creates a capture controller over a stream source.
// prober may be nil - then uploaded files are accepted without a duration check.
func NewController(source Source, prober Prober) (*Controller, error) {
	if source == nil {
		return nil, fmt.Errorf("no source")
	}
	return &Controller{source: source, prober: prober, probeTimeout: defaultProbeTimeout,
		videoCap: MaxVideoDuration, audio: map[Target]*recorder{}}, nil
}

// StartVideoRecording acquires camera+microphone and starts buffering.
// Recording stops by itself at the duration cap and finalizes into the
// held blob even without an explicit stop call.
func (c *Controller) StartVideoRecording(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.video != nil {
		return fmt.Errorf("recording already active")
	}
	rec, err := startRecorder(ctx, c.source, KindVideo, c.videoCap)
	if err != nil {
		c.lastErr = err
		return err
	}
	c.video = rec
	c.lastErr = nil
	go c.watchAutoStop(rec)
	goapp.Log.Info().Msg("video recording started")
	return nil
}

// watchAutoStop finalizes a recording whose stream ended on its own,
// by the cap timer or the source drying up
func (c *Controller) watchAutoStop(rec *recorder) {
	<-rec.done
	c.finalizeVideo(rec)
}

// StopVideoRecording finalizes the buffered recording into a blob and
// releases every track of the stream. After an auto-stop already
// finalized it, the held blob is returned. Calling it twice or without
// a start neither fails nor double-releases.
func (c *Controller) StopVideoRecording() (*Blob, error) {
	c.mu.Lock()
	rec := c.video
	c.mu.Unlock()
	if rec == nil {
		return c.CurrentBlob(), nil
	}
	if b := c.finalizeVideo(rec); b != nil {
		return b, nil
	}
	return c.CurrentBlob(), nil
}

// finalizeVideo turns the recorder's buffer into the held blob.
// Explicit stop and auto-stop race here - only the caller that detaches
// the recorder installs the blob, the other gets nil.
func (c *Controller) finalizeVideo(rec *recorder) *Blob {
	data, mime := rec.stop()
	c.mu.Lock()
	if c.video != rec {
		c.mu.Unlock()
		return nil
	}
	c.video = nil
	b := NewBlob(data, mime)
	old := c.blob
	c.blob = b
	c.lastErr = nil
	c.mu.Unlock()
	old.Release()
	goapp.Log.Info().Str("ID", b.ID()).Int("size", b.Size()).Str("mime", mime).Msg("video recording ready")
	return b
}

// IngestUploadedFile accepts a user-selected video file.
// The duration probe is bounded - when metadata can't be read in time
// the file is accepted anyway rather than blocking the user.
func (c *Controller) IngestUploadedFile(ctx context.Context, name, mime string, r io.Reader) (*Blob, error) {
	if !declaredVideo(name, mime) {
		return nil, fmt.Errorf("%w: '%s'", utils.ErrInvalidMediaType, mime)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("can't read file: %w", err)
	}
	if dur, ok := c.probe(ctx, data, mime); ok && dur > MaxVideoDuration {
		return nil, fmt.Errorf("%w: %v > %v", utils.ErrDurationExceeded, dur, MaxVideoDuration)
	}
	b := NewBlob(data, mime)
	c.setBlob(b)
	goapp.Log.Info().Str("ID", b.ID()).Str("name", name).Int("size", b.Size()).Msg("file accepted")
	return b, nil
}

// probe reads duration metadata with a bounded wait
func (c *Controller) probe(ctx context.Context, data []byte, mime string) (time.Duration, bool) {
	if c.prober == nil {
		return 0, false
	}
	ctx, cancelF := context.WithTimeout(ctx, c.probeTimeout)
	defer cancelF()
	type probeRes struct {
		dur time.Duration
		err error
	}
	ch := make(chan probeRes, 1)
	go func() {
		dur, err := c.prober.Duration(ctx, data, mime)
		ch <- probeRes{dur: dur, err: err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			goapp.Log.Warn().Err(r.err).Msg("can't probe duration - accepting file")
			return 0, false
		}
		return r.dur, true
	case <-ctx.Done():
		goapp.Log.Warn().Msg("duration probe timeout - accepting file")
		return 0, false
	}
}

// StartAudioCapture starts a microphone-only recording for the given slot.
// Slots are independent - each owns its stream and buffer.
func (c *Controller) StartAudioCapture(ctx context.Context, target Target) error {
	if target.String() == "" {
		return fmt.Errorf("unknown target %d", target)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audio[target] != nil {
		return fmt.Errorf("audio capture '%s' already active", target)
	}
	rec, err := startRecorder(ctx, c.source, KindAudio, maxAudioDuration)
	if err != nil {
		c.lastErr = err
		return err
	}
	c.audio[target] = rec
	c.lastErr = nil
	goapp.Log.Info().Str("target", target.String()).Msg("audio capture started")
	return nil
}

// StopAudioCapture finalizes the slot's recording and hands the blob to the
// caller, who owns its release. No-op when the slot is not recording.
func (c *Controller) StopAudioCapture(target Target) (*Blob, error) {
	c.mu.Lock()
	rec := c.audio[target]
	delete(c.audio, target)
	c.mu.Unlock()
	if rec == nil {
		return nil, nil
	}
	data, mime := rec.stop()
	goapp.Log.Info().Str("target", target.String()).Int("size", len(data)).Msg("audio capture ready")
	return NewBlob(data, mime), nil
}

// CurrentBlob returns the held media blob, nil when none
func (c *Controller) CurrentBlob() *Blob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blob
}

// Mode returns the capture state
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.video != nil:
		return LiveRecording
	case len(c.audio) > 0:
		return LiveAudioRecording
	case c.blob != nil:
		return Ready
	case c.lastErr != nil:
		return Errored
	}
	return Idle
}

// LastError returns the last failed capture action error
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Release stops any active recorders, releases all streams and the current
// blob. Safe to call multiple times, must run on every exit path.
func (c *Controller) Release() {
	c.mu.Lock()
	video := c.video
	c.video = nil
	audio := c.audio
	c.audio = map[Target]*recorder{}
	blob := c.blob
	c.blob = nil
	c.lastErr = nil
	c.mu.Unlock()

	if video != nil {
		_, _ = video.stop()
	}
	for _, rec := range audio {
		_, _ = rec.stop()
	}
	blob.Release()
}

// setBlob installs a new current blob, retiring the previous one first
func (c *Controller) setBlob(b *Blob) {
	c.mu.Lock()
	old := c.blob
	c.blob = b
	c.lastErr = nil
	c.mu.Unlock()
	old.Release()
}

func declaredVideo(name, mime string) bool {
	if mime != "" {
		return utils.VideoMime(mime)
	}
	return utils.SupportVideoExt(strings.ToLower(filepath.Ext(name)))
}
