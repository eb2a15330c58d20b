package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/pkg/errors"

	"github.com/respondr/respondr/internal/pkg/analyzer"
	"github.com/respondr/respondr/internal/pkg/analyzer/api"
	"github.com/respondr/respondr/internal/pkg/capture"
	"github.com/respondr/respondr/internal/pkg/phase"
	"github.com/respondr/respondr/internal/pkg/utils"
)

// MaxTurns caps the follow-up conversation
const MaxTurns = 10

// fallbackReply is appended when a chat turn fails - a flaky turn
// must not destroy the conversation
const fallbackReply = "Sorry, I couldn't process that right now. Please try again."

// Backend performs analyze and chat calls
type Backend interface {
	Analyze(ctx context.Context, data *api.UploadData, progress analyzer.ProgressFunc) (*api.AnalyzeResponse, error)
	SendChatTurn(ctx context.Context, sessionID, message string) (*api.ChatResponse, error)
}

// Recorder releases capture resources on session reset
type Recorder interface {
	Release()
}

// MessageKind tags a conversation message variant
type MessageKind int

const (
	// UserText - a message typed or dictated by the user
	UserText MessageKind = iota + 1
	// AssistantAnalysis - the initial analysis result
	AssistantAnalysis
	// AssistantReply - a chat reply, possibly location-bearing
	AssistantReply
)

// Message is one entry of the conversation log
type Message struct {
	Kind     MessageKind
	Text     string
	Analysis *api.AnalyzeResponse
	Location *api.LocationData
	At       time.Time
}

// Data keeps data required for store work
type Data struct {
	Backend      Backend
	Recorder     Recorder
	UserLocation string
	Progress     func(int)
}

// Store is the capture/chat state machine. It owns the message log
// exclusively - other components only get copies.
type Store struct {
	backend      Backend
	recorder     Recorder
	userLocation string
	progress     func(int)

	mu          sync.Mutex
	phase       phase.Phase
	sessionID   string
	messages    []Message
	turnCount   int
	epoch       uint64
	pendingChat bool
	blob        *capture.Blob
	note        string
	lastErr     error
}

// NewStore creates a session store
func NewStore(data *Data) (*Store, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	loc := data.UserLocation
	if loc == "" {
		loc = "Miami, FL"
	}
	return &Store{backend: data.Backend, recorder: data.Recorder, userLocation: loc,
		progress: data.Progress, phase: phase.Capturing}, nil
}

func validate(data *Data) error {
	if data.Backend == nil {
		return errors.New("no backend")
	}
	if data.Recorder == nil {
		return errors.New("no recorder")
	}
	return nil
}

// SubmitVideo sends the captured video for analysis. Valid only in the
// capturing phase with a live blob. On failure the phase reverts to
// capturing and the blob and note stay, so the user can retry without
// re-recording. A response arriving after a reset is discarded.
func (s *Store) SubmitVideo(ctx context.Context, blob *capture.Blob, note string) error {
	s.mu.Lock()
	if s.phase != phase.Capturing {
		s.mu.Unlock()
		return fmt.Errorf("can't submit in phase %s", s.phase)
	}
	if blob == nil || blob.Released() {
		s.mu.Unlock()
		return fmt.Errorf("no video")
	}
	if s.blob != nil && s.blob != blob {
		s.blob.Release()
	}
	s.blob = blob
	s.note = note
	s.phase = phase.Analyzing
	s.lastErr = nil
	ep := s.epoch
	s.mu.Unlock()

	data := &api.UploadData{
		Files:  map[string]io.Reader{api.PrmVideo: blob.Reader()},
		Params: map[string]string{api.PrmNote: note, api.PrmSessionID: api.SessionNew, api.PrmUserLocation: s.userLocation},
	}
	res, err := s.backend.Analyze(ctx, data, s.progress)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ep != s.epoch {
		goapp.Log.Info().Msg("discard stale analyze response")
		return nil
	}
	if err != nil {
		s.phase = phase.Capturing
		s.lastErr = err
		return err
	}
	s.sessionID = res.SessionID
	s.messages = append(s.messages, Message{Kind: AssistantAnalysis, Analysis: res, At: time.Now()})
	s.phase = phase.Chatting
	goapp.Log.Info().Str("ID", s.sessionID).Msg("analysis ready")
	return nil
}

// SendMessage posts one chat turn. Blank input is a silent no-op.
// At the turn cap it is rejected until Reset. A failed turn degrades to a
// fallback assistant reply and never reverts the phase.
func (s *Store) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	s.mu.Lock()
	if s.phase == phase.LimitReached {
		s.mu.Unlock()
		return utils.ErrSessionLimit
	}
	if s.phase != phase.Chatting {
		s.mu.Unlock()
		return fmt.Errorf("can't chat in phase %s", s.phase)
	}
	if s.pendingChat {
		s.mu.Unlock()
		return fmt.Errorf("chat turn pending")
	}
	s.messages = append(s.messages, Message{Kind: UserText, Text: text, At: time.Now()})
	s.pendingChat = true
	ep := s.epoch
	sid := s.sessionID
	s.mu.Unlock()

	res, err := s.backend.SendChatTurn(ctx, sid, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ep != s.epoch {
		goapp.Log.Info().Str("ID", sid).Msg("discard stale chat response")
		return nil
	}
	s.pendingChat = false
	if err != nil {
		goapp.Log.Error().Err(err).Str("ID", sid).Msg("chat turn failed")
		s.messages = append(s.messages, Message{Kind: AssistantReply, Text: fallbackReply, At: time.Now()})
		return nil
	}
	s.messages = append(s.messages, Message{Kind: AssistantReply, Text: res.Response,
		Location: res.LocationData, At: time.Now()})
	s.turnCount++
	if s.turnCount >= MaxTurns {
		s.phase = phase.LimitReached
		goapp.Log.Info().Str("ID", sid).Msg("turn limit reached")
	}
	return nil
}

// Reset clears all session state, releases capture resources and returns
// to the capturing phase. Valid from any phase. In-flight responses are
// discarded by the epoch bump.
func (s *Store) Reset() {
	s.mu.Lock()
	s.epoch++
	s.phase = phase.Capturing
	s.sessionID = ""
	s.messages = nil
	s.turnCount = 0
	s.pendingChat = false
	blob := s.blob
	s.blob = nil
	s.note = ""
	s.lastErr = nil
	s.mu.Unlock()

	s.recorder.Release()
	blob.Release()
	goapp.Log.Info().Msg("session reset")
}

// Phase returns the current phase
func (s *Store) Phase() phase.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SessionID returns the backend-issued identifier, empty before analysis
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// TurnCount returns completed assistant replies
func (s *Store) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCount
}

// Messages returns a copy of the conversation log in display order
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]Message, len(s.messages))
	copy(res, s.messages)
	return res
}

// Blob returns the preserved video blob, kept for retry after a failure
func (s *Store) Blob() *capture.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blob
}

// Note returns the preserved note text
func (s *Store) Note() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note
}

// LastError returns the surfaced analysis error, nil when none
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// DismissError clears the surfaced analysis error
func (s *Store) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}
