package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxloop/voxloop/domain"
)

// Session owns exactly one conversation and the pipeline that mutates it.
// Turns on a session are serialized by a mutex: the core itself defines no
// concurrent-turn behavior, so the session is the caller that does the
// serializing.
type Session struct {
	id        string
	convo     *domain.Conversation
	responder *Responder
	pipeline  *Pipeline

	mu sync.Mutex
}

// NewSession creates a session with a fresh conversation holding the single
// system message. deps supplies the collaborators; the conversation and
// responder slots are filled in here since the session owns both.
func NewSession(systemPrompt string, completer domain.Completer, deps PipelineDeps) *Session {
	convo := domain.NewConversation(systemPrompt)
	responder := NewResponder(completer)

	deps.Conversation = convo
	deps.Responder = responder

	return &Session{
		id:        uuid.NewString(),
		convo:     convo,
		responder: responder,
		pipeline:  NewPipeline(deps),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Chat runs a text-only turn: no capture, no transcription, just the
// response generator.
func (s *Session) Chat(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responder.Generate(ctx, s.convo, text)
}

// RunTurn runs one full voice turn, capturing from the session's recorder for
// exactly the given duration.
func (s *Session) RunTurn(ctx context.Context, duration time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.RunTurn(ctx, duration)
}

// TurnFromAudio runs a voice turn on a clip captured by the caller.
func (s *Session) TurnFromAudio(ctx context.Context, clip []byte) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.TurnFromAudio(ctx, clip)
}

// CaptureAndTranscribe records and transcribes without touching the
// conversation.
func (s *Session) CaptureAndTranscribe(ctx context.Context, duration time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.CaptureAndTranscribe(ctx, duration)
}

// SynthesizeAndPlay speaks arbitrary text without touching the conversation.
func (s *Session) SynthesizeAndPlay(ctx context.Context, text string, autoplay bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.SynthesizeAndPlay(ctx, text, autoplay)
}

// History returns a snapshot of the conversation log.
func (s *Session) History() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convo.Snapshot()
}

// SessionManager hands out one session per user, creating it on first use.
type SessionManager struct {
	factory func(userID int, deviceID string) *Session

	mu       sync.Mutex
	sessions map[int]*Session
}

func NewSessionManager(factory func(userID int, deviceID string) *Session) *SessionManager {
	return &SessionManager{
		factory:  factory,
		sessions: make(map[int]*Session),
	}
}

// Get returns the user's session, creating it if this is the user's first
// turn. The session keeps its conversation for the life of the process.
func (m *SessionManager) Get(userID int, deviceID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}

	s := m.factory(userID, deviceID)
	m.sessions[userID] = s
	return s
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
