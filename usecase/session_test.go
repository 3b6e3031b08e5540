package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxloop/voxloop/domain"
)

func newTestSession(completer domain.Completer) *Session {
	return NewSession("You are a helpful assistant", completer, PipelineDeps{
		Recorder:    &stubRecorder{clip: []byte("wav")},
		Transcriber: &stubTranscriber{text: "Hello"},
		Synthesizer: &stubSynthesizer{audio: []byte("mp3")},
		Player:      &stubPlayer{},
	})
}

func TestSession_IDsAreUnique(t *testing.T) {
	s1 := newTestSession(&stubCompleter{reply: "hi"})
	s2 := newTestSession(&stubCompleter{reply: "hi"})

	assert.NotEmpty(t, s1.ID())
	assert.NotEqual(t, s1.ID(), s2.ID())
}

func TestSession_Chat(t *testing.T) {
	session := newTestSession(&stubCompleter{reply: "Hi there"})

	reply, err := session.Chat(context.Background(), "Hello")

	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)

	history := session.History()
	require.Len(t, history, 3)
	assert.Equal(t, domain.SystemRole, history[0].Role)
}

func TestSessionManager_GetOrCreate(t *testing.T) {
	created := 0
	manager := NewSessionManager(func(userID int, deviceID string) *Session {
		created++
		return newTestSession(&stubCompleter{reply: "hi"})
	})

	first := manager.Get(1, "device-a")
	again := manager.Get(1, "device-a")
	other := manager.Get(2, "device-b")

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, manager.Count())
}

func TestSessionManager_SessionsKeepTheirConversation(t *testing.T) {
	manager := NewSessionManager(func(userID int, deviceID string) *Session {
		return newTestSession(&stubCompleter{reply: "hi"})
	})

	session := manager.Get(1, "device-a")
	_, err := session.Chat(context.Background(), "Hello")
	require.NoError(t, err)

	// The same user gets the same conversation back on the next request.
	assert.Len(t, manager.Get(1, "device-a").History(), 3)
}
