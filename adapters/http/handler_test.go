package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxloop/voxloop/adapters/hasher"
	"github.com/voxloop/voxloop/adapters/message_broker"
	"github.com/voxloop/voxloop/config"
	"github.com/voxloop/voxloop/domain"
	"github.com/voxloop/voxloop/usecase"
)

type stubCompleter struct{ reply string }

func (s *stubCompleter) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	return s.reply, nil
}

type stubRecorder struct{ clip []byte }

func (s *stubRecorder) Record(ctx context.Context, duration time.Duration) ([]byte, error) {
	return s.clip, nil
}

type stubTranscriber struct{ text string }

func (s *stubTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return s.text, nil
}

type stubSynthesizer struct{ audio []byte }

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string, voice string) ([]byte, error) {
	return s.audio, nil
}

type stubPlayer struct{}

func (s *stubPlayer) Play(ctx context.Context, audio []byte, autoplay bool) error {
	return nil
}

func newTestHandler(t *testing.T) (*TurnHandler, *usecase.SessionManager) {
	t.Helper()

	h := hasher.New()
	auth := config.AuthConfig{
		JWTSecret:     "test-secret",
		APIKeyHash:    h.Hash([]byte("John")),
		APISecretHash: h.Hash([]byte("Doe")),
		TokenTTLHours: 1,
	}

	dir := t.TempDir()
	sessions := usecase.NewSessionManager(func(userID int, deviceID string) *usecase.Session {
		return usecase.NewSession("You are a helpful assistant", &stubCompleter{reply: "Hi there"}, usecase.PipelineDeps{
			Recorder:    &stubRecorder{clip: []byte("wav")},
			Transcriber: &stubTranscriber{text: "Hello"},
			Synthesizer: &stubSynthesizer{audio: []byte("mp3")},
			Player:      &stubPlayer{},
			Voice:       "alloy",
			ArtifactDir: dir,
		})
	})

	broker := message_broker.NewChannelMessageBroker()
	t.Cleanup(func() { broker.Close() })

	return NewTurnHandler(sessions, broker, h, auth, 3), sessions
}

func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func authenticate(c echo.Context) {
	c.Set("user_id", 1)
	c.Set("device_id", "local")
	c.Set("device_version", "1.0.0")
}

func TestGenerateJWT(t *testing.T) {
	handler, _ := newTestHandler(t)

	c, rec := newJSONContext(http.MethodPost, "/api/v1/auth/token", "")
	c.Request().Header.Set("X-API-Key", "John")
	c.Request().Header.Set("X-API-Secret", "Doe")

	require.NoError(t, handler.GenerateJWT(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Bearer", body["type"])

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(body["token"], claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, 1, claims.UserID)
	assert.Equal(t, "local", claims.DeviceID)
}

func TestGenerateJWT_InvalidCredentials(t *testing.T) {
	handler, _ := newTestHandler(t)

	c, _ := newJSONContext(http.MethodPost, "/api/v1/auth/token", "")
	c.Request().Header.Set("X-API-Key", "John")
	c.Request().Header.Set("X-API-Secret", "wrong")

	err := handler.GenerateJWT(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestJWTMiddleware(t *testing.T) {
	handler, _ := newTestHandler(t)

	// Issue a real token first.
	c, rec := newJSONContext(http.MethodPost, "/api/v1/auth/token", `{"device_id":"doll-001"}`)
	c.Request().Header.Set("X-API-Key", "John")
	c.Request().Header.Set("X-API-Secret", "Doe")
	require.NoError(t, handler.GenerateJWT(c))

	var body map[string]string
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))

	next := handler.JWTMiddleware(func(c echo.Context) error {
		assert.Equal(t, 1, c.Get("user_id"))
		assert.Equal(t, "doll-001", c.Get("device_id"))
		return c.NoContent(http.StatusOK)
	})

	c, rec = newJSONContext(http.MethodGet, "/api/v1/chat/history", "")
	c.Request().Header.Set("Authorization", "Bearer "+body["token"])
	require.NoError(t, next(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	handler, _ := newTestHandler(t)

	next := handler.JWTMiddleware(func(c echo.Context) error {
		t.Fatal("handler should not run")
		return nil
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic am9objpkb2U="},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newJSONContext(http.MethodGet, "/api/v1/chat/history", "")
			if tt.header != "" {
				c.Request().Header.Set("Authorization", tt.header)
			}

			err := next(c)

			var httpErr *echo.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		})
	}
}

func TestChat(t *testing.T) {
	handler, sessions := newTestHandler(t)

	c, rec := newJSONContext(http.MethodPost, "/api/v1/chat", `{"text":"Hello"}`)
	authenticate(c)

	require.NoError(t, handler.Chat(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hi there", resp.Reply)
	assert.NotEmpty(t, resp.SessionID)

	// The turn landed in the user's conversation.
	assert.Len(t, sessions.Get(1, "local").History(), 3)
}

func TestChat_EmptyText(t *testing.T) {
	handler, _ := newTestHandler(t)

	c, _ := newJSONContext(http.MethodPost, "/api/v1/chat", `{"text":""}`)
	authenticate(c)

	err := handler.Chat(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestVoiceTurn(t *testing.T) {
	handler, _ := newTestHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/audio/turn", strings.NewReader("clip-bytes"))
	req.Header.Set(echo.HeaderContentType, "audio/wav")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authenticate(c)

	require.NoError(t, handler.VoiceTurn(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TurnResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hello", resp.Transcript)
	assert.Equal(t, "Hi there", resp.Reply)
}

func TestVoiceTurn_WrongContentType(t *testing.T) {
	handler, _ := newTestHandler(t)

	c, _ := newJSONContext(http.MethodPost, "/api/v1/audio/turn", `{"text":"Hello"}`)
	authenticate(c)

	err := handler.VoiceTurn(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestSpeak(t *testing.T) {
	handler, sessions := newTestHandler(t)

	c, rec := newJSONContext(http.MethodPost, "/api/v1/speak", `{"text":"read this","autoplay":true}`)
	authenticate(c)

	require.NoError(t, handler.Speak(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SpeakResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Path, "output.mp3")

	// Speaking is side-channel only, never a conversation turn.
	assert.Len(t, sessions.Get(1, "local").History(), 1)
}

func TestHistory(t *testing.T) {
	handler, _ := newTestHandler(t)

	c, rec := newJSONContext(http.MethodPost, "/api/v1/chat", `{"text":"Hello"}`)
	authenticate(c)
	require.NoError(t, handler.Chat(c))

	c, rec = newJSONContext(http.MethodGet, "/api/v1/chat/history", "")
	authenticate(c)
	require.NoError(t, handler.History(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HistoryResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, domain.SystemRole, resp.Messages[0].Role)
	assert.Equal(t, "Hello", resp.Messages[1].Content)
	assert.Equal(t, "Hi there", resp.Messages[2].Content)
}

func TestHealthCheck(t *testing.T) {
	handler, _ := newTestHandler(t)

	c, rec := newJSONContext(http.MethodGet, "/api/v1/health", "")

	require.NoError(t, handler.HealthCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
