package http

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voxloop/voxloop/adapters/websocket"
	"github.com/voxloop/voxloop/config"
	"github.com/voxloop/voxloop/domain"
	"github.com/voxloop/voxloop/usecase"
	"github.com/voxloop/voxloop/utils/log"
)

const (
	// MaxConcurrent bounds in-flight turn requests per handler.
	MaxConcurrent = 10

	// MaxAudioBytes bounds a single uploaded clip.
	MaxAudioBytes = 10 * 1024 * 1024

	// defaultUserID keys the session for single-tenant deployments; every
	// authenticated caller shares one conversation per process.
	defaultUserID = 1

	defaultDeviceID = "local"
)

// TurnHandler exposes the conversation pipeline over HTTP.
type TurnHandler struct {
	sessions *usecase.SessionManager
	broker   domain.MessageBroker
	hasher   domain.Hasher
	auth     config.AuthConfig

	defaultDuration time.Duration
}

type TokenRequest struct {
	DeviceID      string `json:"device_id"`
	DeviceVersion string `json:"device_version"`
}

type ChatRequest struct {
	Text  string `json:"text"`
	Speak bool   `json:"speak"`
}

type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

type TurnRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

type TurnResponse struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
	Reply      string `json:"reply,omitempty"`
}

type SpeakRequest struct {
	Text     string `json:"text"`
	Autoplay bool   `json:"autoplay"`
}

type SpeakResponse struct {
	Path string `json:"path"`
}

type HistoryResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []domain.Message `json:"messages"`
}

type JWTClaims struct {
	UserID        int    `json:"user_id"`
	DeviceID      string `json:"device_id"`
	DeviceVersion string `json:"device_version"`
	jwt.RegisteredClaims
}

func NewTurnHandler(
	sessions *usecase.SessionManager,
	broker domain.MessageBroker,
	hasher domain.Hasher,
	auth config.AuthConfig,
	recordSeconds int,
) *TurnHandler {
	return &TurnHandler{
		sessions:        sessions,
		broker:          broker,
		hasher:          hasher,
		auth:            auth,
		defaultDuration: time.Duration(recordSeconds) * time.Second,
	}
}

// GenerateJWT creates a JWT token for authenticated clients. Credentials are
// checked against the configured digests, never plaintext.
func (h *TurnHandler) GenerateJWT(c echo.Context) error {
	apiKey := c.Request().Header.Get("X-API-Key")
	apiSecret := c.Request().Header.Get("X-API-Secret")

	if h.hasher.Hash([]byte(apiKey)) != h.auth.APIKeyHash ||
		h.hasher.Hash([]byte(apiSecret)) != h.auth.APISecretHash {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	req := TokenRequest{DeviceID: defaultDeviceID}
	// The body is optional; a bare POST gets the defaults.
	c.Bind(&req)
	if req.DeviceID == "" {
		req.DeviceID = defaultDeviceID
	}

	now := time.Now()
	claims := &JWTClaims{
		UserID:        defaultUserID,
		DeviceID:      req.DeviceID,
		DeviceVersion: req.DeviceVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(h.auth.TokenTTLHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "voxloop",
			Subject:   "voice-turns",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(h.auth.JWTSecret))
	if err != nil {
		log.With().Error("failed to sign JWT", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token": tokenString,
		"type":  "Bearer",
	})
}

// JWTMiddleware authenticates requests and stores the claims on the context.
func (h *TurnHandler) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(h.auth.JWTSecret), nil
		})
		if err != nil {
			log.With().Debug("JWT validation error", zap.Error(err))
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}

		if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
			c.Set("user_id", claims.UserID)
			c.Set("device_id", claims.DeviceID)
			c.Set("device_version", claims.DeviceVersion)
			return next(c)
		}

		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token claims")
	}
}

// RateLimitMiddleware bounds concurrent turn requests with a semaphore.
func (h *TurnHandler) RateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	semaphore := make(chan struct{}, MaxConcurrent)
	return func(c echo.Context) error {
		select {
		case semaphore <- struct{}{}:
			defer func() { <-semaphore }()
			return next(c)
		default:
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many concurrent requests")
		}
	}
}

// Chat runs a text-only turn.
func (h *TurnHandler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	session := h.session(c)
	ctx := c.Request().Context()

	reply, err := session.Chat(ctx, req.Text)
	h.publishTurn(c, session.ID(), req.Text, reply, err)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	if req.Speak {
		if _, err := session.SynthesizeAndPlay(ctx, reply, true); err != nil {
			log.WithCtx(ctx).Warn("failed to speak reply", zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, ChatResponse{SessionID: session.ID(), Reply: reply})
}

// VoiceTurn runs a turn on an uploaded audio clip: the recording stage is the
// caller's, everything downstream is the pipeline's.
func (h *TurnHandler) VoiceTurn(c echo.Context) error {
	contentType := c.Request().Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") && !strings.HasPrefix(contentType, "application/octet-stream") {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid content type. Expected audio/* or application/octet-stream")
	}

	clip, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxAudioBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read audio body")
	}
	if len(clip) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Empty audio body")
	}

	session := h.session(c)
	ctx := c.Request().Context()

	transcript, reply, err := session.TurnFromAudio(ctx, clip)
	h.publishTurn(c, session.ID(), transcript, reply, err)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, TurnResponse{
		SessionID:  session.ID(),
		Transcript: transcript,
		Reply:      reply,
	})
}

// RunTurn runs a full voice turn, capturing from the caller's connected
// device for the requested duration.
func (h *TurnHandler) RunTurn(c echo.Context) error {
	req := TurnRequest{}
	c.Bind(&req)

	duration := h.defaultDuration
	if req.DurationSeconds > 0 {
		duration = time.Duration(req.DurationSeconds) * time.Second
	}

	session := h.session(c)
	ctx := c.Request().Context()

	transcript, err := session.RunTurn(ctx, duration)
	h.publishTurn(c, session.ID(), transcript, "", err)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, TurnResponse{SessionID: session.ID(), Transcript: transcript})
}

// Transcribe captures and transcribes without touching the conversation.
func (h *TurnHandler) Transcribe(c echo.Context) error {
	req := TurnRequest{}
	c.Bind(&req)

	duration := h.defaultDuration
	if req.DurationSeconds > 0 {
		duration = time.Duration(req.DurationSeconds) * time.Second
	}

	session := h.session(c)

	text, err := session.CaptureAndTranscribe(c.Request().Context(), duration)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

// Speak synthesizes and plays arbitrary text without touching the
// conversation.
func (h *TurnHandler) Speak(c echo.Context) error {
	var req SpeakRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	session := h.session(c)

	path, err := session.SynthesizeAndPlay(c.Request().Context(), req.Text, req.Autoplay)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, SpeakResponse{Path: path})
}

// History returns the full conversation snapshot.
func (h *TurnHandler) History(c echo.Context) error {
	session := h.session(c)
	return c.JSON(http.StatusOK, HistoryResponse{
		SessionID: session.ID(),
		Messages:  session.History(),
	})
}

// HealthCheck reports service liveness.
func (h *TurnHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "voxloop",
	})
}

func (h *TurnHandler) session(c echo.Context) *usecase.Session {
	userID := c.Get("user_id").(int)
	deviceID := c.Get("device_id").(string)
	return h.sessions.Get(userID, deviceID)
}

func (h *TurnHandler) publishTurn(c echo.Context, sessionID, transcript, reply string, turnErr error) {
	ctx := c.Request().Context()

	result := domain.TurnResult{
		SessionID:  sessionID,
		UserID:     c.Get("user_id").(int),
		DeviceID:   c.Get("device_id").(string),
		Transcript: transcript,
		Reply:      reply,
		Timestamp:  time.Now(),
		Success:    turnErr == nil,
	}
	if turnErr != nil {
		result.Error = turnErr.Error()
	}

	payload, err := sonic.Marshal(result)
	if err != nil {
		log.WithCtx(ctx).Error("failed to encode turn result", zap.Error(err))
		return
	}

	if err := h.broker.Publish(ctx, websocket.TurnResultsTopic, "", payload); err != nil {
		log.WithCtx(ctx).Warn("failed to publish turn result", zap.Error(err))
	}
}
