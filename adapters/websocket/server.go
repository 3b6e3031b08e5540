package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain"
	"github.com/voxloop/voxloop/metrics"
	"github.com/voxloop/voxloop/usecase"
	"github.com/voxloop/voxloop/utils/log"
)

const (
	// TurnResultsTopic carries one TurnResult per completed or failed turn.
	TurnResultsTopic = "turns.completed"
)

// replyEnvelope is the text frame sent back to a device after a chat turn.
type replyEnvelope struct {
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Server struct {
	upgrader websocket.Upgrader
	sessions *usecase.SessionManager
	broker   domain.MessageBroker
	hub      *Hub
}

func NewServer(sessions *usecase.SessionManager, broker domain.MessageBroker, m *metrics.Metrics) *Server {
	server := &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		sessions: sessions,
		broker:   broker,
		hub:      NewHub(m),
	}

	go server.startTurnListener()

	return server
}

func (s *Server) RunWebsocketHub() {
	s.hub.Run()
}

func (s *Server) GetHub() *Hub {
	return s.hub
}

// HandleText runs a chat turn for a text frame sent by a device: generate a
// reply, speak it back over the device's playback channel, and publish the
// turn result.
func (s *Server) HandleText(ctx context.Context, userID int, deviceID string, text string) {
	session := s.sessions.Get(userID, deviceID)

	reply, err := session.Chat(ctx, text)
	if err != nil {
		log.WithCtx(ctx).Error("chat turn failed", zap.Error(err))
		s.sendReply(ctx, deviceID, replyEnvelope{Type: "error", Error: err.Error(), Timestamp: time.Now()})
		s.publishTurn(ctx, session.ID(), userID, deviceID, text, "", err)
		return
	}

	s.sendReply(ctx, deviceID, replyEnvelope{Type: "reply", Text: reply, Timestamp: time.Now()})

	// Speak the reply; this goes through the reduced entry point and leaves
	// the conversation untouched.
	if _, err := session.SynthesizeAndPlay(ctx, reply, true); err != nil {
		log.WithCtx(ctx).Warn("failed to speak reply", zap.Error(err))
	}

	s.publishTurn(ctx, session.ID(), userID, deviceID, text, reply, nil)
}

func (s *Server) sendReply(ctx context.Context, deviceID string, envelope replyEnvelope) {
	payload, err := sonic.Marshal(envelope)
	if err != nil {
		log.WithCtx(ctx).Error("failed to encode reply envelope", zap.Error(err))
		return
	}
	if err := s.hub.SendToDevice(deviceID, payload); err != nil {
		log.WithCtx(ctx).Warn("failed to deliver reply", zap.Error(err))
	}
}

func (s *Server) publishTurn(ctx context.Context, sessionID string, userID int, deviceID, transcript, reply string, turnErr error) {
	result := domain.TurnResult{
		SessionID:  sessionID,
		UserID:     userID,
		DeviceID:   deviceID,
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

	if err := s.broker.Publish(ctx, TurnResultsTopic, "", payload); err != nil {
		log.WithCtx(ctx).Warn("failed to publish turn result", zap.Error(err))
	}
}

// startTurnListener relays published turn results to every connected
// WebSocket client.
func (s *Server) startTurnListener() {
	ctx := context.Background()

	messageChan, err := s.broker.Subscribe(ctx, TurnResultsTopic, "")
	if err != nil {
		log.WithCtx(ctx).Error("failed to subscribe to turn results", zap.Error(err))
		return
	}

	log.WithCtx(ctx).Info("WebSocket server listening for turn results")

	for msg := range messageChan {
		var result domain.TurnResult
		if err := sonic.Unmarshal(msg.Payload, &result); err != nil {
			log.WithCtx(ctx).Error("failed to decode turn result", zap.Error(err))
			continue
		}

		payload, err := sonic.Marshal(map[string]interface{}{
			"type":       "turn",
			"session_id": result.SessionID,
			"transcript": result.Transcript,
			"reply":      result.Reply,
			"success":    result.Success,
			"timestamp":  result.Timestamp,
		})
		if err != nil {
			log.WithCtx(ctx).Error("failed to encode turn broadcast", zap.Error(err))
			continue
		}

		s.hub.Broadcast(payload)
	}
}
