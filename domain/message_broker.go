package domain

import (
	"context"
	"time"
)

// MessageBroker defines the interface for in-process message broker operations
type MessageBroker interface {
	// Publish sends a message to a specific topic with a routing key
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe listens for messages on a specific topic and routing key
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan BrokerMessage, error)

	// Close closes the message broker connection
	Close() error
}

// BrokerMessage represents a message received from the broker
type BrokerMessage struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

// TurnResult is the payload published after every completed (or failed)
// conversation turn so that WebSocket observers can follow the session.
type TurnResult struct {
	SessionID  string    `json:"session_id"`
	UserID     int       `json:"user_id"`
	DeviceID   string    `json:"device_id,omitempty"`
	Transcript string    `json:"transcript"`
	Reply      string    `json:"reply,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}
