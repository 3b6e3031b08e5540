// Package message_broker provides an in-process broker used to fan turn
// results out to WebSocket observers.
package message_broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain"
	"github.com/voxloop/voxloop/utils/log"
)

const topicBuffer = 100

// ChannelMessageBroker implements domain.MessageBroker on Go channels. One
// channel per topic:routingKey pair.
type ChannelMessageBroker struct {
	mu     sync.Mutex
	topics map[string]chan domain.BrokerMessage
	closed bool
}

func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		topics: make(map[string]chan domain.BrokerMessage),
	}
}

func makeKey(topic, routingKey string) string {
	return topic + ":" + routingKey
}

// channel returns the channel for the key, creating it on first use.
func (b *ChannelMessageBroker) channel(topic, routingKey string) (chan domain.BrokerMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("message broker is closed")
	}

	key := makeKey(topic, routingKey)
	ch, ok := b.topics[key]
	if !ok {
		ch = make(chan domain.BrokerMessage, topicBuffer)
		b.topics[key] = ch
	}
	return ch, nil
}

// Publish sends a message to a specific topic and routing key. Publishing
// never blocks: a full topic is an error.
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	ch, err := b.channel(topic, routingKey)
	if err != nil {
		return err
	}

	msg := domain.BrokerMessage{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	select {
	case ch <- msg:
		log.WithCtx(ctx).Debug("message published",
			zap.String("topic", topic),
			zap.String("routing_key", routingKey),
			zap.Int("payload_size", len(message)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("topic channel is full: %s:%s", topic, routingKey)
	}
}

// Subscribe returns the message channel for a topic and routing key.
func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.BrokerMessage, error) {
	ch, err := b.channel(topic, routingKey)
	if err != nil {
		return nil, err
	}

	log.WithCtx(ctx).Info("subscribed to topic",
		zap.String("topic", topic),
		zap.String("routing_key", routingKey))
	return ch, nil
}

// Close closes the broker and all topic channels.
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, ch := range b.topics {
		close(ch)
	}
	b.topics = make(map[string]chan domain.BrokerMessage)

	log.With().Info("message broker closed")
	return nil
}

// TopicCount returns the number of active topics.
func (b *ChannelMessageBroker) TopicCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}
