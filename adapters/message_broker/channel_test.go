package message_broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelMessageBroker_PublishSubscribe(t *testing.T) {
	broker := NewChannelMessageBroker()
	defer broker.Close()

	ctx := context.Background()

	messages, err := broker.Subscribe(ctx, "turns.completed", "")
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, "turns.completed", "", []byte("payload")))

	select {
	case msg := <-messages:
		assert.Equal(t, "turns.completed", msg.Topic)
		assert.Equal(t, []byte("payload"), msg.Payload)
		assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Second)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestChannelMessageBroker_RoutingKeysAreSeparate(t *testing.T) {
	broker := NewChannelMessageBroker()
	defer broker.Close()

	ctx := context.Background()

	a, err := broker.Subscribe(ctx, "topic", "a")
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, "topic", "b", []byte("for b")))

	select {
	case <-a:
		t.Fatal("message for routing key b delivered to a")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, 2, broker.TopicCount())
}

func TestChannelMessageBroker_Closed(t *testing.T) {
	broker := NewChannelMessageBroker()
	require.NoError(t, broker.Close())

	err := broker.Publish(context.Background(), "topic", "", []byte("x"))
	assert.Error(t, err)

	_, err = broker.Subscribe(context.Background(), "topic", "")
	assert.Error(t, err)

	// Closing twice is harmless.
	assert.NoError(t, broker.Close())
}
