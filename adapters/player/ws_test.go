package player

import (
	"context"
	"errors"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	err error

	gotDeviceID string
	gotPayload  []byte
}

func (f *fakeSink) SendToDevice(deviceID string, payload []byte) error {
	f.gotDeviceID = deviceID
	f.gotPayload = payload
	return f.err
}

func TestWSPlayer_Play(t *testing.T) {
	sink := &fakeSink{}
	p := NewWSPlayer(sink, "doll-001")

	err := p.Play(context.Background(), []byte("mp3-bytes"), true)

	require.NoError(t, err)
	assert.Equal(t, "doll-001", sink.gotDeviceID)

	var envelope SpeechEnvelope
	require.NoError(t, sonic.Unmarshal(sink.gotPayload, &envelope))
	assert.Equal(t, "speech", envelope.Type)
	assert.True(t, envelope.Autoplay)
	assert.Equal(t, []byte("mp3-bytes"), envelope.Audio)
	assert.False(t, envelope.Timestamp.IsZero())
}

func TestWSPlayer_AutoplayOff(t *testing.T) {
	sink := &fakeSink{}
	p := NewWSPlayer(sink, "doll-001")

	require.NoError(t, p.Play(context.Background(), []byte("mp3-bytes"), false))

	var envelope SpeechEnvelope
	require.NoError(t, sonic.Unmarshal(sink.gotPayload, &envelope))
	assert.False(t, envelope.Autoplay)
}

func TestWSPlayer_SinkError(t *testing.T) {
	errSend := errors.New("device not connected")
	p := NewWSPlayer(&fakeSink{err: errSend}, "doll-001")

	err := p.Play(context.Background(), []byte("mp3-bytes"), true)

	assert.Equal(t, errSend, err)
}

func TestNopPlayer(t *testing.T) {
	assert.NoError(t, NewNopPlayer().Play(context.Background(), []byte("x"), true))
}
