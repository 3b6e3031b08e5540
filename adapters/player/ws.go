// Package player contains the playback sinks for synthesized speech.
package player

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// DeviceSink delivers a payload to one connected device.
type DeviceSink interface {
	SendToDevice(deviceID string, payload []byte) error
}

// SpeechEnvelope is the frame pushed to a device for playback. Audio is
// base64-encoded MP3; autoplay false delivers without starting playback.
type SpeechEnvelope struct {
	Type      string    `json:"type"`
	Autoplay  bool      `json:"autoplay"`
	Audio     []byte    `json:"audio"`
	Timestamp time.Time `json:"timestamp"`
}

// WSPlayer pushes synthesized speech to a device over the WebSocket hub.
type WSPlayer struct {
	sink     DeviceSink
	deviceID string
}

func NewWSPlayer(sink DeviceSink, deviceID string) *WSPlayer {
	return &WSPlayer{sink: sink, deviceID: deviceID}
}

func (p *WSPlayer) Play(ctx context.Context, audio []byte, autoplay bool) error {
	payload, err := sonic.Marshal(SpeechEnvelope{
		Type:      "speech",
		Autoplay:  autoplay,
		Audio:     audio,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("encoding speech envelope: %w", err)
	}

	return p.sink.SendToDevice(p.deviceID, payload)
}
