package domain

import (
	"context"
	"time"
)

// Recorder captures a fixed-duration audio clip from whatever microphone-like
// source is attached (a device streaming over WebSocket, a file, a stub).
// Record blocks for the full requested wall-clock duration and returns the
// clip in a WAV container.
type Recorder interface {
	Record(ctx context.Context, duration time.Duration) ([]byte, error)
}

// Transcriber converts recorded audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer converts text into spoken audio. voice selects the provider
// voice; an empty string means the provider default.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice string) ([]byte, error)
}

// Player is a fire-and-forget playback sink for synthesized audio. autoplay
// false delivers the audio without starting playback.
type Player interface {
	Play(ctx context.Context, audio []byte, autoplay bool) error
}
