package player

import "context"

// NopPlayer discards synthesized audio. Used when no playback device is
// attached; the speech artifact on disk is still written by the pipeline.
type NopPlayer struct{}

func NewNopPlayer() *NopPlayer { return &NopPlayer{} }

func (*NopPlayer) Play(ctx context.Context, audio []byte, autoplay bool) error {
	return nil
}
