// Package stt contains the transcription collaborators.
package stt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIWhisper implements domain.Transcriber against the OpenAI audio
// transcriptions API.
type OpenAIWhisper struct {
	client *openai.Client
}

func NewOpenAIWhisper(apiKey string) *OpenAIWhisper {
	return &OpenAIWhisper{client: openai.NewClient(apiKey)}
}

func (w *OpenAIWhisper) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model: openai.Whisper1,
		// FilePath only names the upload when Reader is set; the API infers
		// the container from the extension.
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}

	return resp.Text, nil
}
