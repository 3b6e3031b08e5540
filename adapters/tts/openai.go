// Package tts contains the speech synthesis collaborators.
package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// OpenAISpeech implements domain.Synthesizer against the OpenAI audio speech
// API, producing MP3 audio.
type OpenAISpeech struct {
	client *openai.Client
}

func NewOpenAISpeech(apiKey string) *OpenAISpeech {
	return &OpenAISpeech{client: openai.NewClient(apiKey)}
}

func (o *OpenAISpeech) Synthesize(ctx context.Context, text string, voice string) ([]byte, error) {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: openai.SpeechVoice(voice),
	})
	if err != nil {
		return nil, fmt.Errorf("synthesizing speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("reading synthesized audio: %w", err)
	}

	return audio, nil
}
