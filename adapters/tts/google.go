package tts

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

// GoogleTTS implements domain.Synthesizer against the Google Cloud
// Text-to-Speech API, producing MP3 audio. voice, when set, must be a full
// Google voice name such as "en-US-Neural2-C".
type GoogleTTS struct {
	client   *texttospeech.Client
	language string
}

func NewGoogleTTS(language string) *GoogleTTS {
	if language == "" {
		language = "en-US"
	}

	client, err := texttospeech.NewClient(context.Background())
	if err != nil {
		panic(fmt.Errorf("creating Google tts client: %w", err))
	}

	return &GoogleTTS{client: client, language: language}
}

func (g *GoogleTTS) Synthesize(ctx context.Context, text string, voice string) ([]byte, error) {
	req := texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{
				Text: text,
			},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.language,
			Name:         voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}

	resp, err := g.client.SynthesizeSpeech(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("synthesizing speech: %w", err)
	}

	return resp.GetAudioContent(), nil
}
