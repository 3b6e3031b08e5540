package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/voxloop/voxloop/utils/audio"
)

// GoogleSpeech implements domain.Transcriber against the Google Cloud
// Speech-to-Text API.
type GoogleSpeech struct {
	client   *speech.Client
	language string
}

func NewGoogleSpeech(language string) *GoogleSpeech {
	if language == "" {
		language = "en-US"
	}

	client, err := speech.NewClient(context.Background())
	if err != nil {
		panic(fmt.Errorf("creating Google speech client: %w", err))
	}

	return &GoogleSpeech{client: client, language: language}
}

func (g *GoogleSpeech) Transcribe(ctx context.Context, clip []byte) (string, error) {
	pcm, sampleRate, err := audio.DecodeWAV(clip)
	if err != nil {
		return "", fmt.Errorf("decoding WAV clip: %w", err)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(sampleRate),
			LanguageCode:    g.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognizing speech: %w", err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if len(result.GetAlternatives()) > 0 {
			parts = append(parts, result.GetAlternatives()[0].GetTranscript())
		}
	}

	return strings.Join(parts, " "), nil
}
