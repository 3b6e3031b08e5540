package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/voxloop/voxloop/domain"
)

// GeminiClient implements domain.Completer against the Gemini API. The
// conversation's system message maps onto the model's system instruction;
// the rest of the log is replayed as alternating user/model contents.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(model string) *GeminiClient {
	if model == "" {
		model = "gemini-2.0-flash-001"
	}

	client, err := genai.NewClient(
		context.Background(),
		&genai.ClientConfig{
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		},
	)
	if err != nil {
		panic(fmt.Errorf("creating genai client: %w", err))
	}

	return &GeminiClient{client: client, model: model}
}

func (g *GeminiClient) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	var config *genai.GenerateContentConfig
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case domain.SystemRole:
			config = &genai.GenerateContentConfig{
				SystemInstruction: &genai.Content{
					Parts: []*genai.Part{{Text: msg.Content}},
				},
			}
		case domain.UserRole:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return resp.Text(), nil
}
