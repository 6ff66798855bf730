package suggest

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for suggestions.
const DefaultModelName = "gemini-2.5-flash"

// ModelClient sends a text prompt to a generative model and returns its text reply.
type ModelClient interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// GeminiClient is the concrete ModelClient backed by the genai SDK. Credentials
// come from the environment (GOOGLE_API_KEY, or Vertex AI settings).
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a genai client on the v1 API.
func NewGeminiClient(ctx context.Context) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Generate: empty response from model")
	}
	return text, nil
}
