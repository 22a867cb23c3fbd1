package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client     *genai.Client
	model      string
	embedModel string
}

func NewGeminiClient(ctx context.Context, apiKey string, model string, embedModel string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}
	return &GeminiClient{
		client:     client,
		model:      model,
		embedModel: embedModel,
	}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return firstCandidateText(resp)
}

// firstCandidateText extracts the text of the first candidate. Safety-blocked
// responses come back with a nil Content or no Parts, so both are checked
// before indexing.
func firstCandidateText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) > 0 {
		content := resp.Candidates[0].Content
		if content != nil && len(content.Parts) > 0 {
			if txt, ok := content.Parts[0].(genai.Text); ok {
				return string(txt), nil
			}
		}
	}
	return "", fmt.Errorf("no response candidates or content")
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embedModel := c.client.EmbeddingModel(c.embedModel)
	res, err := embedModel.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res.Embedding != nil {
		return res.Embedding.Values, nil
	}
	return nil, fmt.Errorf("no embedding values")
}
