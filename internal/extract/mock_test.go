package extract

import (
	"context"
	"errors"
)

// MockLLMClient returns a canned response for model extraction tests.
type MockLLMClient struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response == "" {
		return "", errors.New("no mock response configured")
	}
	return m.Response, nil
}
