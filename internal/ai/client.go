package ai

import (
	"context"
	"errors"
	"strings"
)

// Client turns a prompt into a single completion
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey       string
	SummaryModel string
	ProjectID    string
	Provider     Provider
	Location     string
	// BaseURL overrides the provider endpoint (OpenAI-compatible servers).
	BaseURL     string
	Temperature float64
}

// NewClient creates a new AI client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	ctx := context.Background()
	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, config)
	case ProviderStub:
		return NewStubClient(), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubJudgement is what StubClient answers to scoring prompts.
const StubJudgement = `{"explanation": "stub", "score": {"readability": 3, "reusability": 3, "performance": 3, "testability": 3, "exception": 3, "scoreComment": "stub"}}`

// StubClient is a stub implementation of the Client interface for testing
// and dry runs. Answers depend only on the prompt.
type StubClient struct{}

// NewStubClient creates a new StubClient
func NewStubClient() *StubClient {
	return &StubClient{}
}

// Complete echoes the start of the prompt, or StubJudgement when the prompt
// asks for a JSON score.
func (s *StubClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.Contains(prompt, "scoreComment") {
		return StubJudgement, nil
	}

	prompt = strings.TrimSpace(prompt)
	const maxEcho = 200
	if r := []rune(prompt); len(r) > maxEcho {
		prompt = string(r[:maxEcho])
	}
	return "Summary: " + strings.ReplaceAll(prompt, "\n", " "), nil
}
