package ai

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIClient struct {
	config *ClientConfig
	client openai.Client
}

func NewOpenAIClient(config *ClientConfig, opts ...option.RequestOption) *OpenAIClient {
	if config.SummaryModel == "" {
		config.SummaryModel = "gpt-4o-mini"
	}
	if config.Temperature == 0 {
		config.Temperature = 0.2
	}

	// Create HTTP client with optional TLS skip verification
	transport := &http.Transport{}

	// Check for environment variable to skip TLS verification (for corporate proxies, etc.)
	if skipTLS, _ := strconv.ParseBool(os.Getenv("REPOINSIGHT_SKIP_TLS_VERIFY")); skipTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	httpClient := &http.Client{
		Timeout:   120 * time.Second,
		Transport: transport,
	}

	base := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(2),
	}
	if config.BaseURL != "" {
		base = append(base, option.WithBaseURL(config.BaseURL))
	}
	if strings.HasPrefix(config.APIKey, "sk-proj-") && config.ProjectID != "" {
		base = append(base, option.WithHeader("OpenAI-Project", config.ProjectID))
	}

	return &OpenAIClient{
		config: config,
		client: openai.NewClient(append(base, opts...)...),
	}
}

// Complete sends prompt as a single user message to the chat completions API.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.config.APIKey == "" {
		return "", errors.New("PROVIDER_API_KEY unset")
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.config.SummaryModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.config.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
