package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type VertexAIClient struct {
	config *ClientConfig
	client *genai.Client
}

// NewVertexAIClient creates a new client for the Google Gemini API.
func NewVertexAIClient(ctx context.Context, config *ClientConfig) (*VertexAIClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	// Defaults for Gemini API
	if config.SummaryModel == "" {
		config.SummaryModel = "gemini-2.0-flash"
	}
	if config.Temperature == 0 {
		config.Temperature = 0.2
	}
	if config.Location == "" && strings.TrimSpace(config.APIKey) == "" {
		config.Location = "us-central1"
	}

	cc := genai.ClientConfig{
		Backend: genai.BackendVertexAI,
	}
	if strings.TrimSpace(config.APIKey) != "" {
		cc.APIKey = config.APIKey
	}
	if strings.TrimSpace(config.ProjectID) != "" {
		cc.Project = config.ProjectID
	}
	if strings.TrimSpace(config.Location) != "" {
		cc.Location = config.Location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &VertexAIClient{
		config: config,
		client: client,
	}, nil
}

// Close the client when done
func (c *VertexAIClient) Close() error {
	return nil
}

// Complete implements the completion functionality using the Gemini API
func (c *VertexAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", errors.New("gemini client not initialized")
	}

	temp := float32(c.config.Temperature)
	cfg := genai.GenerateContentConfig{
		Temperature: &temp,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.SummaryModel, genai.Text(prompt), &cfg)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no completion returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
