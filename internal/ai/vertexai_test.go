package ai

import (
	"context"
	"strings"
	"testing"
)

func TestNewVertexAIClient_NilConfig(t *testing.T) {
	_, err := NewVertexAIClient(context.Background(), nil)
	if err == nil || err.Error() != "config cannot be nil" {
		t.Errorf("Expected nil config error, got %v", err)
	}
}

func TestNewVertexAIClient_Defaults(t *testing.T) {
	tests := []struct {
		name             string
		config           *ClientConfig
		expectedModel    string
		expectedLocation string
	}{
		{
			name:          "api key keeps location empty",
			config:        &ClientConfig{APIKey: "test-api-key"},
			expectedModel: "gemini-2.0-flash",
		},
		{
			name:          "custom model",
			config:        &ClientConfig{APIKey: "test-api-key", SummaryModel: "gemini-2.5-pro"},
			expectedModel: "gemini-2.5-pro",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewVertexAIClient(context.Background(), tt.config)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c.config.SummaryModel != tt.expectedModel {
				t.Errorf("Expected model %s, got %s", tt.expectedModel, c.config.SummaryModel)
			}
			if c.config.Location != tt.expectedLocation {
				t.Errorf("Expected location %q, got %q", tt.expectedLocation, c.config.Location)
			}
			if c.config.Temperature != 0.2 {
				t.Errorf("Expected default temperature 0.2, got %v", c.config.Temperature)
			}
		})
	}
}

func TestVertexAIClient_CloseWithNilClient(t *testing.T) {
	c := &VertexAIClient{config: &ClientConfig{}}
	if err := c.Close(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestVertexAIClient_CompleteWithNilClient(t *testing.T) {
	c := &VertexAIClient{config: &ClientConfig{SummaryModel: "gemini-2.0-flash"}}
	_, err := c.Complete(context.Background(), "Summarize this: x")
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("Expected not initialized error, got %v", err)
	}
}
