package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/seanblong/repoinsight/internal/ai"
	"github.com/seanblong/repoinsight/internal/config"
	"github.com/seanblong/repoinsight/internal/store"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

func testSpec() config.Specification {
	return config.Specification{
		Provider:  "stub",
		Store:     "memory",
		StoreSize: 4,
		Analysis: config.AnalysisSpecification{
			Splitter:     "recursive",
			ChunkSize:    200,
			ChunkOverlap: 20,
			TokenMax:     100,
			Concurrency:  2,
		},
	}
}

func TestNew_StubMemory(t *testing.T) {
	a, err := New(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	if _, ok := a.Store.(*store.MemoryStore); !ok {
		t.Errorf("Expected *store.MemoryStore, got %T", a.Store)
	}
	if a.Service.AI.Runner.Concurrency != 2 {
		t.Errorf("Expected concurrency 2, got %d", a.Service.AI.Runner.Concurrency)
	}
	if a.Service.AI.Chains.Readme.TokenMax != 100 || a.Service.AI.Chains.Commit.TokenMax != 100 {
		t.Errorf("Expected token max 100 on both chains")
	}
	if _, ok := a.Service.AI.Runner.LLM.(*ai.StubClient); !ok {
		t.Errorf("Expected stub LLM, got %T", a.Service.AI.Runner.LLM)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Specification)
		wantErr string
	}{
		{"unknown provider", func(c *config.Specification) { c.Provider = "nope" }, "unsupported provider"},
		{"unknown splitter", func(c *config.Specification) { c.Analysis.Splitter = "words" }, "unknown splitter"},
		{"unknown store", func(c *config.Specification) { c.Store = "redis" }, "unknown store"},
		{"missing accept file", func(c *config.Specification) { c.Analysis.AcceptFile = "/no/such/file" }, "accept file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testSpec()
			tt.mutate(&cfg)
			_, err := New(context.Background(), cfg)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClientConfig(t *testing.T) {
	tests := []struct {
		provider string
		want     ai.Provider
	}{
		{"openai", ai.ProviderOpenAI},
		{"OpenAI", ai.ProviderOpenAI},
		{"vertexai", ai.ProviderVertexAI},
		{"google", ai.ProviderVertexAI},
		{"stub", ai.ProviderStub},
	}
	for _, tt := range tests {
		cfg := testSpec()
		cfg.Provider = tt.provider
		cfg.BaseURL = "http://localhost:1234/v1"
		cc, err := ClientConfig(cfg)
		if err != nil {
			t.Fatalf("ClientConfig(%q) failed: %v", tt.provider, err)
		}
		if cc.Provider != tt.want {
			t.Errorf("ClientConfig(%q): expected %s, got %s", tt.provider, tt.want, cc.Provider)
		}
		if cc.BaseURL != cfg.BaseURL {
			t.Errorf("Expected BaseURL carried over, got %q", cc.BaseURL)
		}
	}
}

func TestFilter_FromFiles(t *testing.T) {
	dir := t.TempDir()
	accept := filepath.Join(dir, "accept")
	ignore := filepath.Join(dir, "ignore")
	if err := os.WriteFile(accept, []byte("# sources\n*.go\n"), 0644); err != nil {
		t.Fatalf("write accept: %v", err)
	}
	if err := os.WriteFile(ignore, []byte("gen/\n"), 0644); err != nil {
		t.Fatalf("write ignore: %v", err)
	}

	cfg := testSpec()
	cfg.Analysis.AcceptFile = accept
	cfg.Analysis.IgnoreFile = ignore
	f, err := Filter(cfg)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}

	tests := map[string]bool{
		"main.go":     true,
		"gen/zz.go":   false,
		"README.md":   false,
		"pkg/util.go": true,
	}
	for p, want := range tests {
		if got := f.Accepted(p); got != want {
			t.Errorf("Accepted(%q): expected %v, got %v", p, want, got)
		}
	}
}

func TestFilter_Defaults(t *testing.T) {
	f, err := Filter(testSpec())
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if !f.Accepted("README.md") || f.Accepted("node_modules/x.js") {
		t.Error("Expected default accept and ignore lists")
	}
}
