// Package app assembles an analysis.Service from configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/repoinsight/internal/ai"
	"github.com/seanblong/repoinsight/internal/analysis"
	"github.com/seanblong/repoinsight/internal/chain"
	"github.com/seanblong/repoinsight/internal/config"
	"github.com/seanblong/repoinsight/internal/document"
	"github.com/seanblong/repoinsight/internal/pathfilter"
	"github.com/seanblong/repoinsight/internal/repo"
	"github.com/seanblong/repoinsight/internal/store"
)

// App is a wired analysis service and the store behind it.
type App struct {
	Service *analysis.Service
	Store   store.StatusStore

	closers []func()
}

// Close releases the store connection, if any.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
}

// ClientConfig maps the provider settings onto an ai.ClientConfig.
func ClientConfig(cfg config.Specification) (*ai.ClientConfig, error) {
	c := &ai.ClientConfig{
		APIKey:       cfg.APIKey,
		SummaryModel: cfg.SummaryModel,
		ProjectID:    cfg.ProjectID,
		Location:     cfg.Location,
		BaseURL:      cfg.BaseURL,
		Temperature:  cfg.Temperature,
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		c.Provider = ai.ProviderOpenAI
	case "vertexai", "google":
		c.Provider = ai.ProviderVertexAI
	case "stub":
		c.Provider = ai.ProviderStub
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	return c, nil
}

// Filter builds the path filter from the configured pattern files, falling
// back to the built-in lists.
func Filter(cfg config.Specification) (*pathfilter.Filter, error) {
	accept, err := pathfilter.LoadFile(cfg.Analysis.AcceptFile, pathfilter.DefaultAccept)
	if err != nil {
		return nil, fmt.Errorf("accept file: %w", err)
	}
	ignore, err := pathfilter.LoadFile(cfg.Analysis.IgnoreFile, pathfilter.DefaultIgnore)
	if err != nil {
		return nil, fmt.Errorf("ignore file: %w", err)
	}
	return pathfilter.New(accept, ignore)
}

// OpenStore returns the configured status store. The returned func closes it.
func OpenStore(ctx context.Context, cfg config.Specification) (store.StatusStore, func(), error) {
	switch cfg.Store {
	case "postgres":
		st, err := store.New(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		return st, st.Close, nil
	case "", "memory":
		st, err := store.NewMemoryStore(cfg.StoreSize)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// New wires the repository clients, LLM pipelines and store named by cfg.
func New(ctx context.Context, cfg config.Specification) (*App, error) {
	clientConfig, err := ClientConfig(cfg)
	if err != nil {
		return nil, err
	}
	llm, err := ai.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create AI client: %w", err)
	}

	splitter, err := document.NewSplitter(cfg.Analysis.Splitter, cfg.Analysis.ChunkSize, cfg.Analysis.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	filter, err := Filter(cfg)
	if err != nil {
		return nil, err
	}

	runner := chain.NewRunner(llm)
	if cfg.Analysis.Concurrency > 0 {
		runner.Concurrency = cfg.Analysis.Concurrency
	}

	st, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("provider", string(clientConfig.Provider)).
		Str("store", cfg.Store).
		Str("splitter", cfg.Analysis.Splitter).
		Int("token_max", cfg.Analysis.TokenMax).
		Msg("analysis service initialized")

	return &App{
		Service: &analysis.Service{
			Clients: analysis.NewClientFactory(repo.Options{
				Timeout:      cfg.HTTPTimeout,
				GithubAPIURL: cfg.GithubAPIURL,
				Filter:       filter,
			}),
			AI: &analysis.AIService{
				Splitter: splitter,
				Runner:   runner,
				Chains:   chain.NewChains(cfg.Analysis.TokenMax),
			},
			Store: st,
		},
		Store:   st,
		closers: []func(){closeStore},
	}, nil
}
