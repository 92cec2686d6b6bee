package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/repoinsight/internal/ai"
	"golang.org/x/sync/errgroup"
)

// ErrCollapseStalled is returned when a collapse round fails to shrink the
// summaries, or the round limit is reached, while still over budget.
var ErrCollapseStalled = errors.New("collapse made no progress under token budget")

// ErrNoDocuments is returned by Run for an empty input.
var ErrNoDocuments = errors.New("no documents to summarize")

const (
	DefaultConcurrency = 4
	maxCollapseRounds  = 10
)

// TokenCounter estimates the token count of a text.
type TokenCounter func(text string) int

// CountTokens approximates tokens as whitespace-separated words.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// Stats counts completion calls per stage of one run.
type Stats struct {
	MapCalls      int
	CollapseCalls int
	CombineCalls  int
}

// Runner executes pipelines against an LLM.
type Runner struct {
	LLM         ai.Client
	Tokens      TokenCounter
	Concurrency int
}

// NewRunner returns a Runner using CountTokens and DefaultConcurrency.
func NewRunner(llm ai.Client) *Runner {
	return &Runner{LLM: llm, Tokens: CountTokens, Concurrency: DefaultConcurrency}
}

// Run summarizes docs with p and returns the combine output.
func (r *Runner) Run(ctx context.Context, docs []string, p *Pipeline) (string, error) {
	out, _, err := r.RunWithStats(ctx, docs, p)
	return out, err
}

// RunWithStats is Run that also reports how many calls each stage made.
func (r *Runner) RunWithStats(ctx context.Context, docs []string, p *Pipeline) (string, Stats, error) {
	var stats Stats
	if len(docs) == 0 {
		return "", stats, ErrNoDocuments
	}
	logger := log.With().Str("pipeline", p.Name).Logger()

	summaries, err := r.mapStage(ctx, docs, p)
	stats.MapCalls = len(docs)
	if err != nil {
		return "", stats, fmt.Errorf("%s map: %w", p.Name, err)
	}
	logger.Debug().Int("documents", len(docs)).Msg("map stage done")

	summaries, stats.CollapseCalls, err = r.collapseStage(ctx, summaries, p)
	if err != nil {
		return "", stats, fmt.Errorf("%s collapse: %w", p.Name, err)
	}
	if stats.CollapseCalls > 0 {
		logger.Debug().Int("collapse_calls", stats.CollapseCalls).Int("summaries", len(summaries)).Msg("collapse stage done")
	}

	prompt, err := p.CombinePrompt(summaries)
	if err != nil {
		return "", stats, err
	}
	stats.CombineCalls = 1
	out, err := r.LLM.Complete(ctx, prompt)
	if err != nil {
		return "", stats, fmt.Errorf("%s combine: %w", p.Name, err)
	}
	return out, stats, nil
}

func (r *Runner) limit() int {
	if r.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return r.Concurrency
}

func (r *Runner) countTokens(text string) int {
	if r.Tokens == nil {
		return CountTokens(text)
	}
	return r.Tokens(text)
}

// complete runs one prompt per input with bounded parallelism and returns
// the outputs in input order.
func (r *Runner) complete(ctx context.Context, prompts []string) ([]string, error) {
	out := make([]string, len(prompts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit())
	for i, prompt := range prompts {
		g.Go(func() error {
			s, err := r.LLM.Complete(ctx, prompt)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) mapStage(ctx context.Context, docs []string, p *Pipeline) ([]string, error) {
	prompts := make([]string, len(docs))
	for i, d := range docs {
		prompt, err := p.MapPrompt(d)
		if err != nil {
			return nil, err
		}
		prompts[i] = prompt
	}
	return r.complete(ctx, prompts)
}

func (r *Runner) totalTokens(docs []string) int {
	n := 0
	for _, d := range docs {
		n += r.countTokens(d)
	}
	return n
}

// batches groups docs greedily, in order, so that each batch stays within
// tokenMax. A document over tokenMax on its own forms a single batch.
func (r *Runner) batches(docs []string, tokenMax int) [][]string {
	var (
		out     [][]string
		current []string
		size    int
	)
	for _, d := range docs {
		n := r.countTokens(d)
		if len(current) > 0 && size+n > tokenMax {
			out = append(out, current)
			current, size = nil, 0
		}
		current = append(current, d)
		size += n
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

func (r *Runner) collapseStage(ctx context.Context, summaries []string, p *Pipeline) ([]string, int, error) {
	calls := 0
	for round := 0; r.totalTokens(summaries) > p.TokenMax; round++ {
		if round == maxCollapseRounds {
			return nil, calls, ErrCollapseStalled
		}

		groups := r.batches(summaries, p.TokenMax)
		prompts := make([]string, len(groups))
		for i, g := range groups {
			prompt, err := p.CollapsePrompt(g)
			if err != nil {
				return nil, calls, err
			}
			prompts[i] = prompt
		}

		next, err := r.complete(ctx, prompts)
		calls += len(prompts)
		if err != nil {
			return nil, calls, err
		}

		if len(next) >= len(summaries) && r.totalTokens(next) >= r.totalTokens(summaries) {
			return nil, calls, ErrCollapseStalled
		}
		summaries = next
	}
	return summaries, calls, nil
}
