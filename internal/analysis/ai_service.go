package analysis

import (
	"context"
	"fmt"

	"github.com/seanblong/repoinsight/internal/chain"
	"github.com/seanblong/repoinsight/internal/document"
	"github.com/seanblong/repoinsight/pkg/models"
)

// AIService prepares repository data as documents and runs the README and
// commit-scoring pipelines over them.
type AIService struct {
	Splitter document.Splitter
	Runner   *chain.Runner
	Chains   chain.Chains
}

// PreprocessContent turns files into split documents carrying file_path.
func (s *AIService) PreprocessContent(files []models.FileRecord) ([]document.Document, error) {
	return document.SplitDocuments(s.Splitter, document.FromContent(files))
}

// PreprocessCommits turns commits into split documents carrying id.
func (s *AIService) PreprocessCommits(commits []models.CommitRecord) ([]document.Document, error) {
	return document.SplitDocuments(s.Splitter, document.FromCommits(commits))
}

func (s *AIService) GenerateReadme(ctx context.Context, docs []document.Document) (string, error) {
	return s.Runner.Run(ctx, document.Texts(docs), s.Chains.Readme)
}

// ScoreCommits runs the commit pipeline and parses its judgement.
func (s *AIService) ScoreCommits(ctx context.Context, docs []document.Document) (string, models.CommitScore, error) {
	out, err := s.Runner.Run(ctx, document.Texts(docs), s.Chains.Commit)
	if err != nil {
		return "", models.CommitScore{}, err
	}
	explanation, score, err := chain.ParseScore(out)
	if err != nil {
		return "", models.CommitScore{}, fmt.Errorf("commit score: %w", err)
	}
	return explanation, score, nil
}
