// Package analysis drives one repository analysis from loading through
// README generation and commit scoring, recording progress as it goes.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/repoinsight/internal/repo"
	"github.com/seanblong/repoinsight/internal/store"
	"github.com/seanblong/repoinsight/pkg/models"
)

// Progress percentages reported at each stage.
const (
	percentPending    = 0
	percentLoading    = 10
	percentPreprocess = 30
	percentReadme     = 50
	percentScoring    = 80
	percentDone       = 100
)

// ClientFactory returns the repository client for a request.
type ClientFactory func(req models.AnalysisRequest) (repo.Client, error)

// NewClientFactory builds clients with repo.NewClient and opts.
func NewClientFactory(opts repo.Options) ClientFactory {
	return func(req models.AnalysisRequest) (repo.Client, error) {
		return repo.NewClient(req, opts)
	}
}

// Service runs analyses.
type Service struct {
	Clients ClientFactory
	AI      *AIService
	Store   store.StatusStore
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) record(ctx context.Context, logger zerolog.Logger, id string, status models.AnalysisStatus, percent int, msg string) {
	p := models.Progress{
		AnalysisID: id,
		Status:     status,
		Code:       status.Code(),
		Percentage: percent,
		Message:    msg,
		UpdatedAt:  s.now(),
	}
	logger.Info().Str("status", string(status)).Int("percentage", percent).Msg("analysis progress")
	if s.Store == nil {
		return
	}
	if err := s.Store.SetProgress(context.WithoutCancel(ctx), p); err != nil {
		logger.Warn().Err(err).Msg("failed to record progress")
	}
}

// fail records err as the terminal state of the analysis and returns it.
// Classified errors keep their status; anything else is ANALYSIS_FAILED.
func (s *Service) fail(ctx context.Context, logger zerolog.Logger, id string, err error) error {
	status := models.StatusAnalysisFailed
	var ae *models.AnalysisError
	if errors.As(err, &ae) {
		status = ae.Status
	}
	logger.Error().Err(err).Str("status", string(status)).Msg("analysis failed")
	s.record(ctx, logger, id, status, percentPending, err.Error())
	return err
}

// Analyze runs the full analysis for req under analysisID. Every stage is
// recorded in the store; failures are recorded and returned.
func (s *Service) Analyze(ctx context.Context, analysisID string, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	logger := log.With().Str("analysis_id", analysisID).Str("platform", req.Platform()).Logger()
	s.record(ctx, logger, analysisID, models.StatusPending, percentPending, "")

	client, err := s.Clients(req)
	if err != nil {
		return nil, s.fail(ctx, logger, analysisID, err)
	}
	if reason, found := client.CheckLoadability(ctx); found {
		return nil, s.fail(ctx, logger, analysisID, models.NewAnalysisError(reason, "repository cannot be loaded", nil))
	}

	s.record(ctx, logger, analysisID, models.StatusLoadingCommits, percentLoading, "")
	data, err := client.Load(ctx, req.Author())
	if err != nil {
		return nil, s.fail(ctx, logger, analysisID, err)
	}
	total, personal, err := loadCounts(ctx, logger, client, req.Author(), len(data.Commits))
	if err != nil {
		return nil, s.fail(ctx, logger, analysisID, err)
	}
	logger.Debug().
		Int("files", len(data.Content)).
		Int("commits", len(data.Commits)).
		Int("total_commits", total).
		Int("personal_commits", personal).
		Msg("repository loaded")

	s.record(ctx, logger, analysisID, models.StatusPreprocessing, percentPreprocess, "")
	contentDocs, err := s.AI.PreprocessContent(data.Content)
	if err != nil {
		return nil, s.fail(ctx, logger, analysisID, err)
	}
	commitDocs, err := s.AI.PreprocessCommits(data.Commits)
	if err != nil {
		return nil, s.fail(ctx, logger, analysisID, err)
	}

	result := &models.AnalysisResult{
		AnalysisID:          analysisID,
		TotalCommitCount:    total,
		PersonalCommitCount: personal,
	}

	s.record(ctx, logger, analysisID, models.StatusGeneratingReadme, percentReadme, "")
	if len(contentDocs) == 0 {
		logger.Warn().Msg("no content to summarize, README left empty")
	} else if result.Readme, err = s.AI.GenerateReadme(ctx, contentDocs); err != nil {
		return nil, s.fail(ctx, logger, analysisID, err)
	}

	s.record(ctx, logger, analysisID, models.StatusScoring, percentScoring, "")
	if len(commitDocs) == 0 {
		logger.Warn().Str("author", req.Author()).Msg("no commits by author, score left empty")
	} else if result.Explanation, result.Score, err = s.AI.ScoreCommits(ctx, commitDocs); err != nil {
		return nil, s.fail(ctx, logger, analysisID, err)
	}

	result.FinishedAt = s.now()
	if s.Store != nil {
		if err := s.Store.SaveResult(context.WithoutCancel(ctx), result); err != nil {
			logger.Warn().Err(err).Msg("failed to save result")
		}
	}
	s.record(ctx, logger, analysisID, models.StatusDone, percentDone, "")
	return result, nil
}

// loadCounts fetches the total and personal commit counts. Providers omit
// the pagination header when a listing fits on one page, so a missing last
// page falls back to the loaded commits: the author's count is
// loadedCommits, and the total is at least that.
func loadCounts(ctx context.Context, logger zerolog.Logger, client repo.Client, author string, loadedCommits int) (int, int, error) {
	total, err := client.LoadTotalCommitCount(ctx)
	totalKnown := err == nil
	if err != nil {
		if !errors.Is(err, repo.ErrNoLastPage) {
			return 0, 0, fmt.Errorf("total commit count: %w", err)
		}
		logger.Warn().Err(err).Msg("total commit count unavailable")
	}
	personal, err := client.LoadPersonalCommitCount(ctx, author)
	if err != nil {
		if !errors.Is(err, repo.ErrNoLastPage) {
			return 0, 0, fmt.Errorf("personal commit count: %w", err)
		}
		logger.Warn().Err(err).Int("loaded_commits", loadedCommits).Msg("personal commit count unavailable, using loaded commits")
		personal = loadedCommits
	}
	if !totalKnown {
		total = max(personal, loadedCommits)
	}
	return total, personal, nil
}
