package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/seanblong/repoinsight/pkg/models"
)

// StatusStore records analysis progress and finished results.
type StatusStore interface {
	SetProgress(ctx context.Context, p models.Progress) error
	GetProgress(ctx context.Context, analysisID string) (models.Progress, bool, error)
	SaveResult(ctx context.Context, r *models.AnalysisResult) error
	GetResult(ctx context.Context, analysisID string) (*models.AnalysisResult, bool, error)
}

// Store is the PostgreSQL StatusStore. Progress rows are durable; finished
// results are kept in process memory only.
type Store struct {
	*resultCache
	pool *pgxpool.Pool
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	results, err := newResultCache(DefaultMemorySize)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{resultCache: results, pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate creates the status table.
func (s *Store) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS analysis_status (
  id          TEXT PRIMARY KEY,
  status      TEXT NOT NULL,
  code        INT NOT NULL,
  percentage  INT NOT NULL DEFAULT 0,
  message     TEXT NOT NULL DEFAULT '',
  updated_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS analysis_status_updated_idx
  ON analysis_status (updated_at);
`
	_, err := s.pool.Exec(ctx, q)
	return err
}

// SetProgress upserts the progress row for p.AnalysisID.
func (s *Store) SetProgress(ctx context.Context, p models.Progress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	const q = `
INSERT INTO analysis_status (id, status, code, percentage, message, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  code = EXCLUDED.code,
  percentage = EXCLUDED.percentage,
  message = EXCLUDED.message,
  updated_at = EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, q, p.AnalysisID, string(p.Status), p.Status.Code(), p.Percentage, p.Message, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set progress %s: %w", p.AnalysisID, err)
	}
	return nil
}

// GetProgress returns the progress of an analysis, false if unknown.
func (s *Store) GetProgress(ctx context.Context, analysisID string) (models.Progress, bool, error) {
	const q = `
      SELECT id, status, code, percentage, message, updated_at
      FROM analysis_status
      WHERE id = $1`
	var (
		p      models.Progress
		status string
	)
	err := s.pool.QueryRow(ctx, q, analysisID).
		Scan(&p.AnalysisID, &status, &p.Code, &p.Percentage, &p.Message, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Progress{}, false, nil
		}
		return models.Progress{}, false, err
	}
	p.Status = models.AnalysisStatus(status)
	return p, true, nil
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
