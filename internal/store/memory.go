package store

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/seanblong/repoinsight/pkg/models"
)

// DefaultMemorySize bounds the number of analyses a MemoryStore remembers.
const DefaultMemorySize = 1024

// MemoryStore is an in-process StatusStore. The least recently used
// analyses are evicted once size is reached.
type MemoryStore struct {
	*resultCache
	progress *lru.Cache[string, models.Progress]
}

func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	progress, err := lru.New[string, models.Progress](size)
	if err != nil {
		return nil, fmt.Errorf("progress cache: %w", err)
	}
	results, err := newResultCache(size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{resultCache: results, progress: progress}, nil
}

func (m *MemoryStore) SetProgress(ctx context.Context, p models.Progress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	p.Code = p.Status.Code()
	m.progress.Add(p.AnalysisID, p)
	return nil
}

func (m *MemoryStore) GetProgress(ctx context.Context, analysisID string) (models.Progress, bool, error) {
	p, ok := m.progress.Get(analysisID)
	return p, ok, nil
}

// Len returns the number of analyses with recorded progress.
func (m *MemoryStore) Len() int {
	return m.progress.Len()
}

// resultCache holds finished results for polling clients. Results are
// never written to durable storage.
type resultCache struct {
	results *lru.Cache[string, *models.AnalysisResult]
}

func newResultCache(size int) (*resultCache, error) {
	results, err := lru.New[string, *models.AnalysisResult](size)
	if err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}
	return &resultCache{results: results}, nil
}

func (c *resultCache) SaveResult(ctx context.Context, r *models.AnalysisResult) error {
	cp := *r
	c.results.Add(r.AnalysisID, &cp)
	return nil
}

func (c *resultCache) GetResult(ctx context.Context, analysisID string) (*models.AnalysisResult, bool, error) {
	r, ok := c.results.Get(analysisID)
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}
