package store

import (
	"context"
	"time"

	"buildctl/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedPipelineStore caches pipeline lookups. Pipelines are read on every pause and change rarely, a
// stale last modifier for the lifetime of an entry only affects who is notified.
type CachedPipelineStore struct {
	next  PipelineStore
	cache *expirable.LRU[string, models.PipelineInfo]
}

func NewCachedPipelineStore(next PipelineStore, size int, ttl time.Duration) *CachedPipelineStore {
	if size <= 0 {
		size = 1024
	}
	return &CachedPipelineStore{
		next:  next,
		cache: expirable.NewLRU[string, models.PipelineInfo](size, nil, ttl),
	}
}

func (s *CachedPipelineStore) GetPipeline(ctx context.Context, pipelineID string) (*models.PipelineInfo, error) {
	if p, ok := s.cache.Get(pipelineID); ok {
		return &p, nil
	}

	p, err := s.next.GetPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(pipelineID, *p)
	return p, nil
}

// Invalidate drops a cached pipeline
func (s *CachedPipelineStore) Invalidate(pipelineID string) {
	s.cache.Remove(pipelineID)
}
