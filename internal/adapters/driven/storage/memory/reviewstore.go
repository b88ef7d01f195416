package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// Ensure ReviewStore implements the interface.
var _ driven.ReviewStore = (*ReviewStore)(nil)

// ReviewStore is an in-memory implementation of driven.ReviewStore.
type ReviewStore struct {
	mu   sync.RWMutex
	runs map[string]domain.ReviewRun
}

// NewReviewStore creates a new in-memory review store.
func NewReviewStore() *ReviewStore {
	return &ReviewStore{
		runs: make(map[string]domain.ReviewRun),
	}
}

// SaveRun stores or replaces a run.
func (s *ReviewStore) SaveRun(_ context.Context, run domain.ReviewRun) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run.Report = slices.Clone(run.Report)
	s.runs[run.ID] = run
	return nil
}

// GetRun retrieves a run by ID.
func (s *ReviewStore) GetRun(_ context.Context, id string) (*domain.ReviewRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// ListRuns returns runs newest first, up to limit (all if limit <= 0).
func (s *ReviewStore) ListRuns(_ context.Context, limit int) ([]domain.ReviewRun, error) {
	s.mu.RLock()
	runs := make([]domain.ReviewRun, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
