package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore is an in-memory implementation of driven.IndexStore.
type IndexStore struct {
	mu       sync.RWMutex
	manifest *domain.IndexManifest
	chunks   []domain.Chunk
	saves    int
}

// NewIndexStore creates a new in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{}
}

// SaveIndex replaces the stored index.
func (s *IndexStore) SaveIndex(_ context.Context, manifest domain.IndexManifest, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = &manifest
	s.chunks = cloneChunks(chunks)
	s.saves++
	return nil
}

// LoadIndex returns a copy of the stored index.
func (s *IndexStore) LoadIndex(_ context.Context) (*domain.IndexManifest, []domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.manifest == nil {
		return nil, nil, domain.ErrNotFound
	}
	m := *s.manifest
	return &m, cloneChunks(s.chunks), nil
}

// Saves returns how many times SaveIndex has been called.
func (s *IndexStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func cloneChunks(chunks []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.Vector = slices.Clone(c.Vector)
		out[i] = c
	}
	return out
}
