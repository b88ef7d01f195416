package driven

import (
	"context"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// KnowledgeIndex is a built, immutable set of corpus chunks supporting
// nearest-neighbour retrieval. Implementations must be safe for concurrent
// Query calls without locking.
type KnowledgeIndex interface {
	// Query returns up to k chunks ordered by descending similarity, ties
	// broken by ascending SourceID then Ordinal. An empty index yields an
	// empty result and no error.
	Query(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error)

	// Len returns the number of chunks.
	Len() int

	// Manifest describes how the index was built.
	Manifest() domain.IndexManifest
}

// IndexStore persists a built knowledge index.
type IndexStore interface {
	// SaveIndex replaces any stored index with the given chunks.
	SaveIndex(ctx context.Context, manifest domain.IndexManifest, chunks []domain.Chunk) error

	// LoadIndex returns the stored index. Returns domain.ErrNotFound
	// when nothing has been saved.
	LoadIndex(ctx context.Context) (*domain.IndexManifest, []domain.Chunk, error)
}

// IndexBuilder constructs knowledge indexes. Built indexes are immutable.
type IndexBuilder interface {
	// Build validates chunks and returns a new index over them.
	Build(chunks []domain.Chunk, manifest domain.IndexManifest) (KnowledgeIndex, error)

	// Empty returns an index with no chunks.
	Empty() KnowledgeIndex
}
