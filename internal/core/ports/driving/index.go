package driving

import (
	"context"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// IndexService manages the knowledge index lifecycle.
type IndexService interface {
	// Build reads the corpus, embeds it and atomically replaces the live index.
	// Readers keep using the previous index until the swap.
	Build(ctx context.Context) (*domain.IndexManifest, error)

	// Load restores the last persisted index. A missing index is not an error.
	Load(ctx context.Context) error

	// Current returns the live index snapshot. Never nil.
	Current() driven.KnowledgeIndex

	// CheckFreshness returns *domain.IndexStaleError when the live index
	// no longer matches the corpus or the embedding model.
	CheckFreshness(ctx context.Context) error

	// Query embeds text and returns the k nearest chunks from the live index.
	Query(ctx context.Context, text string, k int) ([]domain.ScoredChunk, error)
}
