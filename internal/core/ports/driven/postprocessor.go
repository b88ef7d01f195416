package driven

import (
	"context"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// PostProcessor turns corpus text into index chunks.
// PostProcessors are chained in a pipeline (e.g., chunking, whitespace cleanup).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a corpus file and returns chunks.
	// If the processor modifies chunks, it receives and returns chunks.
	// If the processor creates chunks (e.g., chunker), it receives nil and returns new chunks.
	Process(ctx context.Context, file *domain.CorpusFile, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the file through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, file *domain.CorpusFile) ([]domain.Chunk, error)
}
