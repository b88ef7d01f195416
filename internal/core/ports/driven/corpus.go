package driven

import (
	"context"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// CorpusSource reads the reference corpus.
type CorpusSource interface {
	// Snapshot lists and reads every corpus file. The snapshot ID changes
	// whenever a file is added, removed or modified.
	Snapshot(ctx context.Context) (*domain.CorpusSnapshot, error)

	// Root returns the corpus location for display.
	Root() string
}

// CorpusWatcher reports corpus changes.
type CorpusWatcher interface {
	// Watch calls onChange after the corpus settles following a change.
	// It blocks until ctx is cancelled.
	Watch(ctx context.Context, onChange func()) error

	// Close releases resources.
	Close() error
}
