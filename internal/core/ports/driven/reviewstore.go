package driven

import (
	"context"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// ReviewStore persists review run history.
type ReviewStore interface {
	// SaveRun stores a completed or cancelled run.
	SaveRun(ctx context.Context, run domain.ReviewRun) error

	// GetRun retrieves a run by ID. Returns domain.ErrNotFound if absent.
	GetRun(ctx context.Context, id string) (*domain.ReviewRun, error)

	// ListRuns returns the most recent runs first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]domain.ReviewRun, error)
}
