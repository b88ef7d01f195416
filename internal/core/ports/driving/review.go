package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// ReviewService runs a review batch end to end.
type ReviewService interface {
	// Review segments, classifies, reviews and annotates a batch.
	// Configuration errors (unknown process, ambiguous classification) are
	// returned before any document is reviewed. On cancellation the partial
	// result is returned together with an error wrapping domain.ErrBatchCancelled.
	Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error)

	// Check segments and classifies a batch against the process checklist
	// without reviewing it. Documents that cannot be segmented are left out
	// of the classification.
	Check(ctx context.Context, req ReviewRequest) (*domain.ChecklistResult, error)

	// History returns recent review runs, most recent first.
	History(ctx context.Context, limit int) ([]domain.ReviewRun, error)

	// Render writes annotated copies of the reviewed documents in their
	// upload format. Documents without a renderer are skipped.
	Render(ctx context.Context, result *ReviewResult) ([]driven.RenderedFile, error)
}

// ReviewRequest is one batch of uploads.
type ReviewRequest struct {
	// Process is the declared process type. Empty means the configured default.
	Process domain.ProcessType

	// Documents are in upload order.
	Documents []domain.RawDocument
}

// DocumentResult is one document's outcome within a batch.
type DocumentResult struct {
	Review    domain.DocumentReview
	Annotated *domain.AnnotatedDocument
	Notes     []domain.AnnotationNote
}

// ReviewResult is the outcome of a batch.
type ReviewResult struct {
	RunID     string
	Checklist *domain.ChecklistResult

	// Definition is the checklist captured at batch start.
	Definition domain.ChecklistDefinition

	// Documents are in upload order.
	Documents []DocumentResult

	Report *domain.Report

	// Warnings are non-fatal batch-level conditions, such as a stale index.
	Warnings []string

	StartedAt  time.Time
	FinishedAt time.Time
}
