package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/core/ports/driving"
	"github.com/custodia-labs/docreview/internal/logger"
)

// Ensure ReviewService implements the interface.
var _ driving.ReviewService = (*ReviewService)(nil)

// ReviewService runs review batches: segmentation, checklist evaluation,
// bounded-concurrency document review, annotation and reporting.
type ReviewService struct {
	segmenters driven.SegmenterRegistry
	checklists driving.ChecklistService
	index      driving.IndexService
	embedder   driven.EmbeddingService
	oracle     driven.FindingsOracle
	renderers  map[string]driven.Renderer
	store      driven.ReviewStore
	metrics    driven.ReviewMetrics
	validator  *CandidateValidator
	annotator  *Annotator
	limiter    *rate.Limiter
	settings   domain.ReviewSettings
	now        func() time.Time
}

// ReviewServiceConfig holds the collaborators of a ReviewService.
// Index, Embedder, Store, Metrics and Renderers may be nil.
type ReviewServiceConfig struct {
	Segmenters driven.SegmenterRegistry
	Checklists driving.ChecklistService
	Index      driving.IndexService
	Embedder   driven.EmbeddingService
	Oracle     driven.FindingsOracle
	Renderers  []driven.Renderer
	Store      driven.ReviewStore
	Metrics    driven.ReviewMetrics
	Settings   domain.ReviewSettings

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// NewReviewService creates a review service.
func NewReviewService(cfg ReviewServiceConfig) *ReviewService {
	s := &ReviewService{
		segmenters: cfg.Segmenters,
		checklists: cfg.Checklists,
		index:      cfg.Index,
		embedder:   cfg.Embedder,
		oracle:     cfg.Oracle,
		renderers:  make(map[string]driven.Renderer),
		store:      cfg.Store,
		metrics:    cfg.Metrics,
		validator:  NewCandidateValidator(),
		annotator:  NewAnnotator(),
		limiter:    NewLimiter(cfg.Settings.RequestsPerSecond),
		settings:   cfg.Settings,
		now:        cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	for _, r := range cfg.Renderers {
		for _, mt := range r.SupportedMIMETypes() {
			s.renderers[mt] = r
		}
	}
	return s
}

// Review runs one batch. The checklist definition, index snapshot and
// review settings are captured at the start and used for the whole batch.
func (s *ReviewService) Review(ctx context.Context, req driving.ReviewRequest) (*driving.ReviewResult, error) {
	if len(req.Documents) == 0 {
		return nil, fmt.Errorf("%w: no documents", domain.ErrInvalidInput)
	}

	settings := s.settings
	process := req.Process
	if process == "" {
		process = settings.Process
	}
	settings.Process = process

	def, err := s.checklists.Definition(process)
	if err != nil {
		return nil, err
	}

	result := &driving.ReviewResult{
		RunID:      uuid.New().String(),
		Definition: def,
		StartedAt:  s.now(),
		Documents:  make([]driving.DocumentResult, len(req.Documents)),
	}
	logger.Section(fmt.Sprintf("Review %s (%d document(s))", process, len(req.Documents)))

	var index driven.KnowledgeIndex
	if s.index != nil {
		index = s.index.Current()
		if err := s.index.CheckFreshness(ctx); err != nil {
			logger.Warn("%v", err)
			result.Warnings = append(result.Warnings, err.Error())
		}
	}

	docs := make([]*domain.Document, len(req.Documents))
	var parsed []*domain.Document
	for i := range req.Documents {
		raw := &req.Documents[i]
		doc, err := s.segmenters.Segment(ctx, raw)
		if err != nil {
			logger.Warn("cannot segment %s: %v", raw.Name, err)
			result.Documents[i].Review = domain.DocumentReview{
				DocumentID: raw.Name,
				Name:       raw.Name,
				Status:     domain.ReviewFailed,
				Issues:     []domain.Issue{},
				Cause:      err,
			}
			continue
		}
		docs[i] = doc
		parsed = append(parsed, doc)
	}

	checklist, err := s.checklists.Evaluate(process, parsed)
	if err != nil {
		return nil, err
	}
	result.Checklist = checklist
	if !checklist.Satisfied {
		logger.Info("%s", checklist.Notification(def.Title))
	}

	orch := NewOrchestrator(OrchestratorConfig{
		Embedder:  s.embedder,
		Oracle:    s.oracle,
		Validator: s.validator,
		Limiter:   s.limiter,
		Metrics:   s.metrics,
		Settings:  settings,
	})

	workers := settings.Workers
	if workers < 1 {
		workers = 1
	}
	type indexed struct {
		pos int
		res driving.DocumentResult
	}
	results := make(chan indexed)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for r := range results {
			result.Documents[r.pos] = r.res
		}
	}()

	var g errgroup.Group
	g.SetLimit(workers)
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		if ctx.Err() != nil {
			results <- indexed{pos: i, res: driving.DocumentResult{Review: cancelledReview(doc, context.Cause(ctx))}}
			continue
		}
		g.Go(func() error {
			results <- indexed{pos: i, res: s.reviewOne(ctx, orch, doc, index)}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-collected

	result.FinishedAt = s.now()
	reviews := make([]domain.DocumentReview, len(result.Documents))
	for i, d := range result.Documents {
		reviews[i] = d.Review
	}
	result.Report = BuildReport(process, checklist, reviews, result.FinishedAt)

	cancelled := ctx.Err() != nil
	s.record(ctx, result, cancelled)

	if cancelled {
		return result, fmt.Errorf("%w: %w", domain.ErrBatchCancelled, context.Cause(ctx))
	}
	return result, nil
}

func (s *ReviewService) reviewOne(ctx context.Context, orch *Orchestrator, doc *domain.Document, index driven.KnowledgeIndex) driving.DocumentResult {
	review := orch.Review(ctx, doc, index)
	if review.Status == domain.ReviewFailed {
		return driving.DocumentResult{Review: review}
	}

	annotated, notes := s.annotator.Annotate(doc, review.Issues)
	for _, n := range notes {
		review.Notes = append(review.Notes, n.String())
	}
	logger.Info("%s: %s, %d issue(s)", doc.Name, review.Status, len(review.Issues))
	return driving.DocumentResult{Review: review, Annotated: annotated, Notes: notes}
}

func cancelledReview(doc *domain.Document, cause error) domain.DocumentReview {
	return domain.DocumentReview{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Status:     domain.ReviewFailed,
		Issues:     []domain.Issue{},
		Cause:      fmt.Errorf("%w: %w", domain.ErrBatchCancelled, cause),
	}
}

// record persists the run and reports batch metrics. Storage failures
// are logged and never fail the batch.
func (s *ReviewService) record(ctx context.Context, result *driving.ReviewResult, cancelled bool) {
	if s.metrics != nil {
		s.metrics.ObserveBatch(len(result.Documents), result.FinishedAt.Sub(result.StartedAt))
	}
	if s.store == nil {
		return
	}

	run := domain.ReviewRun{
		ID:            result.RunID,
		ProcessType:   domain.ProcessType(result.Report.ProcessType),
		StartedAt:     result.StartedAt,
		FinishedAt:    result.FinishedAt,
		DocumentCount: len(result.Documents),
		IssueCount:    result.Report.Summary.BySeverity.Total(),
		OverallPass:   result.Report.Summary.OverallPass,
		Cancelled:     cancelled,
	}
	for _, d := range result.Documents {
		if d.Review.Status == domain.ReviewFailed {
			run.FailedCount++
		}
	}
	if data, err := EncodeReport(result.Report); err == nil {
		run.Report = data
	} else {
		logger.Warn("%v", err)
	}

	// The batch context may already be cancelled; history is still written.
	if err := s.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("save review run %s: %v", run.ID, err)
	}
}

// Check classifies the batch without calling the oracle.
func (s *ReviewService) Check(ctx context.Context, req driving.ReviewRequest) (*domain.ChecklistResult, error) {
	if len(req.Documents) == 0 {
		return nil, fmt.Errorf("%w: no documents", domain.ErrInvalidInput)
	}
	process := req.Process
	if process == "" {
		process = s.settings.Process
	}

	var parsed []*domain.Document
	for i := range req.Documents {
		doc, err := s.segmenters.Segment(ctx, &req.Documents[i])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("cannot segment %s: %v", req.Documents[i].Name, err)
			continue
		}
		parsed = append(parsed, doc)
	}
	return s.checklists.Evaluate(process, parsed)
}

// History returns recent review runs, most recent first.
func (s *ReviewService) History(ctx context.Context, limit int) ([]domain.ReviewRun, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListRuns(ctx, limit)
}

// Render writes annotated copies of every reviewed document. Documents
// without a renderer for their MIME type are skipped with a warning.
func (s *ReviewService) Render(ctx context.Context, result *driving.ReviewResult) ([]driven.RenderedFile, error) {
	var files []driven.RenderedFile
	for _, d := range result.Documents {
		if d.Annotated == nil {
			continue
		}
		r, ok := s.renderers[d.Annotated.MIMEType]
		if !ok {
			logger.Warn("no renderer for %s (%s)", d.Annotated.Name, d.Annotated.MIMEType)
			continue
		}
		out, err := r.Render(ctx, d.Annotated)
		if err != nil {
			return files, fmt.Errorf("render %s: %w", d.Annotated.Name, err)
		}
		files = append(files, out...)
	}
	return files, nil
}
