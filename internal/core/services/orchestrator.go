package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/logger"
)

// Oracle call outcomes reported to metrics.
const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeMalformed = "malformed"
)

// Orchestrator reviews one document: it retrieves reference context,
// calls the findings oracle with retries, validates the candidates and
// removes duplicates. It holds no per-document state and is safe for
// concurrent use.
type Orchestrator struct {
	embedder  driven.EmbeddingService
	oracle    driven.FindingsOracle
	validator *CandidateValidator
	limiter   *rate.Limiter
	metrics   driven.ReviewMetrics
	settings  domain.ReviewSettings
}

// OrchestratorConfig holds the collaborators of an Orchestrator.
// Embedder, Limiter and Metrics may be nil.
type OrchestratorConfig struct {
	Embedder  driven.EmbeddingService
	Oracle    driven.FindingsOracle
	Validator *CandidateValidator
	Limiter   *rate.Limiter
	Metrics   driven.ReviewMetrics
	Settings  domain.ReviewSettings
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Validator == nil {
		cfg.Validator = NewCandidateValidator()
	}
	if cfg.Settings.Retry.MaxAttempts < 1 {
		cfg.Settings.Retry.MaxAttempts = 1
	}
	return &Orchestrator{
		embedder:  cfg.Embedder,
		oracle:    cfg.Oracle,
		validator: cfg.Validator,
		limiter:   cfg.Limiter,
		metrics:   cfg.Metrics,
		settings:  cfg.Settings,
	}
}

// NewLimiter builds the shared oracle rate limiter. Zero or negative
// rates disable limiting.
func NewLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Review runs the full per-document pipeline against the given index
// snapshot. Failures are reported in the returned review, never panicked
// or returned, so one document cannot abort its batch.
func (o *Orchestrator) Review(ctx context.Context, doc *domain.Document, index driven.KnowledgeIndex) domain.DocumentReview {
	start := time.Now()
	review := domain.DocumentReview{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Status:     domain.ReviewOK,
		Issues:     []domain.Issue{},
	}
	defer func() {
		if o.metrics != nil {
			o.metrics.ObserveDocument(review.Status, len(review.Issues), time.Since(start))
		}
	}()

	if o.settings.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, o.settings.DocumentTimeout, domain.ErrReviewTimeout)
		defer cancel()
	}

	refs, err := o.Retrieve(ctx, doc, index)
	if err != nil {
		if ctx.Err() != nil {
			review.Status = domain.ReviewFailed
			review.Cause = o.contextFailure(ctx, doc)
			return review
		}
		logger.Warn("retrieval for %s failed, reviewing without context: %v", doc.Name, err)
		review.Notes = append(review.Notes, fmt.Sprintf("retrieval failed: %v", err))
		refs = nil
	}

	candidates, attempts, err := o.propose(ctx, driven.OracleRequest{
		Document:     doc,
		Context:      refs,
		Process:      o.settings.Process,
		Jurisdiction: o.settings.Jurisdiction,
	})
	if err != nil {
		review.Status = domain.ReviewFailed
		if ctx.Err() != nil {
			review.Cause = o.contextFailure(ctx, doc)
		} else {
			review.Cause = &domain.OracleError{Attempts: attempts, Err: err}
		}
		logger.Warn("review of %s failed: %v", doc.Name, review.Cause)
		return review
	}

	issues, rejected := o.validator.Validate(doc, candidates)
	for _, r := range rejected {
		logger.Warn("%s: dropped candidate: %v", doc.Name, r)
	}
	review.Rejected = len(rejected)
	if o.metrics != nil && len(rejected) > 0 {
		o.metrics.ObserveRejectedCandidates(len(rejected))
	}
	if len(candidates) > 0 && len(issues) == 0 {
		review.Status = domain.ReviewDegraded
	}

	review.Issues = DedupIssues(issues, o.settings.DedupThreshold)
	logger.Debug("%s: %d issue(s), %d rejected, %d attempt(s)", doc.Name, len(review.Issues), review.Rejected, attempts)
	return review
}

// contextFailure distinguishes the per-document deadline from batch cancellation.
func (o *Orchestrator) contextFailure(ctx context.Context, doc *domain.Document) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, domain.ErrReviewTimeout) {
		return fmt.Errorf("%w: %s exceeded %s", domain.ErrReviewTimeout, doc.Name, o.settings.DocumentTimeout)
	}
	return cause
}

// Retrieve gathers reference chunks for a document. Without an embedder
// or with an empty index the context is empty and no error is returned.
func (o *Orchestrator) Retrieve(ctx context.Context, doc *domain.Document, index driven.KnowledgeIndex) ([]domain.ScoredChunk, error) {
	if o.embedder == nil || index == nil || index.Len() == 0 {
		return nil, nil
	}

	texts := o.retrievalTexts(doc)
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}

	topK := o.settings.TopK
	if topK <= 0 {
		topK = 4
	}

	best := make(map[domain.ChunkKey]domain.ScoredChunk)
	for _, v := range vectors {
		hits, err := index.Query(ctx, v, topK)
		if err != nil {
			return nil, fmt.Errorf("query index: %w", err)
		}
		for _, h := range hits {
			if prev, ok := best[h.Key()]; !ok || h.Score > prev.Score {
				best[h.Key()] = h
			}
		}
	}

	out := make([]domain.ScoredChunk, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })

	if limit := o.settings.MaxContextChunks; limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// retrievalTexts returns the query texts: one per non-blank paragraph, or
// the whole document for document scope and single-paragraph documents.
func (o *Orchestrator) retrievalTexts(doc *domain.Document) []string {
	var paras []string
	for _, p := range doc.Paragraphs {
		if !p.IsBlank() {
			paras = append(paras, p.Text)
		}
	}
	if len(paras) == 0 {
		return nil
	}
	if o.settings.Scope == domain.ScopeDocument || len(paras) == 1 {
		return []string{doc.Text()}
	}
	return paras
}

// propose calls the oracle, retrying failures with exponential backoff.
// Returns the attempts made. Context errors end retries at once.
func (o *Orchestrator) propose(ctx context.Context, req driven.OracleRequest) ([]domain.IssueCandidate, int, error) {
	if o.oracle == nil {
		return nil, 0, domain.ErrLLMUnavailable
	}

	policy := o.settings.Retry
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				if lastErr == nil {
					lastErr = err
				}
				return nil, attempt - 1, lastErr
			}
		}

		callStart := time.Now()
		candidates, err := o.oracle.ProposeIssues(ctx, req)
		o.observeCall(err, time.Since(callStart))
		if err == nil {
			return candidates, attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == policy.MaxAttempts {
			return nil, attempt, lastErr
		}

		wait := policy.Backoff(attempt)
		logger.Warn("oracle attempt %d/%d for %s failed: %v (retrying in %s)",
			attempt, policy.MaxAttempts, req.Document.Name, err, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, lastErr
		case <-timer.C:
		}
	}
	return nil, policy.MaxAttempts, lastErr
}

func (o *Orchestrator) observeCall(err error, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}
	outcome := outcomeOK
	switch {
	case errors.Is(err, domain.ErrOracleMalformed):
		outcome = outcomeMalformed
	case err != nil:
		outcome = outcomeError
	}
	o.metrics.ObserveOracleCall(outcome, elapsed)
}
