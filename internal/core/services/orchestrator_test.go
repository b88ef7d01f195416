package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmoracle "github.com/custodia-labs/docreview/internal/adapters/driven/oracle/llm"
	"github.com/custodia-labs/docreview/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

func testIndex(t *testing.T) driven.KnowledgeIndex {
	t.Helper()
	idx, err := flat.Build([]domain.Chunk{
		{SourceID: "regs/a.txt", Ordinal: 0, Text: "registered office", Vector: []float32{1, 0}},
		{SourceID: "regs/b.txt", Ordinal: 0, Text: "share capital", Vector: []float32{0, 1}},
		{SourceID: "regs/c.txt", Ordinal: 0, Text: "directors", Vector: []float32{0.7, 0.7}},
	}, domain.IndexManifest{SnapshotID: "snap", EmbeddingModel: "mock-embed"})
	require.NoError(t, err)
	return idx
}

func TestOrchestrator_Review_ValidIssues(t *testing.T) {
	doc := newTestDoc("articles.txt", "The company is registered in Delaware.", "Share capital is USD 1.")
	oracle := staticOracle(
		candidate(domain.IntPtr(0), "High", "Jurisdiction must be ADGM"),
		candidate(nil, "low", "Missing signature block"),
		candidate(domain.IntPtr(9), "medium", "Out of range paragraph"),
	)
	metrics := newMockMetrics()

	orch := NewOrchestrator(OrchestratorConfig{Oracle: oracle, Metrics: metrics, Settings: fastSettings()})
	review := orch.Review(context.Background(), doc, nil)

	assert.Equal(t, domain.ReviewOK, review.Status)
	assert.Equal(t, doc.ID, review.DocumentID)
	require.Len(t, review.Issues, 2)
	assert.Equal(t, domain.SeverityHigh, review.Issues[0].Severity)
	assert.Nil(t, review.Issues[1].ParagraphIndex)
	assert.Equal(t, 1, review.Rejected)
	assert.NoError(t, review.Cause)

	assert.Equal(t, 1, metrics.rejected)
	assert.Equal(t, 1, metrics.oracle[outcomeOK])
	assert.Equal(t, 1, metrics.documents[domain.ReviewOK])
}

func TestOrchestrator_Review_AllRejectedIsDegraded(t *testing.T) {
	doc := newTestDoc("memo.txt", "Only paragraph.")
	oracle := staticOracle(
		candidate(domain.IntPtr(3), "high", "bad index"),
		candidate(nil, "urgent", "bad severity"),
		candidate(nil, "low", "   "),
	)

	orch := NewOrchestrator(OrchestratorConfig{Oracle: oracle, Settings: fastSettings()})
	review := orch.Review(context.Background(), doc, nil)

	assert.Equal(t, domain.ReviewDegraded, review.Status)
	assert.Empty(t, review.Issues)
	assert.NotNil(t, review.Issues)
	assert.Equal(t, 3, review.Rejected)
}

func TestOrchestrator_Review_BadCandidateDoesNotSinkSiblings(t *testing.T) {
	doc := newTestDoc("articles.txt", "Disputes go to onshore courts.", "Share capital is USD 1.")
	llm := &replyLLM{reply: `[
		{"paragraph": 0, "issue": "Wrong jurisdiction", "severity": "high"},
		{"paragraph": "clause 4", "issue": "Unplaceable", "severity": "low"},
		{"paragraph": 1, "issue": "Typed badly", "severity": 3}
	]`}
	oracle := &mockOracle{propose: func(ctx context.Context, req driven.OracleRequest, _ int) ([]domain.IssueCandidate, error) {
		return llmoracle.New(llm).ProposeIssues(ctx, req)
	}}
	metrics := newMockMetrics()

	orch := NewOrchestrator(OrchestratorConfig{Oracle: oracle, Metrics: metrics, Settings: fastSettings()})
	review := orch.Review(context.Background(), doc, nil)

	assert.Equal(t, domain.ReviewOK, review.Status)
	assert.NoError(t, review.Cause)
	assert.Equal(t, 1, oracle.Calls())
	require.Len(t, review.Issues, 1)
	assert.Equal(t, "Wrong jurisdiction", review.Issues[0].Description)
	assert.Equal(t, 2, review.Rejected)
	assert.Equal(t, 1, metrics.oracle[outcomeOK])
	assert.Zero(t, metrics.oracle[outcomeMalformed])
}

func TestOrchestrator_Review_OnlyBadCandidatesIsDegraded(t *testing.T) {
	doc := newTestDoc("memo.txt", "Only paragraph.")
	llm := &replyLLM{reply: `[{"paragraph": "first", "issue": "x", "severity": "low"}]`}
	oracle := &mockOracle{propose: func(ctx context.Context, req driven.OracleRequest, _ int) ([]domain.IssueCandidate, error) {
		return llmoracle.New(llm).ProposeIssues(ctx, req)
	}}

	orch := NewOrchestrator(OrchestratorConfig{Oracle: oracle, Settings: fastSettings()})
	review := orch.Review(context.Background(), doc, nil)

	assert.Equal(t, domain.ReviewDegraded, review.Status)
	assert.Empty(t, review.Issues)
	assert.Equal(t, 1, review.Rejected)
	assert.Equal(t, 1, oracle.Calls())
}

func TestOrchestrator_Review_NoCandidates(t *testing.T) {
	doc := newTestDoc("clean.txt", "All good.")
	orch := NewOrchestrator(OrchestratorConfig{Oracle: staticOracle(), Settings: fastSettings()})

	review := orch.Review(context.Background(), doc, nil)

	assert.Equal(t, domain.ReviewOK, review.Status)
	assert.Empty(t, review.Issues)
	assert.Zero(t, review.Rejected)
}

func TestOrchestrator_Review_RetriesTransientFailures(t *testing.T) {
	doc := newTestDoc("resolution.txt", "Resolved to appoint directors.")
	oracle := failingOracle(2, errTransient, candidate(domain.IntPtr(0), "medium", "Quorum not stated"))
	metrics := newMockMetrics()

	orch := NewOrchestrator(OrchestratorConfig{Oracle: oracle, Metrics: metrics, Settings: fastSettings()})
	review := orch.Review(context.Background(), doc, nil)

	assert.Equal(t, domain.ReviewOK, review.Status)
	assert.Len(t, review.Issues, 1)
	assert.Equal(t, 3, oracle.Calls())
	assert.Equal(t, 2, metrics.oracle[outcomeError])
	assert.Equal(t, 1, metrics.oracle[outcomeOK])
}

func TestOrchestrator_Review_RetriesExhausted(t *testing.T) {
	doc := newTestDoc("resolution.txt", "Resolved.")
	oracle := failingOracle(10, errTransient)

	orch := NewOrchestrator(OrchestratorConfig{Oracle: oracle, Settings: fastSettings()})
	review := orch.Review(context.Background(), doc, nil)

	assert.Equal(t, domain.ReviewFailed, review.Status)
	assert.Equal(t, 3, oracle.Calls())

	var oerr *domain.OracleError
	require.ErrorAs(t, review.Cause, &oerr)
	assert.Equal(t, 3, oerr.Attempts)
	assert.ErrorIs(t, review.Cause, domain.ErrOracle)
	assert.ErrorIs(t, review.Cause, errTransient)
}

func TestOrchestrator_Review_MalformedOutcome(t *testing.T) {
	doc := newTestDoc("a.txt", "Text.")
	malformed := fmt.Errorf("%w: no JSON array", domain.ErrOracleMalformed)
	oracle := failingOracle(1, malformed)
	metrics := newMockMetrics()

	orch := NewOrchestrator(OrchestratorConfig{Oracle: oracle, Metrics: metrics, Settings: fastSettings()})
	review := orch.Review(context.Background(), doc, nil)

	assert.Equal(t, domain.ReviewOK, review.Status)
	assert.Equal(t, 1, metrics.oracle[outcomeMalformed])
}

func TestOrchestrator_Review_DocumentTimeout(t *testing.T) {
	doc := newTestDoc("slow.txt", "Text.")
	oracle := &mockOracle{propose: func(ctx context.Context, _ driven.OracleRequest, _ int) ([]domain.IssueCandidate, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	settings := fastSettings()
	settings.DocumentTimeout = 20 * time.Millisecond

	orch := NewOrchestrator(OrchestratorConfig{Oracle: oracle, Settings: settings})
	review := orch.Review(context.Background(), doc, nil)

	assert.Equal(t, domain.ReviewFailed, review.Status)
	assert.ErrorIs(t, review.Cause, domain.ErrReviewTimeout)
	assert.Equal(t, 1, oracle.Calls())
}

func TestOrchestrator_Review_ParentCancelled(t *testing.T) {
	doc := newTestDoc("a.txt", "Text.")
	oracle := &mockOracle{propose: func(ctx context.Context, _ driven.OracleRequest, _ int) ([]domain.IssueCandidate, error) {
		return nil, ctx.Err()
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := NewOrchestrator(OrchestratorConfig{Oracle: oracle, Settings: fastSettings()})
	review := orch.Review(ctx, doc, nil)

	assert.Equal(t, domain.ReviewFailed, review.Status)
	assert.ErrorIs(t, review.Cause, context.Canceled)
	assert.NotErrorIs(t, review.Cause, domain.ErrReviewTimeout)
}

func TestOrchestrator_Review_NoOracle(t *testing.T) {
	doc := newTestDoc("a.txt", "Text.")
	orch := NewOrchestrator(OrchestratorConfig{Settings: fastSettings()})

	review := orch.Review(context.Background(), doc, nil)

	assert.Equal(t, domain.ReviewFailed, review.Status)
	assert.ErrorIs(t, review.Cause, domain.ErrLLMUnavailable)
}

func TestOrchestrator_Review_DeduplicatesIssues(t *testing.T) {
	doc := newTestDoc("a.txt", "Governing law is English law.")
	oracle := staticOracle(
		candidate(domain.IntPtr(0), "medium", "Governing law must be ADGM law."),
		candidate(domain.IntPtr(0), "critical", "Governing law must be ADGM law"),
	)

	orch := NewOrchestrator(OrchestratorConfig{Oracle: oracle, Settings: fastSettings()})
	review := orch.Review(context.Background(), doc, nil)

	require.Len(t, review.Issues, 1)
	assert.Equal(t, domain.SeverityCritical, review.Issues[0].Severity)
}

func TestOrchestrator_Review_PassesContextToOracle(t *testing.T) {
	doc := newTestDoc("a.txt", "office", "capital")
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"office":  {1, 0},
		"capital": {0, 1},
	}}
	oracle := staticOracle()
	settings := fastSettings()
	settings.Jurisdiction = "ADGM"
	settings.Process = "incorporation"

	orch := NewOrchestrator(OrchestratorConfig{Embedder: embedder, Oracle: oracle, Settings: settings})
	orch.Review(context.Background(), doc, testIndex(t))

	require.Len(t, oracle.requests, 1)
	req := oracle.requests[0]
	assert.Equal(t, "ADGM", req.Jurisdiction)
	assert.Equal(t, domain.ProcessType("incorporation"), req.Process)
	assert.Same(t, doc, req.Document)
	assert.NotEmpty(t, req.Context)
}

func TestOrchestrator_Retrieve(t *testing.T) {
	doc := newTestDoc("a.txt", "office", "", "capital")
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"office":  {1, 0},
		"capital": {0, 1},
	}}

	tests := []struct {
		name     string
		topK     int
		maxChunk int
		want     []string
	}{
		{name: "union sorted by score then source", topK: 2, maxChunk: 12, want: []string{"regs/a.txt", "regs/b.txt", "regs/c.txt"}},
		{name: "capped", topK: 2, maxChunk: 2, want: []string{"regs/a.txt", "regs/b.txt"}},
		{name: "top one per paragraph", topK: 1, maxChunk: 12, want: []string{"regs/a.txt", "regs/b.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := fastSettings()
			settings.TopK = tt.topK
			settings.MaxContextChunks = tt.maxChunk
			orch := NewOrchestrator(OrchestratorConfig{Embedder: embedder, Settings: settings})

			got, err := orch.Retrieve(context.Background(), doc, testIndex(t))
			require.NoError(t, err)

			sources := make([]string, len(got))
			for i, c := range got {
				sources[i] = c.SourceID
			}
			assert.Equal(t, tt.want, sources)
		})
	}
}

func TestOrchestrator_Retrieve_Deterministic(t *testing.T) {
	doc := newTestDoc("a.txt", "office", "capital")
	embedder := &mockEmbedder{vectors: map[string][]float32{"office": {1, 0}, "capital": {0, 1}}}
	orch := NewOrchestrator(OrchestratorConfig{Embedder: embedder, Settings: fastSettings()})
	idx := testIndex(t)

	first, err := orch.Retrieve(context.Background(), doc, idx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := orch.Retrieve(context.Background(), doc, idx)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestOrchestrator_Retrieve_EmptyContext(t *testing.T) {
	doc := newTestDoc("a.txt", "office")

	t.Run("no embedder", func(t *testing.T) {
		orch := NewOrchestrator(OrchestratorConfig{Settings: fastSettings()})
		got, err := orch.Retrieve(context.Background(), doc, testIndex(t))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("empty index", func(t *testing.T) {
		embedder := &mockEmbedder{}
		orch := NewOrchestrator(OrchestratorConfig{Embedder: embedder, Settings: fastSettings()})
		got, err := orch.Retrieve(context.Background(), doc, flat.Empty())
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Zero(t, embedder.calls.Load())
	})

	t.Run("blank document", func(t *testing.T) {
		embedder := &mockEmbedder{}
		orch := NewOrchestrator(OrchestratorConfig{Embedder: embedder, Settings: fastSettings()})
		got, err := orch.Retrieve(context.Background(), newTestDoc("b.txt", "", "  "), testIndex(t))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestOrchestrator_Retrieve_DocumentScope(t *testing.T) {
	doc := newTestDoc("a.txt", "office", "capital")
	embedder := &mockEmbedder{vectors: map[string][]float32{doc.Text(): {0, 1}}, fallback: []float32{1, 0}}
	settings := fastSettings()
	settings.Scope = domain.ScopeDocument
	settings.TopK = 1

	orch := NewOrchestrator(OrchestratorConfig{Embedder: embedder, Settings: settings})
	got, err := orch.Retrieve(context.Background(), doc, testIndex(t))

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "regs/b.txt", got[0].SourceID)
}

func TestOrchestrator_Review_EmbeddingFailureStillReviews(t *testing.T) {
	doc := newTestDoc("a.txt", "office")
	embedder := &mockEmbedder{err: errors.New("embedding service down")}
	oracle := staticOracle(candidate(domain.IntPtr(0), "low", "Minor wording"))

	orch := NewOrchestrator(OrchestratorConfig{Embedder: embedder, Oracle: oracle, Settings: fastSettings()})
	review := orch.Review(context.Background(), doc, testIndex(t))

	assert.Equal(t, domain.ReviewOK, review.Status)
	assert.Len(t, review.Issues, 1)
	require.Len(t, review.Notes, 1)
	assert.Contains(t, review.Notes[0], "retrieval failed")
	assert.Empty(t, oracle.requests[0].Context)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0))
	assert.Nil(t, NewLimiter(-1))

	l := NewLimiter(0.5)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())

	l = NewLimiter(4)
	require.NotNil(t, l)
	assert.Equal(t, 4, l.Burst())
}
