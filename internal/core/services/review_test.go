package services

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docreview/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/core/ports/driving"
	"github.com/custodia-labs/docreview/internal/segmenters"
	"github.com/custodia-labs/docreview/internal/segmenters/plaintext"
)

var batchClock = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type reviewFixture struct {
	service *ReviewService
	store   *memory.ReviewStore
	metrics *mockMetrics
}

func newReviewFixture(t *testing.T, oracle *mockOracle, mutate func(*ReviewServiceConfig)) *reviewFixture {
	t.Helper()
	checklists := newTestChecklistService(t)
	store := memory.NewReviewStore()
	metrics := newMockMetrics()

	cfg := ReviewServiceConfig{
		Segmenters: segmenters.NewRegistry(plaintext.New()),
		Checklists: checklists,
		Oracle:     oracle,
		Renderers:  []driven.Renderer{&mockRenderer{mimeTypes: []string{domain.MIMETypePlainText}}},
		Store:      store,
		Metrics:    metrics,
		Settings:   fastSettings(),
		Now:        func() time.Time { return batchClock },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &reviewFixture{service: NewReviewService(cfg), store: store, metrics: metrics}
}

func txt(name, content string) domain.RawDocument {
	return domain.RawDocument{Name: name, MIMEType: domain.MIMETypePlainText, Content: []byte(content)}
}

func completeBatch() []domain.RawDocument {
	return []domain.RawDocument{
		txt("aoa.txt", "The company is registered in Delaware.\n\nSigned by the founders."),
		txt("memorandum.txt", "This memorandum is governed by English law."),
		txt("minutes.txt", "It was resolved to appoint two directors."),
	}
}

// excerptOracle flags the first paragraph of every document.
func excerptOracle(excerpt string) *mockOracle {
	return &mockOracle{propose: func(_ context.Context, req driven.OracleRequest, _ int) ([]domain.IssueCandidate, error) {
		return []domain.IssueCandidate{{
			ParagraphIndex: domain.IntPtr(0),
			Severity:       "high",
			Description:    "Clause does not reference ADGM in " + req.Document.Name,
			Excerpt:        excerpt,
		}}, nil
	}}
}

func TestReviewService_Review_CompleteBatch(t *testing.T) {
	f := newReviewFixture(t, excerptOracle("Delaware"), nil)

	result, err := f.service.Review(context.Background(), driving.ReviewRequest{Documents: completeBatch()})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, domain.ProcessType("incorporation"), result.Definition.Process)
	require.NotNil(t, result.Checklist)
	assert.True(t, result.Checklist.Satisfied)

	require.Len(t, result.Documents, 3)
	names := []string{"aoa.txt", "memorandum.txt", "minutes.txt"}
	for i, d := range result.Documents {
		assert.Equal(t, names[i], d.Review.Name, "upload order")
		assert.Equal(t, domain.ReviewOK, d.Review.Status)
		require.Len(t, d.Review.Issues, 1)
		require.NotNil(t, d.Annotated)
		assert.Len(t, d.Annotated.Annotations(), 1)
	}

	// Only aoa.txt contains the excerpt; the others fall back to the paragraph.
	assert.Empty(t, result.Documents[0].Notes)
	require.Len(t, result.Documents[1].Notes, 1)
	assert.Equal(t, domain.NoteLocationFallback, result.Documents[1].Notes[0].Kind)

	report := result.Report
	require.NotNil(t, report)
	assert.Equal(t, batchClock, report.GeneratedAt)
	assert.Equal(t, 3, report.Summary.BySeverity.High)
	assert.True(t, report.Summary.OverallPass)

	runs, err := f.service.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].ID)
	assert.Equal(t, 3, runs[0].DocumentCount)
	assert.Equal(t, 3, runs[0].IssueCount)
	assert.False(t, runs[0].Cancelled)
	assert.Contains(t, string(runs[0].Report), `"processType": "incorporation"`)

	assert.Equal(t, 1, f.metrics.batches)
	assert.Equal(t, 3, f.metrics.documents[domain.ReviewOK])
}

func TestReviewService_Review_NoDocuments(t *testing.T) {
	f := newReviewFixture(t, staticOracle(), nil)
	_, err := f.service.Review(context.Background(), driving.ReviewRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReviewService_Review_UnknownProcess(t *testing.T) {
	oracle := staticOracle()
	f := newReviewFixture(t, oracle, nil)

	result, err := f.service.Review(context.Background(), driving.ReviewRequest{
		Process:   "licensing",
		Documents: completeBatch(),
	})

	assert.ErrorIs(t, err, domain.ErrUnknownProcessType)
	assert.Nil(t, result)
	assert.Zero(t, oracle.Calls())
}

func TestReviewService_Review_AmbiguousAbortsBeforeReview(t *testing.T) {
	oracle := staticOracle()
	f := newReviewFixture(t, oracle, nil)

	docs := append(completeBatch(), txt("aoa-draft.txt", "This memorandum was resolved."))
	_, err := f.service.Review(context.Background(), driving.ReviewRequest{Documents: docs})

	var amb *domain.AmbiguousClassificationError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, "aoa-draft.txt", amb.DocumentName)
	assert.Zero(t, oracle.Calls())

	runs, _ := f.store.ListRuns(context.Background(), 0)
	assert.Empty(t, runs)
}

func TestReviewService_Review_MalformedAndUnsupportedUploads(t *testing.T) {
	oracle := staticOracle()
	f := newReviewFixture(t, oracle, nil)

	docs := []domain.RawDocument{
		txt("aoa.txt", "Articles."),
		{Name: "broken.txt", MIMEType: domain.MIMETypePlainText, Content: []byte{0xff, 0xfe, 0xfd}},
		{Name: "scan.pdf", MIMEType: "application/pdf", Content: []byte("%PDF")},
	}
	result, err := f.service.Review(context.Background(), driving.ReviewRequest{Documents: docs})
	require.NoError(t, err)

	require.Len(t, result.Documents, 3)
	assert.Equal(t, domain.ReviewOK, result.Documents[0].Review.Status)

	broken := result.Documents[1].Review
	assert.Equal(t, domain.ReviewFailed, broken.Status)
	assert.ErrorIs(t, broken.Cause, domain.ErrMalformedDocument)
	assert.Nil(t, result.Documents[1].Annotated)

	assert.ErrorIs(t, result.Documents[2].Review.Cause, domain.ErrUnsupportedType)

	assert.Equal(t, 1, oracle.Calls())
	assert.False(t, result.Checklist.Satisfied)
	assert.Equal(t, "failed", string(result.Report.Documents[1].Status))
	assert.NotEmpty(t, result.Report.Documents[1].Error)

	runs, _ := f.store.ListRuns(context.Background(), 0)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].FailedCount)
}

func TestReviewService_Review_OneDocumentFailureDoesNotAbort(t *testing.T) {
	oracle := &mockOracle{propose: func(_ context.Context, req driven.OracleRequest, _ int) ([]domain.IssueCandidate, error) {
		if req.Document.Name == "memorandum.txt" {
			return nil, errTransient
		}
		return nil, nil
	}}
	f := newReviewFixture(t, oracle, nil)

	result, err := f.service.Review(context.Background(), driving.ReviewRequest{Documents: completeBatch()})
	require.NoError(t, err)

	assert.Equal(t, domain.ReviewOK, result.Documents[0].Review.Status)
	assert.Equal(t, domain.ReviewFailed, result.Documents[1].Review.Status)
	assert.ErrorIs(t, result.Documents[1].Review.Cause, domain.ErrOracle)
	assert.Equal(t, domain.ReviewOK, result.Documents[2].Review.Status)
}

func TestReviewService_Review_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle := &mockOracle{propose: func(ctx context.Context, _ driven.OracleRequest, call int) ([]domain.IssueCandidate, error) {
		if call == 1 {
			cancel()
			return []domain.IssueCandidate{candidate(nil, "low", "first document finding")}, nil
		}
		return nil, ctx.Err()
	}}
	f := newReviewFixture(t, oracle, func(cfg *ReviewServiceConfig) {
		cfg.Settings.Workers = 1
	})

	result, err := f.service.Review(ctx, driving.ReviewRequest{Documents: completeBatch()})

	assert.ErrorIs(t, err, domain.ErrBatchCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	require.Len(t, result.Documents, 3)

	assert.Equal(t, domain.ReviewOK, result.Documents[0].Review.Status)
	assert.Len(t, result.Documents[0].Review.Issues, 1)
	for _, d := range result.Documents[1:] {
		assert.Equal(t, domain.ReviewFailed, d.Review.Status)
		assert.ErrorIs(t, d.Review.Cause, context.Canceled)
	}
	require.NotNil(t, result.Report)
	assert.Len(t, result.Report.Documents, 3)

	runs, _ := f.store.ListRuns(context.Background(), 0)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Cancelled)
}

func TestReviewService_Review_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	oracle := &mockOracle{propose: func(_ context.Context, _ driven.OracleRequest, _ int) ([]domain.IssueCandidate, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	}}
	f := newReviewFixture(t, oracle, func(cfg *ReviewServiceConfig) {
		cfg.Settings.Workers = 2
	})

	docs := completeBatch()
	for i := 0; i < 5; i++ {
		docs = append(docs, txt("extra-"+string(rune('a'+i))+".txt", "Cover note."))
	}
	result, err := f.service.Review(context.Background(), driving.ReviewRequest{Documents: docs})
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 8, oracle.Calls())
	for i, d := range result.Documents {
		assert.Equal(t, docs[i].Name, d.Review.Name)
	}
	assert.Len(t, result.Checklist.Extra, 5)
}

func TestReviewService_Review_StaleIndexWarning(t *testing.T) {
	corpus := &mockCorpus{snapshot: testSnapshot("s1")}
	embedder := testEmbedder()
	index := newTestIndexService(corpus, embedder, nil, nil)
	_, err := index.Build(context.Background())
	require.NoError(t, err)
	corpus.snapshot = testSnapshot("s2")

	oracle := staticOracle()
	f := newReviewFixture(t, oracle, func(cfg *ReviewServiceConfig) {
		cfg.Index = index
		cfg.Embedder = embedder
	})

	result, err := f.service.Review(context.Background(), driving.ReviewRequest{Documents: completeBatch()})
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "does not match corpus snapshot")
	// The stale index is still used for retrieval.
	for _, req := range oracle.requests {
		assert.NotEmpty(t, req.Context)
	}
}

func TestReviewService_Render(t *testing.T) {
	f := newReviewFixture(t, staticOracle(), nil)
	docs := append(completeBatch(), domain.RawDocument{Name: "scan.pdf", MIMEType: "application/pdf"})

	result, err := f.service.Review(context.Background(), driving.ReviewRequest{Documents: docs})
	require.NoError(t, err)

	files, err := f.service.Render(context.Background(), result)
	require.NoError(t, err)
	require.Len(t, files, 3)
	for _, file := range files {
		assert.True(t, strings.HasPrefix(file.Name, "Reviewed_"))
	}
}

func TestReviewService_History_NoStore(t *testing.T) {
	f := newReviewFixture(t, staticOracle(), func(cfg *ReviewServiceConfig) {
		cfg.Store = nil
	})
	runs, err := f.service.History(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestReviewService_Check(t *testing.T) {
	oracle := staticOracle()
	f := newReviewFixture(t, oracle, nil)

	docs := []domain.RawDocument{
		txt("aoa.txt", "Articles."),
		{Name: "broken.txt", MIMEType: domain.MIMETypePlainText, Content: []byte{0xff, 0xfe}},
	}
	result, err := f.service.Check(context.Background(), driving.ReviewRequest{Documents: docs})
	require.NoError(t, err)

	assert.False(t, result.Satisfied)
	assert.Equal(t, 1, result.Present())
	assert.Zero(t, oracle.Calls())

	runs, _ := f.store.ListRuns(context.Background(), 0)
	assert.Empty(t, runs, "checks are not recorded as runs")
}

func TestReviewService_Check_Errors(t *testing.T) {
	f := newReviewFixture(t, staticOracle(), nil)

	_, err := f.service.Check(context.Background(), driving.ReviewRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.service.Check(context.Background(), driving.ReviewRequest{
		Process:   "liquidation",
		Documents: completeBatch(),
	})
	assert.ErrorIs(t, err, domain.ErrUnknownProcessType)
}
