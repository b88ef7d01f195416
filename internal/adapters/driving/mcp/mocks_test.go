package mcp

import (
	"context"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/core/ports/driving"
)

// mockReviewService is a mock implementation of driving.ReviewService.
type mockReviewService struct {
	result    *driving.ReviewResult
	checklist *domain.ChecklistResult
	runs      []domain.ReviewRun
	files     []driven.RenderedFile
	err       error
	renderErr error

	lastRequest driving.ReviewRequest
}

func (m *mockReviewService) Review(_ context.Context, req driving.ReviewRequest) (*driving.ReviewResult, error) {
	m.lastRequest = req
	return m.result, m.err
}

func (m *mockReviewService) Check(_ context.Context, req driving.ReviewRequest) (*domain.ChecklistResult, error) {
	m.lastRequest = req
	return m.checklist, m.err
}

func (m *mockReviewService) History(_ context.Context, _ int) ([]domain.ReviewRun, error) {
	return m.runs, m.err
}

func (m *mockReviewService) Render(_ context.Context, _ *driving.ReviewResult) ([]driven.RenderedFile, error) {
	return m.files, m.renderErr
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	index   *mockKnowledgeIndex
	results []domain.ScoredChunk
	err     error

	lastK int
}

func (m *mockIndexService) Build(_ context.Context) (*domain.IndexManifest, error) {
	manifest := m.index.manifest
	return &manifest, m.err
}

func (m *mockIndexService) Load(_ context.Context) error {
	return m.err
}

func (m *mockIndexService) Current() driven.KnowledgeIndex {
	return m.index
}

func (m *mockIndexService) CheckFreshness(_ context.Context) error {
	return m.err
}

func (m *mockIndexService) Query(_ context.Context, _ string, k int) ([]domain.ScoredChunk, error) {
	m.lastK = k
	return m.results, m.err
}

// mockKnowledgeIndex is a mock implementation of driven.KnowledgeIndex.
type mockKnowledgeIndex struct {
	manifest domain.IndexManifest
	size     int
}

func (m *mockKnowledgeIndex) Query(_ context.Context, _ []float32, _ int) ([]domain.ScoredChunk, error) {
	return nil, nil
}

func (m *mockKnowledgeIndex) Len() int {
	return m.size
}

func (m *mockKnowledgeIndex) Manifest() domain.IndexManifest {
	return m.manifest
}

// mockChecklistService is a mock implementation of driving.ChecklistService.
type mockChecklistService struct {
	definitions []domain.ChecklistDefinition
}

func (m *mockChecklistService) Evaluate(_ domain.ProcessType, _ []*domain.Document) (*domain.ChecklistResult, error) {
	return nil, nil
}

func (m *mockChecklistService) Definition(process domain.ProcessType) (domain.ChecklistDefinition, error) {
	for _, d := range m.definitions {
		if d.Process == process {
			return d, nil
		}
	}
	return domain.ChecklistDefinition{}, domain.ErrUnknownProcessType
}

func (m *mockChecklistService) Definitions() []domain.ChecklistDefinition {
	return m.definitions
}

func incorporation() domain.ChecklistDefinition {
	return domain.ChecklistDefinition{
		Process: "incorporation",
		Title:   "Company Incorporation",
		Categories: []domain.CategoryRule{
			{Category: "Articles of Association", Predicate: domain.Predicate{Keywords: []string{"articles"}, Target: domain.TargetFilename}},
			{Category: "Board Resolution", Predicate: domain.Predicate{Pattern: `(?i)\bresolved\b`}},
		},
	}
}
