package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/core/ports/driving"
)

// mockReviewService is a mock implementation of driving.ReviewService.
type mockReviewService struct {
	result    *driving.ReviewResult
	reviewErr error
	check     *domain.ChecklistResult
	checkErr  error
	runs      []domain.ReviewRun
	files     []driven.RenderedFile

	lastRequest driving.ReviewRequest
	lastLimit   int
	rendered    bool
}

func (m *mockReviewService) Review(_ context.Context, req driving.ReviewRequest) (*driving.ReviewResult, error) {
	m.lastRequest = req
	return m.result, m.reviewErr
}

func (m *mockReviewService) Check(_ context.Context, req driving.ReviewRequest) (*domain.ChecklistResult, error) {
	m.lastRequest = req
	return m.check, m.checkErr
}

func (m *mockReviewService) History(_ context.Context, limit int) ([]domain.ReviewRun, error) {
	m.lastLimit = limit
	return m.runs, nil
}

func (m *mockReviewService) Render(_ context.Context, _ *driving.ReviewResult) ([]driven.RenderedFile, error) {
	m.rendered = true
	return m.files, nil
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	index    *mockKnowledgeIndex
	results  []domain.ScoredChunk
	freshErr error
	buildErr error

	built bool
	lastK int
}

func (m *mockIndexService) Build(_ context.Context) (*domain.IndexManifest, error) {
	m.built = true
	if m.buildErr != nil {
		return nil, m.buildErr
	}
	manifest := m.index.manifest
	return &manifest, nil
}

func (m *mockIndexService) Load(_ context.Context) error {
	return nil
}

func (m *mockIndexService) Current() driven.KnowledgeIndex {
	return m.index
}

func (m *mockIndexService) CheckFreshness(_ context.Context) error {
	return m.freshErr
}

func (m *mockIndexService) Query(_ context.Context, _ string, k int) ([]domain.ScoredChunk, error) {
	m.lastK = k
	return m.results, nil
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
	for _, def := range m.definitions {
		if def.Process == process {
			return def, nil
		}
	}
	return domain.ChecklistDefinition{}, domain.ErrUnknownProcessType
}

func (m *mockChecklistService) Definitions() []domain.ChecklistDefinition {
	return m.definitions
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings domain.AppSettings
	set      map[string]string
	setErr   error

	embeddingProvider domain.AIProvider
	embeddingModel    string
	llmProvider       domain.AIProvider
	llmModel          string
	llmKey            string
	validateErr       error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.set == nil {
		m.set = make(map[string]string)
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, _ string) error {
	m.embeddingProvider = provider
	m.embeddingModel = model
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.llmProvider = provider
	m.llmModel = model
	m.llmKey = apiKey
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return []string{"corpus.dir", "output.dir", "review.workers"}
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return m.validateErr
}

func (m *mockSettingsService) ValidateLLMConfig() error {
	return m.validateErr
}

var errMockFailure = errors.New("mock failure")

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	review    *mockReviewService
	index     *mockIndexService
	checklist *mockChecklistService
	settings  *mockSettingsService
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

func sampleResult() *driving.ReviewResult {
	suggestion := "Refer to ADGM Courts"
	return &driving.ReviewResult{
		RunID:      "run-1",
		Definition: incorporation(),
		Checklist: &domain.ChecklistResult{
			Process:  "incorporation",
			Required: 2,
			Missing:  []domain.Category{"Board Resolution"},
			Classified: map[string]domain.Category{
				"doc-1": "Articles of Association",
			},
		},
		Documents: []driving.DocumentResult{
			{Review: domain.DocumentReview{DocumentID: "doc-1", Notes: []string{"location_fallback: paragraph 0: excerpt not found"}}},
		},
		Report: &domain.Report{
			Version:     domain.ReportVersion,
			ProcessType: "incorporation",
			Checklist:   domain.ReportChecklist{Missing: []string{"Board Resolution"}, Extra: []string{}},
			Documents: []domain.ReportDocument{{
				DocumentID: "doc-1",
				Name:       "articles.txt",
				Status:     domain.ReviewOK,
				Issues: []domain.ReportIssue{{
					ParagraphIndex: domain.IntPtr(0),
					Severity:       "high",
					Description:    "Jurisdiction is not ADGM",
					Suggestion:     &suggestion,
				}},
			}},
			Summary: domain.ReportSummary{BySeverity: domain.SeverityCounts{High: 1}},
		},
		Warnings: []string{"index is stale"},
	}
}

// setupTestServices installs fresh mocks and returns them with a cleanup
// that restores the previous services and flag values.
func setupTestServices() (*testServices, func()) {
	settings := domain.DefaultAppSettings()
	settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text", BaseURL: "http://localhost:11434"}
	settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOpenAI, Model: "gpt-4o-mini", APIKey: "sk-test-1234567890"}
	settings.Index.CorpusDir = "/data/regulations"

	ts := &testServices{
		review: &mockReviewService{
			result: sampleResult(),
			files:  []driven.RenderedFile{{Name: "Reviewed_articles.txt", Content: []byte("annotated")}},
		},
		index: &mockIndexService{index: &mockKnowledgeIndex{
			size: 42,
			manifest: domain.IndexManifest{
				SnapshotID:     "snap-1",
				EmbeddingModel: "nomic-embed-text",
				Dimensions:     768,
				ChunkSize:      1000,
				ChunkOverlap:   150,
				ChunkCount:     42,
				SourceCount:    3,
				BuiltAt:        time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
			},
		}},
		checklist: &mockChecklistService{definitions: []domain.ChecklistDefinition{incorporation()}},
		settings:  &mockSettingsService{settings: settings},
	}

	prev := Services{
		Review:      reviewService,
		Index:       indexService,
		Checklist:   checklistService,
		Settings:    settingsService,
		Metrics:     metricsHandler,
		WatchCorpus: watchCorpus,
	}
	prevInput := settingsInput

	SetServices(Services{
		Review:    ts.review,
		Index:     ts.index,
		Checklist: ts.checklist,
		Settings:  ts.settings,
	})

	return ts, func() {
		SetServices(prev)
		settingsInput = prevInput
		resetFlags()
	}
}

func resetFlags() {
	reviewProcess, reviewOut, reviewJSON, reviewNoRender = "", "", false, false
	indexQueryLimit, indexQueryJSON = 5, false
	historyLimit, historyJSON = 10, false
	checklistProcess = ""
	verbose = false
}

// writeUpload creates a file under dir and returns its path.
func writeUpload(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
