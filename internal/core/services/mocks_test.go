package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingService. Texts listed in vectors
// get that vector; every other text gets fallback.
type mockEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
	model    string
	calls    atomic.Int32
}

func (m *mockEmbedder) vector(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	if m.fallback != nil {
		return m.fallback
	}
	return []float32{1, 0}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return len(m.vector("")) }

func (m *mockEmbedder) ModelName() string {
	if m.model != "" {
		return m.model
	}
	return "mock-embed"
}

func (m *mockEmbedder) Ping(_ context.Context) error { return nil }

func (m *mockEmbedder) Close() error { return nil }

// mockOracle implements driven.FindingsOracle with a scripted response function.
type mockOracle struct {
	propose func(ctx context.Context, req driven.OracleRequest, call int) ([]domain.IssueCandidate, error)

	mu       sync.Mutex
	calls    int
	requests []driven.OracleRequest
}

func (m *mockOracle) ProposeIssues(ctx context.Context, req driven.OracleRequest) ([]domain.IssueCandidate, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.propose == nil {
		return nil, nil
	}
	return m.propose(ctx, req, call)
}

func (m *mockOracle) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// replyLLM implements driven.LLMService with a fixed chat reply.
type replyLLM struct {
	reply string
}

func (m *replyLLM) Generate(context.Context, string, driven.GenerateOptions) (string, error) {
	return m.reply, nil
}

func (m *replyLLM) Chat(context.Context, []driven.ChatMessage, driven.ChatOptions) (string, error) {
	return m.reply, nil
}

func (m *replyLLM) ModelName() string          { return "reply-llm" }
func (m *replyLLM) Ping(context.Context) error { return nil }
func (m *replyLLM) Close() error               { return nil }

// staticOracle returns the same candidates for every call.
func staticOracle(cands ...domain.IssueCandidate) *mockOracle {
	return &mockOracle{propose: func(_ context.Context, _ driven.OracleRequest, _ int) ([]domain.IssueCandidate, error) {
		return append([]domain.IssueCandidate(nil), cands...), nil
	}}
}

// failingOracle fails the first n calls with err, then returns cands.
func failingOracle(n int, err error, cands ...domain.IssueCandidate) *mockOracle {
	return &mockOracle{propose: func(_ context.Context, _ driven.OracleRequest, call int) ([]domain.IssueCandidate, error) {
		if call <= n {
			return nil, err
		}
		return append([]domain.IssueCandidate(nil), cands...), nil
	}}
}

// mockMetrics implements driven.ReviewMetrics and records observations.
type mockMetrics struct {
	mu        sync.Mutex
	documents map[domain.ReviewStatus]int
	oracle    map[string]int
	rejected  int
	batches   int
	builds    int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		documents: make(map[domain.ReviewStatus]int),
		oracle:    make(map[string]int),
	}
}

func (m *mockMetrics) ObserveDocument(status domain.ReviewStatus, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[status]++
}

func (m *mockMetrics) ObserveOracleCall(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oracle[outcome]++
}

func (m *mockMetrics) ObserveRejectedCandidates(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected += n
}

func (m *mockMetrics) ObserveBatch(_ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
}

func (m *mockMetrics) ObserveIndexBuild(_ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds++
}

// mockCorpus implements driven.CorpusSource.
type mockCorpus struct {
	mu       sync.Mutex
	snapshot *domain.CorpusSnapshot
	err      error

	// started receives once Snapshot is entered; block holds it there.
	started chan struct{}
	block   chan struct{}
}

// Snapshot reads the corpus state on entry, before any blocking.
func (m *mockCorpus) Snapshot(ctx context.Context) (*domain.CorpusSnapshot, error) {
	m.mu.Lock()
	snapshot, snapErr := m.snapshot, m.err
	m.mu.Unlock()

	if m.started != nil {
		select {
		case m.started <- struct{}{}:
		default:
		}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if snapErr != nil {
		return nil, snapErr
	}
	return snapshot, nil
}

func (m *mockCorpus) setSnapshot(snapshot *domain.CorpusSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snapshot
}

func (m *mockCorpus) Root() string { return "mock-corpus" }

// mockPipeline implements driven.PostProcessorPipeline, one chunk per file.
type mockPipeline struct{}

func (mockPipeline) Process(_ context.Context, file *domain.CorpusFile) ([]domain.Chunk, error) {
	return []domain.Chunk{{SourceID: file.Path, Ordinal: 0, Text: file.Text}}, nil
}

// mockWatcher implements driven.CorpusWatcher and fires once per signal.
type mockWatcher struct {
	changes chan struct{}
}

func (m *mockWatcher) Watch(ctx context.Context, onChange func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-m.changes:
			if !ok {
				return nil
			}
			onChange()
		}
	}
}

func (m *mockWatcher) Close() error { return nil }

// mockRenderer implements driven.Renderer.
type mockRenderer struct {
	mimeTypes []string
	err       error
}

func (m *mockRenderer) SupportedMIMETypes() []string { return m.mimeTypes }

func (m *mockRenderer) Render(_ context.Context, doc *domain.AnnotatedDocument) ([]driven.RenderedFile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []driven.RenderedFile{{Name: "Reviewed_" + doc.Name, Content: []byte(doc.Name)}}, nil
}

// mockChecklistSource implements driven.ChecklistSource.
type mockChecklistSource struct {
	defs []domain.ChecklistDefinition
	err  error
}

func (m *mockChecklistSource) Load() ([]domain.ChecklistDefinition, error) {
	return m.defs, m.err
}

var errTransient = errors.New("transient oracle failure")

// --- Test helpers ---

// newTestDoc builds a plain-text document with one run per paragraph.
func newTestDoc(name string, paragraphs ...string) *domain.Document {
	doc := &domain.Document{
		ID:       "id-" + name,
		Name:     name,
		MIMEType: domain.MIMETypePlainText,
	}
	offset := 0
	for i, text := range paragraphs {
		p := domain.Paragraph{
			Index: i,
			Text:  text,
			Span:  domain.ByteSpan{Start: offset, End: offset + len(text)},
		}
		if text != "" {
			p.Runs = []domain.Run{{Start: 0, End: len(text)}}
		}
		doc.Paragraphs = append(doc.Paragraphs, p)
		offset += len(text) + 2
	}
	return doc
}

func candidate(para *int, severity, description string) domain.IssueCandidate {
	return domain.IssueCandidate{ParagraphIndex: para, Severity: severity, Description: description}
}

// fastSettings returns review settings with millisecond backoff.
func fastSettings() domain.ReviewSettings {
	s := domain.DefaultAppSettings().Review
	s.Retry.InitialBackoff = time.Millisecond
	s.Retry.MaxBackoff = 5 * time.Millisecond
	s.RequestsPerSecond = 0
	s.DocumentTimeout = 5 * time.Second
	return s
}
