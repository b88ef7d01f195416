package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/core/ports/driving"
	"github.com/custodia-labs/docreview/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// IndexService owns the live knowledge index. Readers take an immutable
// snapshot with Current; a single writer builds a replacement and swaps it
// in atomically, so in-flight reviews never see a partial index.
type IndexService struct {
	corpus   driven.CorpusSource
	pipeline driven.PostProcessorPipeline
	embedder driven.EmbeddingService
	builder  driven.IndexBuilder
	store    driven.IndexStore
	metrics  driven.ReviewMetrics
	settings domain.IndexSettings

	buildMu sync.Mutex
	current atomic.Pointer[indexSnapshot]
}

// indexSnapshot boxes the interface for atomic.Pointer.
type indexSnapshot struct {
	index driven.KnowledgeIndex
}

// IndexServiceConfig holds the collaborators of an IndexService.
// Embedder, Store and Metrics may be nil.
type IndexServiceConfig struct {
	Corpus   driven.CorpusSource
	Pipeline driven.PostProcessorPipeline
	Embedder driven.EmbeddingService
	Builder  driven.IndexBuilder
	Store    driven.IndexStore
	Metrics  driven.ReviewMetrics
	Settings domain.IndexSettings
}

// NewIndexService creates an index service holding an empty index.
func NewIndexService(cfg IndexServiceConfig) *IndexService {
	s := &IndexService{
		corpus:   cfg.Corpus,
		pipeline: cfg.Pipeline,
		embedder: cfg.Embedder,
		builder:  cfg.Builder,
		store:    cfg.Store,
		metrics:  cfg.Metrics,
		settings: cfg.Settings,
	}
	s.current.Store(&indexSnapshot{index: cfg.Builder.Empty()})
	return s
}

// Current returns the live index snapshot.
func (s *IndexService) Current() driven.KnowledgeIndex {
	return s.current.Load().index
}

// Build reads the corpus, chunks and embeds it, persists the result and
// swaps it in. Concurrent builds are rejected with ErrIndexBuildInProgress.
func (s *IndexService) Build(ctx context.Context) (*domain.IndexManifest, error) {
	if !s.buildMu.TryLock() {
		return nil, domain.ErrIndexBuildInProgress
	}
	defer s.buildMu.Unlock()
	return s.build(ctx)
}

// buildAfterCurrent waits for any running build, then builds again.
func (s *IndexService) buildAfterCurrent(ctx context.Context) (*domain.IndexManifest, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	return s.build(ctx)
}

// build does the work of Build. The caller holds buildMu.
func (s *IndexService) build(ctx context.Context) (*domain.IndexManifest, error) {

	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.corpus == nil || s.pipeline == nil {
		return nil, fmt.Errorf("%w: no corpus configured", domain.ErrInvalidInput)
	}

	start := time.Now()
	logger.Section("Index Build")

	snapshot, err := s.corpus.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	logger.Info("corpus %s: %d file(s), snapshot %s", s.corpus.Root(), len(snapshot.Files), snapshot.ID)

	var chunks []domain.Chunk
	for i := range snapshot.Files {
		fileChunks, err := s.pipeline.Process(ctx, &snapshot.Files[i])
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", snapshot.Files[i].Path, err)
		}
		chunks = append(chunks, fileChunks...)
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed corpus: %w", err)
		}
		if len(vectors) != len(chunks) {
			return nil, fmt.Errorf("embed corpus: got %d vectors for %d chunks", len(vectors), len(chunks))
		}
		for i := range chunks {
			chunks[i].Vector = vectors[i]
		}
	}

	manifest := domain.IndexManifest{
		SnapshotID:     snapshot.ID,
		EmbeddingModel: s.embedder.ModelName(),
		ChunkSize:      s.settings.ChunkSize,
		ChunkOverlap:   s.settings.ChunkOverlap,
		SourceCount:    len(snapshot.Files),
		BuiltAt:        time.Now().UTC(),
	}

	idx, err := s.builder.Build(chunks, manifest)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	manifest = idx.Manifest()

	if s.store != nil {
		if err := s.store.SaveIndex(ctx, manifest, chunks); err != nil {
			return nil, fmt.Errorf("persist index: %w", err)
		}
	}

	s.current.Store(&indexSnapshot{index: idx})

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveIndexBuild(idx.Len(), elapsed)
	}
	logger.Info("index swapped in: %d chunk(s), %d dimension(s), %s", idx.Len(), manifest.Dimensions, elapsed.Round(time.Millisecond))

	return &manifest, nil
}

// Load restores the persisted index, if any.
func (s *IndexService) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	manifest, chunks, err := s.store.LoadIndex(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("no persisted index")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	idx, err := s.builder.Build(chunks, *manifest)
	if err != nil {
		return fmt.Errorf("restore index: %w", err)
	}
	s.current.Store(&indexSnapshot{index: idx})
	logger.Debug("restored index %s with %d chunk(s)", manifest.SnapshotID, idx.Len())
	return nil
}

// CheckFreshness compares the live manifest with the corpus and the
// configured embedding model.
func (s *IndexService) CheckFreshness(ctx context.Context) error {
	manifest := s.Current().Manifest()

	if s.embedder != nil && manifest.EmbeddingModel != "" && manifest.EmbeddingModel != s.embedder.ModelName() {
		return &domain.IndexStaleError{
			IndexSnapshot: manifest.SnapshotID,
			IndexModel:    manifest.EmbeddingModel,
			CurrentModel:  s.embedder.ModelName(),
		}
	}

	if s.corpus == nil {
		return nil
	}
	snapshot, err := s.corpus.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}
	if snapshot.ID != manifest.SnapshotID {
		return &domain.IndexStaleError{
			IndexSnapshot:  manifest.SnapshotID,
			CorpusSnapshot: snapshot.ID,
			IndexModel:     manifest.EmbeddingModel,
			CurrentModel:   manifest.EmbeddingModel,
		}
	}
	return nil
}

// Query embeds text and searches the live index.
func (s *IndexService) Query(ctx context.Context, text string, k int) ([]domain.ScoredChunk, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	idx := s.Current()
	if idx.Len() == 0 {
		return []domain.ScoredChunk{}, nil
	}
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return idx.Query(ctx, vector, k)
}

// Watch rebuilds the index whenever the watcher reports a corpus change.
// Rebuilds run one at a time; changes arriving during a rebuild, or during
// a Build started elsewhere, queue a single follow-up rebuild. Build
// failures are logged; the previous index stays live.
func (s *IndexService) Watch(ctx context.Context, watcher driven.CorpusWatcher) error {
	pending := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range pending {
			if ctx.Err() != nil {
				continue
			}
			logger.Info("corpus changed, rebuilding index")
			if _, err := s.buildAfterCurrent(ctx); err != nil {
				logger.Error("index rebuild failed: %v", err)
			}
		}
	}()

	err := watcher.Watch(ctx, func() {
		select {
		case pending <- struct{}{}:
		default:
			logger.Debug("rebuild already pending")
		}
	})
	close(pending)
	<-done
	return err
}
