// Command docreview reviews batches of corporate documents against a
// process checklist and a regulatory corpus.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/docreview/internal/adapters/driven/ai"
	"github.com/custodia-labs/docreview/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docreview/internal/adapters/driven/metrics/prometheus"
	llmoracle "github.com/custodia-labs/docreview/internal/adapters/driven/oracle/llm"
	docxrender "github.com/custodia-labs/docreview/internal/adapters/driven/render/docx"
	textrender "github.com/custodia-labs/docreview/internal/adapters/driven/render/plaintext"
	"github.com/custodia-labs/docreview/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docreview/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/docreview/internal/adapters/driving/cli"
	"github.com/custodia-labs/docreview/internal/connectors/filesystem"
	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/core/services"
	"github.com/custodia-labs/docreview/internal/logger"
	"github.com/custodia-labs/docreview/internal/postprocessors"
	"github.com/custodia-labs/docreview/internal/segmenters"
	docxseg "github.com/custodia-labs/docreview/internal/segmenters/docx"
	textseg "github.com/custodia-labs/docreview/internal/segmenters/plaintext"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// A missing .env is fine; keys may come from the environment or config.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("loading .env: %v", err)
	}

	home, err := file.HomeDir()
	if err != nil {
		return err
	}

	configStore, err := file.NewConfigStore(home)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	checklistService, err := services.NewChecklistService(file.NewChecklistLoader(settings.ChecklistFile))
	if err != nil {
		return err
	}

	indexDir := settings.Index.Dir
	if indexDir == "" {
		indexDir = filepath.Join(home, "index")
	}
	store, err := sqlite.NewStore(indexDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	registry := segmenters.NewRegistry(docxseg.New(), textseg.New())
	metrics := prometheus.New()

	embedder, oracle, closeAI := connectAI(home, settings)
	defer closeAI()

	pipeline, err := postprocessors.DefaultPipeline(settings.Index)
	if err != nil {
		return fmt.Errorf("build chunking pipeline: %w", err)
	}

	var corpus driven.CorpusSource
	if settings.Index.CorpusDir != "" {
		corpus = filesystem.New(settings.Index.CorpusDir, registry)
	}

	indexService := services.NewIndexService(services.IndexServiceConfig{
		Corpus:   corpus,
		Pipeline: pipeline,
		Embedder: embedder,
		Builder:  flat.Builder{},
		Store:    store.IndexStore(),
		Metrics:  metrics,
		Settings: settings.Index,
	})
	if err := indexService.Load(ctx); err != nil {
		logger.Warn("loading knowledge index: %v", err)
	}

	reviewService := services.NewReviewService(services.ReviewServiceConfig{
		Segmenters: registry,
		Checklists: checklistService,
		Index:      indexService,
		Embedder:   embedder,
		Oracle:     oracle,
		Renderers:  []driven.Renderer{docxrender.New(), textrender.New()},
		Store:      store.ReviewStore(),
		Metrics:    metrics,
		Settings:   settings.Review,
	})

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Review:    reviewService,
		Index:     indexService,
		Checklist: checklistService,
		Settings:  settingsService,
		Metrics:   metrics.Handler(),
		WatchCorpus: func(ctx context.Context) error {
			if settings.Index.CorpusDir == "" {
				return errors.New("corpus.dir is not set")
			}
			return indexService.Watch(ctx, filesystem.NewWatcher(settings.Index.CorpusDir, 0))
		},
	})

	return cli.Execute(ctx)
}

// connectAI creates the configured providers without pinging them, so
// commands that never reach a provider stay fast and work offline.
// Unconfigured or broken providers are left nil and reported once.
func connectAI(home string, settings *domain.AppSettings) (driven.EmbeddingService, driven.FindingsOracle, func()) {
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Debug("closing AI provider: %v", err)
			}
		}
	}

	var embedder driven.EmbeddingService
	if settings.Embedding.IsConfigured() {
		svc, err := ai.CreateEmbeddingService(&settings.Embedding)
		if err != nil {
			logger.Warn("embedding provider unavailable: %v", err)
		} else if svc != nil {
			embedder = svc
			closers = append(closers, svc.Close)
		}
	}

	var oracle driven.FindingsOracle
	if settings.LLM.IsConfigured() {
		llm, err := ai.CreateLLMService(&settings.LLM)
		switch {
		case err != nil:
			logger.Warn("LLM provider unavailable: %v", err)
		case llm != nil:
			closers = append(closers, llm.Close)
			o := llmoracle.New(llm)
			prompts, err := file.NewPromptStore(filepath.Join(home, "prompts"))
			if err != nil {
				logger.Warn("prompt overrides disabled: %v", err)
			} else {
				o.SetPromptStore(prompts)
			}
			oracle = o
		}
	}

	return embedder, oracle, closeAll
}
