package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"
	keyLLMProvider   = "llm.provider"
	keyLLMModel      = "llm.model"
	keyLLMBaseURL    = "llm.base_url"
	keyLLMAPIKey     = "llm.api_key"

	keyJurisdiction      = "review.jurisdiction"
	keyProcess           = "review.process"
	keyTopK              = "review.top_k"
	keyMaxContextChunks  = "review.max_context_chunks"
	keyRetrievalScope    = "review.retrieval_scope"
	keyMaxAttempts       = "review.max_attempts"
	keyInitialBackoff    = "review.initial_backoff"
	keyMaxBackoff        = "review.max_backoff"
	keyBackoffMultiplier = "review.backoff_multiplier"
	keyDocumentTimeout   = "review.document_timeout"
	keyWorkers           = "review.workers"
	keyRequestsPerSecond = "review.requests_per_second"
	keyDedupThreshold    = "review.dedup_threshold"

	keyCorpusDir     = "corpus.dir"
	keyIndexDir      = "index.dir"
	keyChunkSize     = "index.chunk_size"
	keyChunkOverlap  = "index.chunk_overlap"
	keyChecklistFile = "checklist.file"
	keyOutputDir     = "output.dir"
)

// keyKind drives parsing in Set.
type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindFloat
	kindDuration
	kindProvider
	kindScope
)

var settingKeys = map[string]keyKind{
	keyEmbedProvider:     kindProvider,
	keyEmbedModel:        kindString,
	keyEmbedBaseURL:      kindString,
	keyEmbedAPIKey:       kindString,
	keyLLMProvider:       kindProvider,
	keyLLMModel:          kindString,
	keyLLMBaseURL:        kindString,
	keyLLMAPIKey:         kindString,
	keyJurisdiction:      kindString,
	keyProcess:           kindString,
	keyTopK:              kindInt,
	keyMaxContextChunks:  kindInt,
	keyRetrievalScope:    kindScope,
	keyMaxAttempts:       kindInt,
	keyInitialBackoff:    kindDuration,
	keyMaxBackoff:        kindDuration,
	keyBackoffMultiplier: kindFloat,
	keyDocumentTimeout:   kindDuration,
	keyWorkers:           kindInt,
	keyRequestsPerSecond: kindFloat,
	keyDedupThreshold:    kindFloat,
	keyCorpusDir:         kindString,
	keyIndexDir:          kindString,
	keyChunkSize:         kindInt,
	keyChunkOverlap:      kindInt,
	keyChecklistFile:     kindString,
	keyOutputDir:         kindString,
}

// apiKeyEnv lists environment variables consulted when no API key is stored.
var apiKeyEnv = map[domain.AIProvider][]string{
	domain.AIProviderOpenAI:    {"OPENAI_API_KEY"},
	domain.AIProviderAnthropic: {"ANTHROPIC_API_KEY"},
	domain.AIProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings. Missing API keys are
// filled from the provider's environment variables.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()
	dr := defaults.Review

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Review: domain.ReviewSettings{
			Jurisdiction:     s.getString(keyJurisdiction, dr.Jurisdiction),
			Process:          domain.ProcessType(s.getString(keyProcess, string(dr.Process))),
			TopK:             s.getInt(keyTopK, dr.TopK),
			MaxContextChunks: s.getInt(keyMaxContextChunks, dr.MaxContextChunks),
			Scope:            s.getScope(dr.Scope),
			Retry: domain.RetryPolicy{
				MaxAttempts:    s.getInt(keyMaxAttempts, dr.Retry.MaxAttempts),
				InitialBackoff: s.getDuration(keyInitialBackoff, dr.Retry.InitialBackoff),
				MaxBackoff:     s.getDuration(keyMaxBackoff, dr.Retry.MaxBackoff),
				Multiplier:     s.getFloat(keyBackoffMultiplier, dr.Retry.Multiplier),
			},
			DocumentTimeout:   s.getDuration(keyDocumentTimeout, dr.DocumentTimeout),
			Workers:           s.getInt(keyWorkers, dr.Workers),
			RequestsPerSecond: s.getFloat(keyRequestsPerSecond, dr.RequestsPerSecond),
			DedupThreshold:    s.getFloat(keyDedupThreshold, dr.DedupThreshold),
		},
		Index: domain.IndexSettings{
			CorpusDir:    s.getString(keyCorpusDir, defaults.Index.CorpusDir),
			Dir:          s.getString(keyIndexDir, defaults.Index.Dir),
			ChunkSize:    s.getInt(keyChunkSize, defaults.Index.ChunkSize),
			ChunkOverlap: s.getInt(keyChunkOverlap, defaults.Index.ChunkOverlap),
		},
		ChecklistFile: s.getString(keyChecklistFile, defaults.ChecklistFile),
		OutputDir:     s.getString(keyOutputDir, defaults.OutputDir),
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.envAPIKey(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.envAPIKey(settings.LLM.Provider)
	}

	return settings, nil
}

// Set parses value according to the key's type and stores it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var stored any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		stored = int64(n)
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		stored = f
	case kindDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s must be a duration such as 30s: %w", domain.ErrInvalidInput, key, err)
		}
		stored = value
	case kindProvider:
		if !domain.AIProvider(value).IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, value)
		}
		if key == keyEmbedProvider && !domain.SupportsEmbeddings(domain.AIProvider(value)) {
			return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, value)
		}
		stored = value
	case kindScope:
		if !domain.RetrievalScope(value).IsValid() {
			return fmt.Errorf("%w: retrieval scope must be %q or %q", domain.ErrInvalidInput, domain.ScopeParagraph, domain.ScopeDocument)
		}
		stored = value
	default:
		stored = value
	}

	if key == keyDedupThreshold && stored.(float64) > 1 {
		return fmt.Errorf("%w: %s must be between 0 and 1", domain.ErrInvalidInput, key)
	}

	if err := s.configStore.Set(key, stored); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys returns the settable configuration keys in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !domain.SupportsEmbeddings(provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.envAPIKey(provider) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	baseURL := ""
	if provider.IsLocal() {
		baseURL = s.getString(keyEmbedBaseURL, "http://localhost:11434")
	}

	return s.setAll(map[string]any{
		keyEmbedProvider: provider.String(),
		keyEmbedModel:    model,
		keyEmbedBaseURL:  baseURL,
		keyEmbedAPIKey:   apiKey,
	})
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.envAPIKey(provider) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}
	baseURL := ""
	if provider.IsLocal() {
		baseURL = s.getString(keyLLMBaseURL, "http://localhost:11434")
	}

	return s.setAll(map[string]any{
		keyLLMProvider: provider.String(),
		keyLLMModel:    model,
		keyLLMBaseURL:  baseURL,
		keyLLMAPIKey:   apiKey,
	})
}

func (s *SettingsService) setAll(values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.configStore.Set(k, values[k]); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getScope(defaultVal domain.RetrievalScope) domain.RetrievalScope {
	scope := domain.RetrievalScope(s.configStore.GetString(keyRetrievalScope))
	if !scope.IsValid() {
		return defaultVal
	}
	return scope
}

func (s *SettingsService) envAPIKey(provider domain.AIProvider) string {
	for _, name := range apiKeyEnv[provider] {
		if v := s.getenv(name); v != "" {
			return v
		}
	}
	return ""
}
