package services

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docreview/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docreview/internal/core/domain"
)

func newTestSettingsService(env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)
	service.getenv = func(key string) string { return env[key] }
	return service, store
}

func TestNewSettingsService(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Review, settings.Review)
	assert.Equal(t, defaults.Index, settings.Index)
	assert.Equal(t, defaults.OutputDir, settings.OutputDir)
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.LLM.Provider, settings.LLM.Provider)
}

func TestSettingsService_Set_StoresTypedValues(t *testing.T) {
	service, store := newTestSettingsService(nil)

	require.NoError(t, service.Set("review.top_k", "8"))
	require.NoError(t, service.Set("review.dedup_threshold", "0.9"))
	require.NoError(t, service.Set("review.document_timeout", "90s"))
	require.NoError(t, service.Set("review.retrieval_scope", "document"))
	require.NoError(t, service.Set("review.jurisdiction", "DIFC"))
	require.NoError(t, service.Set("index.chunk_size", "500"))
	require.NoError(t, service.Set("corpus.dir", "/data/regs"))
	require.NoError(t, service.Set("llm.provider", "anthropic"))

	v, ok := store.Get("review.top_k")
	require.True(t, ok)
	assert.Equal(t, int64(8), v)

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 8, settings.Review.TopK)
	assert.InDelta(t, 0.9, settings.Review.DedupThreshold, 1e-9)
	assert.Equal(t, 90*time.Second, settings.Review.DocumentTimeout)
	assert.Equal(t, domain.ScopeDocument, settings.Review.Scope)
	assert.Equal(t, "DIFC", settings.Review.Jurisdiction)
	assert.Equal(t, 500, settings.Index.ChunkSize)
	assert.Equal(t, "/data/regs", settings.Index.CorpusDir)
	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
}

func TestSettingsService_Set_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown key", key: "search.mode", value: "hybrid"},
		{name: "non-integer", key: "review.workers", value: "four"},
		{name: "negative integer", key: "review.top_k", value: "-1"},
		{name: "non-number", key: "review.requests_per_second", value: "fast"},
		{name: "bad duration", key: "review.max_backoff", value: "30"},
		{name: "bad scope", key: "review.retrieval_scope", value: "sentence"},
		{name: "unknown provider", key: "llm.provider", value: "acme"},
		{name: "embedding unsupported", key: "embedding.provider", value: "anthropic"},
		{name: "threshold above one", key: "review.dedup_threshold", value: "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store := newTestSettingsService(nil)
			err := service.Set(tt.key, tt.value)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			_, exists := store.Get(tt.key)
			assert.False(t, exists)
		})
	}
}

func TestSettingsService_Get_InvalidStoredValuesReturnDefaults(t *testing.T) {
	service, store := newTestSettingsService(nil)
	_ = store.Set("embedding.provider", "invalid_provider")
	_ = store.Set("review.retrieval_scope", "sentence")
	_ = store.Set("review.initial_backoff", "soon")

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.Review.Scope, settings.Review.Scope)
	assert.Equal(t, defaults.Review.Retry.InitialBackoff, settings.Review.Retry.InitialBackoff)
}

func TestSettingsService_Get_APIKeyFromEnvironment(t *testing.T) {
	service, store := newTestSettingsService(map[string]string{
		"OPENAI_API_KEY": "sk-env",
		"GOOGLE_API_KEY": "g-env",
	})
	_ = store.Set("embedding.provider", "gemini")
	_ = store.Set("llm.provider", "openai")

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, "g-env", settings.Embedding.APIKey)
	assert.Equal(t, "sk-env", settings.LLM.APIKey)

	_ = store.Set("llm.api_key", "sk-stored")
	settings, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-stored", settings.LLM.APIKey, "stored key wins")
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	t.Run("openai default model", func(t *testing.T) {
		service, _ := newTestSettingsService(nil)
		require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOpenAI, "", "sk-test"))

		settings, err := service.Get()
		require.NoError(t, err)
		assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
		assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
		assert.Equal(t, "sk-test", settings.Embedding.APIKey)
		assert.Empty(t, settings.Embedding.BaseURL)
	})

	t.Run("ollama gets local base url", func(t *testing.T) {
		service, _ := newTestSettingsService(nil)
		require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOllama, "all-minilm", ""))

		settings, err := service.Get()
		require.NoError(t, err)
		assert.Equal(t, "all-minilm", settings.Embedding.Model)
		assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
	})

	t.Run("anthropic has no embeddings", func(t *testing.T) {
		service, _ := newTestSettingsService(nil)
		assert.Error(t, service.SetEmbeddingProvider(domain.AIProviderAnthropic, "", "key"))
	})

	t.Run("missing api key", func(t *testing.T) {
		service, _ := newTestSettingsService(nil)
		assert.Error(t, service.SetEmbeddingProvider(domain.AIProviderGemini, "", ""))
	})

	t.Run("api key from environment", func(t *testing.T) {
		service, _ := newTestSettingsService(map[string]string{"GEMINI_API_KEY": "env"})
		assert.NoError(t, service.SetEmbeddingProvider(domain.AIProviderGemini, "", ""))
	})
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	require.NoError(t, service.SetLLMProvider(domain.AIProviderAnthropic, "", "sk-ant"))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderAnthropic], settings.LLM.Model)

	assert.Error(t, service.SetLLMProvider("acme", "", ""))
	assert.Error(t, service.SetLLMProvider(domain.AIProviderOpenAI, "", ""))
}

func TestSettingsService_Keys(t *testing.T) {
	service, _ := newTestSettingsService(nil)
	keys := service.Keys()

	assert.True(t, sort.StringsAreSorted(keys))
	for _, k := range []string{"review.workers", "review.max_attempts", "index.dir", "checklist.file", "output.dir", "llm.api_key"} {
		assert.Contains(t, keys, k)
	}
}

func TestSettingsService_GetDefaults(t *testing.T) {
	service, _ := newTestSettingsService(nil)
	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}

// Mock AIConfigValidator for testing
type mockAIConfigValidator struct {
	embedErr error
	llmErr   error
}

func (m *mockAIConfigValidator) ValidateEmbedding(_ *domain.EmbeddingSettings) error {
	return m.embedErr
}

func (m *mockAIConfigValidator) ValidateLLM(_ *domain.LLMSettings) error {
	return m.llmErr
}

func TestSettingsService_ValidateConfig(t *testing.T) {
	store := memory.NewConfigStore()

	assert.NoError(t, NewSettingsService(store, nil).ValidateEmbeddingConfig())
	assert.NoError(t, NewSettingsService(store, nil).ValidateLLMConfig())

	ok := NewSettingsService(store, &mockAIConfigValidator{})
	assert.NoError(t, ok.ValidateEmbeddingConfig())
	assert.NoError(t, ok.ValidateLLMConfig())

	failing := NewSettingsService(store, &mockAIConfigValidator{embedErr: assert.AnError, llmErr: assert.AnError})
	assert.ErrorIs(t, failing.ValidateEmbeddingConfig(), assert.AnError)
	assert.ErrorIs(t, failing.ValidateLLMConfig(), assert.AnError)
}
