package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OLLAMA_BASE_URL", "")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
server:
  host: "127.0.0.1"
  port: 9000
  max_upload_mb: 10

llm:
  provider: "ollama"
  model: "mistral"
  base_url: "http://localhost:11434"
  max_tokens: 500
  temperature: 0.5
  request_timeout: 30

embedding:
  provider: "ollama"
  model: "nomic-embed-text:latest"
  batch_size: 50
  rate_limit: 2.5

store:
  backend: "pgvector"
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 768

processor:
  chunk_size: 500
  chunk_overlap: 100

retrieval:
  top_k: 3
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "mistral", config.LLM.Model)
	assert.Equal(t, 500, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, 30, config.LLM.RequestTimeout)
	assert.Equal(t, 50, config.Embedding.BatchSize)
	assert.Equal(t, "pgvector", config.Store.Backend)
	assert.Equal(t, "postgres://localhost:5432/test", config.Store.URL)
	assert.Equal(t, 768, config.Store.VectorDim)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 3, config.Retrieval.TopK)
}

func TestLoadConfig_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  provider: ollama\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8000, config.Server.Port)
	assert.Equal(t, 50, config.Server.MaxUploadMB)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.3, config.LLM.Temperature)
	assert.Equal(t, 120, config.LLM.RequestTimeout)
	assert.Equal(t, 60, config.Embedding.RequestTimeout)
	// The embedding provider follows the chat provider when unset.
	assert.Equal(t, "ollama", config.Embedding.Provider)
	assert.Equal(t, 100, config.Embedding.BatchSize)
	assert.Equal(t, "memory", config.Store.Backend)
	assert.Equal(t, 1000, config.Processor.ChunkSize)
	assert.Equal(t, 200, config.Processor.ChunkOverlap)
	assert.Equal(t, 5, config.Retrieval.TopK)
}

func TestLoadConfig_AnthropicEmbeddingFallback(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  provider: anthropic\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Anthropic cannot embed, so the embedding side falls back to OpenAI.
	assert.Equal(t, "anthropic", config.LLM.Provider)
	assert.Equal(t, "openai", config.Embedding.Provider)
}

func TestConfigValidation(t *testing.T) {
	valid := Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8000, MaxUploadMB: 50},
		LLM:       LLMConfig{Provider: "ollama", MaxTokens: 1000, Temperature: 0.3, RequestTimeout: 120},
		Embedding: EmbeddingConfig{Provider: "ollama", BatchSize: 100, RequestTimeout: 60},
		Store:     StoreConfig{Backend: "memory", VectorDim: 1536},
		Processor: ProcessorConfig{ChunkSize: 1000, ChunkOverlap: 200},
		Retrieval: RetrievalConfig{TopK: 5},
	}

	tests := []struct {
		name          string
		mutate        func(*Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "bad provider and tokens",
			mutate: func(c *Config) {
				c.LLM.Provider = "smoke-signals"
				c.LLM.MaxTokens = 5000
			},
			errorMessages: []string{
				"llm.provider: unknown provider: smoke-signals",
				"llm.max_tokens: max_tokens must be between 1 and 4096",
			},
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.LLM.Provider = "openai"
			},
			errorMessages: []string{
				"llm.api_key: openai API key is required",
			},
		},
		{
			name: "pgvector requires url",
			mutate: func(c *Config) {
				c.Store.Backend = "pgvector"
				c.Store.URL = ""
			},
			errorMessages: []string{
				"store.url: database URL is required for the pgvector backend",
			},
		},
		{
			name: "overlap not below size",
			mutate: func(c *Config) {
				c.Processor.ChunkSize = 100
				c.Processor.ChunkOverlap = 100
			},
			errorMessages: []string{
				"processor.chunk_overlap: chunk_overlap must be positive and less than chunk_size",
			},
		},
		{
			name: "negative request timeout",
			mutate: func(c *Config) {
				c.LLM.RequestTimeout = -5
			},
			errorMessages: []string{
				"llm.request_timeout: request_timeout must be positive",
			},
		},
		{
			name: "top_k out of range",
			mutate: func(c *Config) {
				c.Retrieval.TopK = 21
			},
			errorMessages: []string{
				"retrieval.top_k: top_k must be between 1 and 20",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)

			errors := config.Validate()
			assert.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Equal(t, msg, errors[i].Error())
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")

	config := &Config{}
	config.LLM.Provider = "openai"
	mergeWithEnv(config)

	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "sk-test", config.Embedding.APIKey)
	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "http://env-ollama:11434", config.Embedding.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Store.URL)
}

func TestEnvironmentOverrides_AnthropicKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	config := &Config{}
	config.LLM.Provider = "anthropic"
	mergeWithEnv(config)

	assert.Equal(t, "sk-ant-test", config.LLM.APIKey)
}
