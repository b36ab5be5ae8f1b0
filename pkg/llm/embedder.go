package llm

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/xhad/askpdf/internal/models"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider  string // "openai" or "ollama"
	Model     string
	APIKey    string
	BaseURL   string // Ollama server URL
	BatchSize int    // texts per provider call
	RateLimit float64
	// RequestTimeout bounds each provider call so nothing in an
	// ingestion or query blocks indefinitely.
	RequestTimeout time.Duration
}

// embeddingClient is the slice of the langchaingo client surface the
// embedder needs. Both openai.LLM and ollama.LLM satisfy it.
type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder turns text into fixed-dimension vectors via the configured
// provider, batching requests and preserving input order.
type Embedder struct {
	config  EmbedderConfig
	client  embeddingClient
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Provider == "" {
		config.Provider = "openai"
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 60 * time.Second
	}

	var client embeddingClient
	var err error

	switch config.Provider {
	case "openai":
		if config.Model == "" {
			config.Model = "text-embedding-3-small"
		}
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithEmbeddingModel(config.Model),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err = openai.New(opts...)
	case "ollama":
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		client, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	default:
		return nil, models.NewError(models.KindConfiguration,
			"unknown embedding provider %q", config.Provider)
	}
	if err != nil {
		return nil, models.WrapError(models.KindConfiguration, err,
			"failed to initialize %s embedding client", config.Provider)
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &Embedder{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// EmbedBatch embeds all texts, issuing one provider call per batch of
// BatchSize texts, sequentially so that output order always matches
// input order. A provider failure fails the whole operation; partial
// results are never returned.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, models.WrapError(models.KindProvider, err, "embedding cancelled")
		}

		batchCtx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
		vectors, err := e.client.CreateEmbedding(batchCtx, batch)
		cancel()
		if err != nil {
			return nil, models.WrapError(models.KindProvider, err,
				"embedding batch starting at %d failed", start)
		}
		if len(vectors) != len(batch) {
			return nil, models.NewError(models.KindProvider,
				"provider returned %d embeddings for %d texts", len(vectors), len(batch))
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
