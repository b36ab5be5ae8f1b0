package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/xhad/askpdf/internal/models"
)

type fakeEmbeddingClient struct {
	batches [][]string
	err     error
	// short makes the client drop one vector to simulate a misbehaving
	// provider.
	short bool
}

func (f *fakeEmbeddingClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	vectors := make([][]float32, 0, len(texts))
	for i := range texts {
		vectors = append(vectors, []float32{float32(len(texts[i])), float32(i)})
	}
	if f.short && len(vectors) > 0 {
		vectors = vectors[:len(vectors)-1]
	}
	return vectors, nil
}

func newTestEmbedder(client embeddingClient, batchSize int) *Embedder {
	return &Embedder{
		config:  EmbedderConfig{BatchSize: batchSize, RequestTimeout: time.Second},
		client:  client,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

func TestEmbedBatch_PreservesOrderAcrossBatches(t *testing.T) {
	client := &fakeEmbeddingClient{}
	e := newTestEmbedder(client, 2)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 5)

	// Three provider calls of at most BatchSize texts each, in order.
	require.Len(t, client.batches, 3)
	assert.Equal(t, []string{"a", "bb"}, client.batches[0])
	assert.Equal(t, []string{"ccc", "dddd"}, client.batches[1])
	assert.Equal(t, []string{"eeeee"}, client.batches[2])

	// The i-th vector corresponds to the i-th text.
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0], "vector %d out of order", i)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	e := newTestEmbedder(&fakeEmbeddingClient{}, 10)

	vectors, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedBatch_ProviderError(t *testing.T) {
	client := &fakeEmbeddingClient{err: errors.New("boom")}
	e := newTestEmbedder(client, 10)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindProvider))
}

func TestEmbedBatch_ShortProviderResponse(t *testing.T) {
	client := &fakeEmbeddingClient{short: true}
	e := newTestEmbedder(client, 10)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindProvider))
}

func TestEmbedQuery(t *testing.T) {
	e := newTestEmbedder(&fakeEmbeddingClient{}, 10)

	vector, err := e.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0}, vector)
}

func TestNewEmbedderWithConfig_UnknownProvider(t *testing.T) {
	_, err := NewEmbedderWithConfig(EmbedderConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

func TestNewEmbedderWithConfig_OllamaDefaults(t *testing.T) {
	e, err := NewEmbedderWithConfig(EmbedderConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text:latest", e.config.Model)
	assert.Equal(t, 100, e.config.BatchSize)
}
